package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	authgate "github.com/rlvait/authgate"
	"github.com/rlvait/authgate/middleware"
)

// caller returns the Guard-injected authentication result. The Guard
// middleware rejects the request before a handler runs, so a miss here means
// a route was wired outside the guarded subrouter.
func (s *Server) caller(w http.ResponseWriter, r *http.Request) (*authgate.AuthResult, bool) {
	result, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return nil, false
	}
	return result, true
}

// currentUser handles GET /api/users/me.
func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) {
	result, ok := s.caller(w, r)
	if !ok {
		return
	}
	user, err := s.engine.CurrentIdentity(requestContext(r), result.IdentityID)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]authgate.IdentityView{"user": user})
}

// updateProfile handles PATCH /api/users/me. Absent fields keep their
// current value.
func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	result, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.engine.UpdateProfile(requestContext(r), result.IdentityID, authgate.ProfileUpdate{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]authgate.IdentityView{"user": user})
}

// changePassword handles POST /api/users/me/password.
func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	result, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	err := s.engine.ChangePassword(requestContext(r), result.IdentityID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated"})
}

// listUsers handles GET /api/users (admin only).
func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.engine.ListIdentities(requestContext(r))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]authgate.IdentityView{"users": users})
}

// updateRole handles PATCH /api/users/{userId}/role (admin only).
func (s *Server) updateRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role string `json:"role"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.engine.UpdateRole(requestContext(r), mux.Vars(r)["userId"], authgate.Role(req.Role))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]authgate.IdentityView{"user": user})
}

// deleteUser handles DELETE /api/users/{userId} (admin only).
func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteIdentity(requestContext(r), mux.Vars(r)["userId"]); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted"})
}
