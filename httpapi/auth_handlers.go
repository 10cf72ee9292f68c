package httpapi

import (
	"net/http"

	authgate "github.com/rlvait/authgate"
)

// signup handles POST /api/auth/signup. Any role in the payload is ignored;
// new accounts always start as plain users.
func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	user, pair, err := s.engine.Signup(requestContext(r), authgate.SignupRequest{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionPayload{User: user, Tokens: toTokenPayload(pair)})
}

// login handles POST /api/auth/login.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	user, pair, err := s.engine.Login(requestContext(r), req.Email, req.Password)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionPayload{User: user, Tokens: toTokenPayload(pair)})
}

// refreshToken handles POST /api/auth/refresh-token. The refresh token rides
// in the body, never in a header.
func (s *Server) refreshToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh token is required")
		return
	}

	pair, err := s.engine.Refresh(requestContext(r), req.RefreshToken)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]tokenPayload{"tokens": toTokenPayload(pair)})
}

// logout handles POST /api/auth/logout. The engine treats an unknown token as
// already logged out, so the endpoint is idempotent.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh token is required")
		return
	}

	if err := s.engine.Logout(requestContext(r), req.RefreshToken); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}
