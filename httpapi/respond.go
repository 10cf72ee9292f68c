package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	authgate "github.com/rlvait/authgate"
)

// tokenPayload mirrors the wire shape of an issued pair.
type tokenPayload struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// sessionPayload is the response body for signup and login.
type sessionPayload struct {
	User   authgate.IdentityView `json:"user"`
	Tokens tokenPayload          `json:"tokens"`
}

func toTokenPayload(pair authgate.TokenPair) tokenPayload {
	return tokenPayload{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeEngineError maps engine sentinels to HTTP statuses. Anything
// unrecognized is an infrastructure failure: the detail is logged, the client
// gets a generic 500.
func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *authgate.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": verr.Fields,
		})
		return
	}
	switch {
	case errors.Is(err, authgate.ErrDuplicateEmail),
		errors.Is(err, authgate.ErrDuplicateFederatedID):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, authgate.ErrInvalidCredentials),
		errors.Is(err, authgate.ErrInvalidRefreshToken),
		errors.Is(err, authgate.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, authgate.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, authgate.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON parses the request body into dst. On failure it writes a 400 and
// returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
