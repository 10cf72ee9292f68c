package httpapi

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
)

const stateCookieName = "authgate_oauth_state"

// oauthRedirect handles GET /api/auth/{provider}. It plants a single-use
// state cookie and hands the browser to the provider's consent page.
func (s *Server) oauthRedirect(w http.ResponseWriter, r *http.Request) {
	p, err := s.providers.Get(mux.Vars(r)["provider"])
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown oauth provider")
		return
	}

	state, err := newState()
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/api/auth",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, p.AuthCodeURL(state), http.StatusFound)
}

// oauthCallback handles GET /api/auth/{provider}/callback. Success and
// failure both end in a redirect to the frontend; tokens or the error ride in
// the query string.
func (s *Server) oauthCallback(w http.ResponseWriter, r *http.Request) {
	p, err := s.providers.Get(mux.Vars(r)["provider"])
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown oauth provider")
		return
	}

	clearStateCookie(w)
	if !validState(r) {
		s.redirectError(w, r, "invalid oauth state")
		return
	}
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		s.redirectError(w, r, errParam)
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		s.redirectError(w, r, "missing authorization code")
		return
	}

	fed, err := p.ExchangeCode(r.Context(), code)
	if err != nil {
		s.logger.WithError(err).WithField("provider", p.Name()).Warn("oauth code exchange failed")
		s.redirectError(w, r, "authentication failed")
		return
	}

	_, pair, err := s.engine.LoginFederated(requestContext(r), fed)
	if err != nil {
		s.logger.WithError(err).WithField("provider", p.Name()).Warn("federated login failed")
		s.redirectError(w, r, "authentication failed")
		return
	}

	query := url.Values{}
	query.Set("accessToken", pair.AccessToken)
	query.Set("refreshToken", pair.RefreshToken)
	http.Redirect(w, r, s.frontendURL+"?"+query.Encode(), http.StatusFound)
}

func (s *Server) redirectError(w http.ResponseWriter, r *http.Request, message string) {
	query := url.Values{}
	query.Set("error", message)
	http.Redirect(w, r, s.frontendURL+"?"+query.Encode(), http.StatusFound)
}

func newState() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func validState(r *http.Request) bool {
	state := r.URL.Query().Get("state")
	cookie, err := r.Cookie(stateCookieName)
	if err != nil || state == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(state), []byte(cookie.Value)) == 1
}

func clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/api/auth",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
