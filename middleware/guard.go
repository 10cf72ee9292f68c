package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rlvait/authgate"
)

type authResultContextKey struct{}

// AuthResultFromContext returns the authentication result Guard injected for
// this request.
func AuthResultFromContext(ctx context.Context) (*authgate.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*authgate.AuthResult)
	return res, ok
}

// Guard returns middleware that rejects requests without a valid bearer
// access token. Missing header, malformed header, and failed verification all
// answer 401 with the same body.
func Guard(engine *authgate.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			res, err := engine.Authenticate(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, &res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole returns middleware that answers 403 unless the Guard-injected
// result carries the given role. It must run inside a Guard chain; without
// one it answers 401.
func RequireRole(role authgate.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, ok := AuthResultFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if res.Role != role {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
