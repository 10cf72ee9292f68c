package httpapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignupCreatesSession(t *testing.T) {
	server, _ := newTestServer(t)

	user, access, refresh := signupSession(t, server, "alice@example.com")
	assert.Equal(t, "alice@example.com", user["email"])
	assert.Equal(t, "user", user["role"])
	assert.NotContains(t, user, "password_hash")
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refresh)
}

func TestSignupDuplicateEmail(t *testing.T) {
	server, _ := newTestServer(t)
	signupSession(t, server, "alice@example.com")

	rec := doJSON(t, server, "POST", "/api/auth/signup", map[string]string{
		"email":    "Alice@Example.com",
		"password": "password1",
		"name":     "Alice Again",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignupValidationFields(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, "POST", "/api/auth/signup", map[string]string{
		"email":    "not-an-email",
		"password": "short",
		"name":     "",
	}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "validation failed", body["error"])
	fields := body["fields"].([]any)
	assert.Len(t, fields, 3)
}

func TestSignupRejectsBadJSON(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, "POST", "/api/auth/signup", "not an object", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin(t *testing.T) {
	server, _ := newTestServer(t)
	signupSession(t, server, "alice@example.com")

	rec := doJSON(t, server, "POST", "/api/auth/login", map[string]string{
		"email":    "alice@example.com",
		"password": "password1",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "alice@example.com", body["user"].(map[string]any)["email"])
	assert.NotEmpty(t, body["tokens"].(map[string]any)["accessToken"])
}

func TestLoginFailuresAreUniform(t *testing.T) {
	server, _ := newTestServer(t)
	signupSession(t, server, "alice@example.com")

	wrongPassword := doJSON(t, server, "POST", "/api/auth/login", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong-password",
	}, nil)
	unknownEmail := doJSON(t, server, "POST", "/api/auth/login", map[string]string{
		"email":    "nobody@example.com",
		"password": "password1",
	}, nil)

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownEmail.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownEmail.Body.String())
}

func TestRefreshRotates(t *testing.T) {
	server, _ := newTestServer(t)
	_, _, refresh := signupSession(t, server, "alice@example.com")

	rec := doJSON(t, server, "POST", "/api/auth/refresh-token", map[string]string{
		"refreshToken": refresh,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	tokens := decodeBody(t, rec)["tokens"].(map[string]any)
	next := tokens["refreshToken"].(string)
	assert.NotEqual(t, refresh, next)

	// The spent token is dead.
	rec = doJSON(t, server, "POST", "/api/auth/refresh-token", map[string]string{
		"refreshToken": refresh,
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The rotated one works.
	rec = doJSON(t, server, "POST", "/api/auth/refresh-token", map[string]string{
		"refreshToken": next,
	}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRefreshRequiresToken(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, "POST", "/api/auth/refresh-token", map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogout(t *testing.T) {
	server, _ := newTestServer(t)
	_, _, refresh := signupSession(t, server, "alice@example.com")

	rec := doJSON(t, server, "POST", "/api/auth/logout", map[string]string{
		"refreshToken": refresh,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Logged out successfully", decodeBody(t, rec)["message"])

	// Idempotent: a second logout with the same token still succeeds.
	rec = doJSON(t, server, "POST", "/api/auth/logout", map[string]string{
		"refreshToken": refresh,
	}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// The session itself is gone.
	rec = doJSON(t, server, "POST", "/api/auth/refresh-token", map[string]string{
		"refreshToken": refresh,
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutRequiresToken(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, "POST", "/api/auth/logout", map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
