package authgate

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnauthorized is the uniform authentication failure returned by
	// [Engine.Authenticate]. Expired, malformed, and missing tokens all
	// collapse into it so the boundary never reveals which check failed.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is returned by Login for both unknown email and
	// wrong password; the two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicateEmail is returned when the normalized email is already
	// registered.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrDuplicateFederatedID is returned by stores when the federated
	// identifier is already linked to another identity.
	ErrDuplicateFederatedID = errors.New("federated identity already linked")
	// ErrInvalidRefreshToken is returned by Refresh when no identity currently
	// holds the presented token, including after rotation or logout.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrForbidden signals an authenticated caller with an insufficient role.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound signals a missing target identity.
	ErrNotFound = errors.New("identity not found")
	// ErrStoreUnavailable wraps credential-store infrastructure failures. The
	// cause is retained for logs but must never reach clients.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrEngineNotReady is returned when an Engine was not built through
	// [Builder.Build].
	ErrEngineNotReady = errors.New("engine not initialized")
)

// FieldError describes a single invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries field-level detail for malformed input. Unlike the
// authentication errors it is reported to callers with specifics.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// storeErr classifies a store failure: domain sentinels pass through
// untouched, everything else is wrapped as ErrStoreUnavailable.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrDuplicateEmail),
		errors.Is(err, ErrDuplicateFederatedID):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}
