package authgate

import (
	"net/mail"
	"strings"
	"unicode"

	"github.com/rlvait/authgate/password"
)

const (
	minPasswordLength = 6
	maxNameLength     = 128
	maxEmailLength    = 254
)

// normalizeEmail trims whitespace and lowercases. All store lookups and
// uniqueness checks operate on the normalized form.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	if email == "" || len(email) > maxEmailLength {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	// ParseAddress accepts display names ("A <a@b.c>"); we want a bare
	// address only.
	return addr.Address == email
}

// validPassword enforces the signup policy: at least 6 bytes with at least
// one decimal digit, and within the hasher's byte ceiling.
func validPassword(pw string) bool {
	if len(pw) < minPasswordLength || len(pw) > password.MaxPasswordBytes {
		return false
	}
	for _, r := range pw {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// addPasswordError appends the policy violation for pw, distinguishing
// oversized input from the weak-password case.
func addPasswordError(verr *ValidationError, pw string) {
	if len(pw) > password.MaxPasswordBytes {
		verr.add("password", "too long")
		return
	}
	verr.add("password", "must be at least 6 characters and contain a digit")
}

func validateSignup(req SignupRequest) error {
	verr := &ValidationError{}
	if !validEmail(normalizeEmail(req.Email)) {
		verr.add("email", "must be a valid email address")
	}
	if !validPassword(req.Password) {
		addPasswordError(verr, req.Password)
	}
	if strings.TrimSpace(req.Name) == "" {
		verr.add("name", "must not be empty")
	} else if len(req.Name) > maxNameLength {
		verr.add("name", "too long")
	}
	return verr.orNil()
}

func validateProfileUpdate(update ProfileUpdate) error {
	verr := &ValidationError{}
	if update.Email != "" && !validEmail(normalizeEmail(update.Email)) {
		verr.add("email", "must be a valid email address")
	}
	if update.Name != "" && len(update.Name) > maxNameLength {
		verr.add("name", "too long")
	}
	return verr.orNil()
}
