package authgate

import (
	"context"
	"errors"
	"strings"
)

// Signup registers a new password-based identity and immediately opens a
// session for it. The created account always has [RoleUser]; callers cannot
// request a role.
func (e *Engine) Signup(ctx context.Context, req SignupRequest) (IdentityView, TokenPair, error) {
	if err := e.ready(); err != nil {
		return IdentityView{}, TokenPair{}, err
	}
	if err := validateSignup(req); err != nil {
		return IdentityView{}, TokenPair{}, err
	}

	email := normalizeEmail(req.Email)

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return IdentityView{}, TokenPair{}, err
	}

	identity, err := e.store.Create(ctx, CreateIdentityInput{
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
		Role:         RoleUser,
	})
	if err != nil {
		err = storeErr(err)
		if errors.Is(err, ErrDuplicateEmail) {
			e.metricInc(MetricSignupDuplicate)
		}
		e.emitAudit(ctx, "signup", "", false, err, map[string]string{"email": email})
		return IdentityView{}, TokenPair{}, err
	}

	pair, err := e.openSession(ctx, identity)
	if err != nil {
		e.emitAudit(ctx, "signup", identity.ID, false, err, nil)
		return IdentityView{}, TokenPair{}, err
	}

	e.metricInc(MetricSignupSuccess)
	e.emitAudit(ctx, "signup", identity.ID, true, nil, nil)

	return identity.View(), pair, nil
}

// sessionSwapRetries bounds how often openSession re-reads the refresh slot
// when concurrent logins keep moving it.
const sessionSwapRetries = 3

// openSession issues a fresh token pair and installs the refresh token as the
// identity's single live session, replacing whatever was there. A login must
// never report success while the stored slot holds someone else's token.
func (e *Engine) openSession(ctx context.Context, identity Identity) (TokenPair, error) {
	pair, err := e.issuePair(identity.ID, identity.Role)
	if err != nil {
		return TokenPair{}, err
	}

	// Unconditional overwrite: a new login displaces any previous session.
	// Logins do not need CAS protection, only refresh rotation does, so a
	// lost swap re-reads the current value and tries again.
	expected := identity.RefreshToken
	for attempt := 0; ; attempt++ {
		ok, err := e.store.UpdateRefreshToken(ctx, identity.ID, expected, pair.RefreshToken)
		if err != nil {
			return TokenPair{}, storeErr(err)
		}
		if ok {
			return pair, nil
		}
		if attempt == sessionSwapRetries {
			return TokenPair{}, errors.New("session slot kept moving under concurrent logins")
		}

		current, err := e.store.FindByID(ctx, identity.ID)
		if err != nil {
			return TokenPair{}, storeErr(err)
		}
		expected = current.RefreshToken
	}
}
