package authgate

import (
	"context"
	"time"

	"github.com/rlvait/authgate/token"
)

// Authenticate verifies an access token and returns the identity id and role
// snapshot embedded at issuance. Every failure collapses into
// [ErrUnauthorized]; the result never says which check failed.
//
// Authenticate is purely cryptographic and does not touch the store, so
// tokens survive until expiry even after logout. Operations that must see the
// live record load it themselves.
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (AuthResult, error) {
	if err := e.ready(); err != nil {
		return AuthResult{}, err
	}

	start := time.Now()
	claims, err := e.codec.Verify(accessToken, token.TypeAccess)
	e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))

	if err != nil {
		e.metricInc(MetricAuthenticateFailure)
		return AuthResult{}, ErrUnauthorized
	}

	e.metricInc(MetricAuthenticateSuccess)
	return AuthResult{
		IdentityID: claims.Subject,
		Role:       Role(claims.Role),
	}, nil
}

// CurrentIdentity loads the live record for an authenticated caller.
func (e *Engine) CurrentIdentity(ctx context.Context, identityID string) (IdentityView, error) {
	if err := e.ready(); err != nil {
		return IdentityView{}, err
	}

	identity, err := e.store.FindByID(ctx, identityID)
	if err != nil {
		return IdentityView{}, storeErr(err)
	}
	return identity.View(), nil
}

// UpdateProfile changes the caller's name and/or email. Empty fields keep
// their current value. A changed email must remain unique.
func (e *Engine) UpdateProfile(ctx context.Context, identityID string, update ProfileUpdate) (IdentityView, error) {
	if err := e.ready(); err != nil {
		return IdentityView{}, err
	}
	if err := validateProfileUpdate(update); err != nil {
		return IdentityView{}, err
	}

	identity, err := e.store.FindByID(ctx, identityID)
	if err != nil {
		return IdentityView{}, storeErr(err)
	}

	name := identity.Name
	if update.Name != "" {
		name = update.Name
	}
	email := identity.Email
	if update.Email != "" {
		email = normalizeEmail(update.Email)
	}

	updated, err := e.store.UpdateProfile(ctx, identityID, name, email)
	if err != nil {
		return IdentityView{}, storeErr(err)
	}

	e.metricInc(MetricProfileUpdate)
	e.emitAudit(ctx, "profile_update", identityID, true, nil, nil)

	return updated.View(), nil
}

// ChangePassword verifies the caller's current password and installs a new
// one. A wrong current password returns [ErrInvalidCredentials]; federated
// accounts with no password cannot use this operation.
func (e *Engine) ChangePassword(ctx context.Context, identityID, currentPassword, newPassword string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if !validPassword(newPassword) {
		verr := &ValidationError{}
		addPasswordError(verr, newPassword)
		return verr
	}

	identity, err := e.store.FindByID(ctx, identityID)
	if err != nil {
		return storeErr(err)
	}

	if identity.PasswordHash == "" || !e.hasher.Verify(currentPassword, identity.PasswordHash) {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, "password_change", identityID, false, ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := e.store.UpdatePasswordHash(ctx, identityID, hash); err != nil {
		return storeErr(err)
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, "password_change", identityID, true, nil, nil)

	return nil
}
