package authgate

import (
	"context"
	"errors"
)

// Login authenticates email and password and opens a session. Unknown email
// and wrong password both return [ErrInvalidCredentials]; the caller cannot
// tell which check failed.
func (e *Engine) Login(ctx context.Context, email, plaintext string) (IdentityView, TokenPair, error) {
	if err := e.ready(); err != nil {
		return IdentityView{}, TokenPair{}, err
	}

	email = normalizeEmail(email)

	identity, err := e.store.FindByEmail(ctx, email)
	if err != nil {
		err = storeErr(err)
		if errors.Is(err, ErrNotFound) {
			// Burn a verify against a throwaway hash so unknown-email and
			// wrong-password take comparable time.
			e.hasher.Verify(plaintext, decoyHash)
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, "login", "", false, ErrInvalidCredentials, map[string]string{"email": email})
			return IdentityView{}, TokenPair{}, ErrInvalidCredentials
		}
		return IdentityView{}, TokenPair{}, err
	}

	if identity.PasswordHash == "" || !e.hasher.Verify(plaintext, identity.PasswordHash) {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, "login", identity.ID, false, ErrInvalidCredentials, nil)
		return IdentityView{}, TokenPair{}, ErrInvalidCredentials
	}

	e.maybeUpgradeHash(ctx, identity.ID, plaintext, identity.PasswordHash)

	pair, err := e.openSession(ctx, identity)
	if err != nil {
		e.emitAudit(ctx, "login", identity.ID, false, err, nil)
		return IdentityView{}, TokenPair{}, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, "login", identity.ID, true, nil, nil)

	return identity.View(), pair, nil
}

// LoginFederated resolves a provider-verified external identity to a local
// account and opens a session. Resolution order: existing federated link,
// then email match (the provider link is attached), then a fresh RoleUser
// account. Federated accounts have no password.
func (e *Engine) LoginFederated(ctx context.Context, fed FederatedIdentity) (IdentityView, TokenPair, error) {
	if err := e.ready(); err != nil {
		return IdentityView{}, TokenPair{}, err
	}
	if fed.Provider == "" || fed.Subject == "" {
		verr := &ValidationError{}
		verr.add("provider", "provider and subject are required")
		return IdentityView{}, TokenPair{}, verr
	}

	identity, created, err := e.resolveFederated(ctx, fed)
	if err != nil {
		e.emitAudit(ctx, "login_federated", "", false, err, map[string]string{"provider": fed.Provider})
		return IdentityView{}, TokenPair{}, err
	}

	pair, err := e.openSession(ctx, identity)
	if err != nil {
		e.emitAudit(ctx, "login_federated", identity.ID, false, err, nil)
		return IdentityView{}, TokenPair{}, err
	}

	e.metricInc(MetricFederatedLoginSuccess)
	if created {
		e.metricInc(MetricFederatedLoginCreated)
	}
	e.emitAudit(ctx, "login_federated", identity.ID, true, nil, map[string]string{
		"provider": fed.Provider,
		"created":  boolString(created),
	})

	return identity.View(), pair, nil
}

func (e *Engine) resolveFederated(ctx context.Context, fed FederatedIdentity) (identity Identity, created bool, err error) {
	fedID := fed.FederatedID()

	identity, err = e.store.FindByFederatedID(ctx, fedID)
	switch {
	case err == nil:
		return identity, false, nil
	case !errors.Is(storeErr(err), ErrNotFound):
		return Identity{}, false, storeErr(err)
	}

	// No link yet. Try matching on the provider-asserted email so a user who
	// signed up with a password can later use the provider button.
	email := normalizeEmail(fed.Email)
	if email != "" {
		identity, err = e.store.FindByEmail(ctx, email)
		switch {
		case err == nil:
			if identity.FederatedID != "" && identity.FederatedID != fedID {
				// Same email, different provider link. Refuse rather than
				// silently merge accounts.
				return Identity{}, false, ErrDuplicateFederatedID
			}
			if identity.FederatedID == "" {
				identity, err = e.store.LinkFederatedID(ctx, identity.ID, fedID)
				if err != nil {
					return Identity{}, false, storeErr(err)
				}
				e.metricInc(MetricFederatedLoginLinked)
			}
			return identity, false, nil
		case !errors.Is(storeErr(err), ErrNotFound):
			return Identity{}, false, storeErr(err)
		}
	}

	name := fed.Name
	if name == "" {
		name = email
	}
	identity, err = e.store.Create(ctx, CreateIdentityInput{
		Email:       email,
		Name:        name,
		Role:        RoleUser,
		FederatedID: fedID,
	})
	if err != nil {
		return Identity{}, false, storeErr(err)
	}
	return identity, true, nil
}

// maybeUpgradeHash re-hashes the password under the current work factors when
// the stored hash uses weaker ones. Failure to persist never fails the login.
func (e *Engine) maybeUpgradeHash(ctx context.Context, id, plaintext, storedHash string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}

	stale, err := e.hasher.NeedsRehash(storedHash)
	if err != nil || !stale {
		return
	}

	next, err := e.hasher.Hash(plaintext)
	if err != nil {
		return
	}
	if err := e.store.UpdatePasswordHash(ctx, id, next); err != nil {
		e.warnf("authgate: hash upgrade for %s not persisted: %v", id, err)
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// decoyHash is a hash of no real password, used to equalize login timing for
// unknown emails. Salt and key are fixed zero bytes under the default work
// factors, so it can never verify true; it must stay parseable or Verify
// skips the derivation entirely.
const decoyHash = "$argon2id$v=19$m=65536,t=3,p=2$AAAAAAAAAAAAAAAAAAAAAA==$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="
