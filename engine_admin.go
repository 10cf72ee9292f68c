package authgate

import "context"

// ListIdentities returns the client-safe view of every identity. Intended for
// the admin surface; authorization is the transport layer's job.
func (e *Engine) ListIdentities(ctx context.Context) ([]IdentityView, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	identities, err := e.store.List(ctx)
	if err != nil {
		return nil, storeErr(err)
	}

	views := make([]IdentityView, 0, len(identities))
	for _, identity := range identities {
		views = append(views, identity.View())
	}
	return views, nil
}

// UpdateRole sets an identity's role. Outstanding access tokens keep their
// issued-role snapshot until they expire; the new role takes effect on the
// next token issuance.
func (e *Engine) UpdateRole(ctx context.Context, identityID string, role Role) (IdentityView, error) {
	if err := e.ready(); err != nil {
		return IdentityView{}, err
	}
	if !role.Valid() {
		verr := &ValidationError{}
		verr.add("role", "must be user or admin")
		return IdentityView{}, verr
	}

	identity, err := e.store.UpdateRole(ctx, identityID, role)
	if err != nil {
		return IdentityView{}, storeErr(err)
	}

	e.metricInc(MetricRoleChange)
	e.emitAudit(ctx, "role_change", identityID, true, nil, map[string]string{"role": string(role)})

	return identity.View(), nil
}

// DeleteIdentity removes an identity and its session. Access tokens already
// issued for it remain cryptographically valid until expiry but lose their
// refresh path immediately.
func (e *Engine) DeleteIdentity(ctx context.Context, identityID string) error {
	if err := e.ready(); err != nil {
		return err
	}

	if err := e.store.Delete(ctx, identityID); err != nil {
		return storeErr(err)
	}

	e.metricInc(MetricIdentityDeleted)
	e.emitAudit(ctx, "identity_delete", identityID, true, nil, nil)

	return nil
}
