package authgate

import (
	"context"
	"errors"

	"github.com/rlvait/authgate/token"
)

// Refresh exchanges a live refresh token for a new pair and retires the
// presented token. Each refresh token is good for exactly one exchange; under
// concurrent use of the same token one caller wins and the rest get
// [ErrInvalidRefreshToken].
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if err := e.ready(); err != nil {
		return TokenPair{}, err
	}

	// Signature and expiry first; a token that fails here never touches the
	// store.
	if _, err := e.codec.Verify(refreshToken, token.TypeRefresh); err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, "refresh", "", false, ErrInvalidRefreshToken, nil)
		return TokenPair{}, ErrInvalidRefreshToken
	}

	identity, err := e.store.FindByRefreshToken(ctx, refreshToken)
	if err != nil {
		err = storeErr(err)
		if errors.Is(err, ErrNotFound) {
			// Cryptographically valid but not held by anyone: rotated away,
			// logged out, or replayed. Worth an audit trail either way.
			e.metricInc(MetricRefreshFailure)
			e.metricInc(MetricRefreshReuseDetected)
			e.emitAudit(ctx, "refresh_reuse", "", false, ErrInvalidRefreshToken, nil)
			return TokenPair{}, ErrInvalidRefreshToken
		}
		return TokenPair{}, err
	}

	pair, err := e.issuePair(identity.ID, identity.Role)
	if err != nil {
		return TokenPair{}, err
	}

	// The compare-and-swap is the rotation's serialization point: only the
	// caller whose expectedOld still matches retires the token.
	ok, err := e.store.UpdateRefreshToken(ctx, identity.ID, refreshToken, pair.RefreshToken)
	if err != nil {
		err = storeErr(err)
		if !errors.Is(err, ErrNotFound) {
			return TokenPair{}, err
		}
		// The identity was deleted between lookup and swap; same outcome as
		// a lost race.
		ok = false
	}
	if !ok {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, "refresh", identity.ID, false, ErrInvalidRefreshToken, nil)
		return TokenPair{}, ErrInvalidRefreshToken
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, "refresh", identity.ID, true, nil, nil)

	return pair, nil
}

// Logout retires the session holding refreshToken. It is idempotent: an
// unknown, already-rotated, or malformed token still returns nil.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if refreshToken == "" {
		return nil
	}

	if err := e.store.ClearRefreshToken(ctx, refreshToken); err != nil {
		err = storeErr(err)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, "logout", "", true, nil, nil)

	return nil
}
