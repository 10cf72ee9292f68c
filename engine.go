package authgate

import (
	"context"
	"time"

	"github.com/rlvait/authgate/internal/audit"
	"github.com/rlvait/authgate/password"
	"github.com/rlvait/authgate/token"
)

// Engine is the authentication core. It is constructed once through the
// [Builder] and is immutable and safe for concurrent use afterwards.
type Engine struct {
	config  Config
	store   Store
	hasher  *password.Hasher
	codec   *token.Codec
	audit   *audit.Dispatcher
	metrics *Metrics
	// warn receives operational notices that must not fail the request,
	// such as a hash upgrade that could not be persisted.
	warn func(format string, args ...any)
}

// Close flushes and stops the audit dispatcher. The Engine must not be used
// after Close returns.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// MetricsSnapshot returns a point-in-time copy of all engine metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) ready() error {
	if e == nil || e.store == nil || e.codec == nil || e.hasher == nil {
		return ErrEngineNotReady
	}
	return nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) warnf(format string, args ...any) {
	if e == nil || e.warn == nil {
		return
	}
	e.warn(format, args...)
}

// emitAudit sends an audit event through the dispatcher. A nil dispatcher
// makes this a no-op.
func (e *Engine) emitAudit(ctx context.Context, eventType, identityID string, success bool, failure error, metadata map[string]string) {
	if e == nil || e.audit == nil {
		return
	}

	event := audit.Event{
		Timestamp:  time.Now().UTC(),
		EventType:  eventType,
		IdentityID: identityID,
		IP:         clientIPFromContext(ctx),
		Success:    success,
		Metadata:   metadata,
	}
	if failure != nil {
		event.Error = failure.Error()
	}

	e.audit.Emit(ctx, event)
}

// issuePair mints a new access/refresh pair carrying the identity's current
// role snapshot.
func (e *Engine) issuePair(identityID string, role Role) (TokenPair, error) {
	access, err := e.codec.Issue(identityID, string(role), token.TypeAccess)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := e.codec.Issue(identityID, string(role), token.TypeRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
