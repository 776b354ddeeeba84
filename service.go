package goSession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goSession/analytics"
	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/kv"
	"github.com/MrEthical07/goSession/session"
	"github.com/google/uuid"
)

// Service orchestrates wallet sessions on top of a [session.Store]: input
// validation, create rate limiting, activity tracking, tokens, audit events,
// metrics and analytics counters.
//
// A Service is safe for concurrent use. Build one with [New] and release it
// with [Service.Close].
type Service struct {
	config  Config
	backend kv.Backend
	store   *session.Store
	chains  chainSet
	logger  *slog.Logger
	now     func() time.Time

	limiter    *rate.Limiter
	tokens     *jwt.Manager
	audit      *audit.Dispatcher
	metrics    *Metrics
	counters   *analytics.Counters
	reconciler *session.Reconciler
	roller     *analytics.Roller

	closed    atomic.Bool
	closeOnce sync.Once
}

/*
====================================
LIFECYCLE
====================================
*/

// CreateSession validates address and chainID, applies the create rate
// limit, and persists a new session with a fresh id.
//
// When the record is written but the address index is not, the session is
// still returned: it is readable by id and the next reconciliation sweep
// makes it discoverable by address.
func (s *Service) CreateSession(ctx context.Context, address string, chainID int64) (*Session, error) {
	if s.closed.Load() {
		return nil, ErrServiceClosed
	}

	if err := s.validateCreate(address, chainID); err != nil {
		s.metrics.Inc(MetricValidationRejected)
		s.emitAudit(ctx, AuditEvent{
			EventType: auditEventSessionCreateFailed,
			Address:   strings.TrimSpace(address),
			ChainID:   chainID,
		}, err)
		return nil, err
	}
	address = normalizeAddress(address)

	if err := s.checkCreateRate(ctx, address); err != nil {
		s.metrics.Inc(MetricRateLimited)
		s.emitAudit(ctx, AuditEvent{
			EventType: auditEventRateLimitTriggered,
			Address:   address,
			ChainID:   chainID,
		}, err)
		return nil, err
	}

	now := s.now().UTC()
	sess := &Session{
		ID:           uuid.NewString(),
		Address:      address,
		ChainID:      chainID,
		ConnectedAt:  now,
		LastActivity: now,
	}

	start := time.Now()
	err := s.store.Create(ctx, sess)
	s.metrics.Observe(MetricStoreLatency, time.Since(start))

	switch {
	case err == nil:
	case errors.Is(err, session.ErrIndexDegraded):
		s.metrics.Inc(MetricIndexDegraded)
		s.logger.Warn("goSession: session created without address index entry",
			"session_id", sess.ID,
			"address", address,
			"error", err,
		)
	default:
		s.metrics.Inc(MetricSessionCreateFailed)
		s.emitAudit(ctx, AuditEvent{
			EventType: auditEventSessionCreateFailed,
			Address:   address,
			ChainID:   chainID,
		}, err)
		return nil, err
	}

	s.metrics.Inc(MetricSessionCreated)
	s.emitAudit(ctx, AuditEvent{
		EventType: auditEventSessionCreated,
		SessionID: sess.ID,
		Address:   address,
		ChainID:   chainID,
	}, nil)
	s.countDaily(ctx, analytics.CounterSessionsCreated, now)

	return sess, nil
}

// GetSession returns session id and records activity on it, restarting its
// TTL. A failed activity write is logged and the session is still returned.
//
// A missing, expired or corrupt record yields [ErrSessionNotFound]; corrupt
// records additionally match [session.ErrDecode].
func (s *Service) GetSession(ctx context.Context, id string) (*Session, error) {
	if s.closed.Load() {
		return nil, ErrServiceClosed
	}
	if strings.TrimSpace(id) == "" {
		return nil, validationError(ErrInvalidSessionID)
	}

	sess, err := s.read(ctx, id)
	if err != nil {
		return nil, err
	}

	sess.LastActivity = s.now().UTC()
	if err := s.write(ctx, sess); err != nil {
		s.metrics.Inc(MetricTouchFailed)
		s.logger.Warn("goSession: session activity touch failed",
			"session_id", id,
			"error", err,
		)
	}

	return sess, nil
}

// UpdateSession applies u to session id and records activity on it. It
// returns false with a nil error when the session does not exist, including
// when it is disconnected or expires while the update is in flight.
func (s *Service) UpdateSession(ctx context.Context, id string, u SessionUpdate) (bool, error) {
	if s.closed.Load() {
		return false, ErrServiceClosed
	}
	if strings.TrimSpace(id) == "" {
		return false, validationError(ErrInvalidSessionID)
	}
	if u.ChainID != nil {
		if err := s.chains.validate(*u.ChainID); err != nil {
			s.metrics.Inc(MetricValidationRejected)
			return false, err
		}
	}

	sess, err := s.read(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if u.ChainID != nil {
		sess.ChainID = *u.ChainID
	}
	sess.Metadata = mergeMetadata(sess.Metadata, u.Metadata)
	sess.LastActivity = s.now().UTC()

	err = s.write(ctx, sess)
	switch {
	case err == nil:
	case errors.Is(err, ErrSessionNotFound):
		return false, nil
	case errors.Is(err, session.ErrMetadataTooLarge), errors.Is(err, session.ErrMetadataInvalid):
		s.metrics.Inc(MetricValidationRejected)
		return false, fmt.Errorf("%w: %w", validationError(ErrInvalidMetadata), err)
	default:
		return false, err
	}

	s.metrics.Inc(MetricSessionUpdated)
	s.emitAudit(ctx, AuditEvent{
		EventType: auditEventSessionUpdated,
		SessionID: sess.ID,
		Address:   sess.Address,
		ChainID:   sess.ChainID,
	}, nil)
	s.countDaily(ctx, analytics.CounterSessionsUpdated, sess.LastActivity)

	return true, nil
}

// DisconnectSession deletes session id and its address index entry. It
// reports true even when the session was already gone.
func (s *Service) DisconnectSession(ctx context.Context, id string) (bool, error) {
	if s.closed.Load() {
		return false, ErrServiceClosed
	}
	if strings.TrimSpace(id) == "" {
		return false, validationError(ErrInvalidSessionID)
	}

	start := time.Now()
	err := s.store.Delete(ctx, id)
	s.metrics.Observe(MetricStoreLatency, time.Since(start))
	if err != nil {
		return false, err
	}

	s.metrics.Inc(MetricSessionDisconnected)
	s.emitAudit(ctx, AuditEvent{
		EventType: auditEventSessionDisconnected,
		SessionID: id,
	}, nil)
	s.countDaily(ctx, analytics.CounterSessionsDisconnected, s.now())

	return true, nil
}

// ListSessions returns the live sessions owned by address, oldest first.
// Sessions created within the last reconciliation interval whose index
// write failed may be missing.
func (s *Service) ListSessions(ctx context.Context, address string) ([]*Session, error) {
	if s.closed.Load() {
		return nil, ErrServiceClosed
	}
	if err := ValidateAddress(address); err != nil {
		s.metrics.Inc(MetricValidationRejected)
		return nil, err
	}

	start := time.Now()
	list, err := s.store.ListByAddress(ctx, normalizeAddress(address))
	s.metrics.Observe(MetricStoreLatency, time.Since(start))
	return list, err
}

/*
====================================
MAINTENANCE
====================================
*/

// RunReconciliation runs one sweep now, independent of the background
// reconciler.
func (s *Service) RunReconciliation(ctx context.Context) (ReconcileResult, error) {
	if s.closed.Load() {
		return ReconcileResult{}, ErrServiceClosed
	}
	res, err := s.store.RunReconciliation(ctx)
	s.recordReconcile(res, err)
	return res, err
}

func (s *Service) recordReconcile(res ReconcileResult, err error) {
	s.metrics.Inc(MetricReconcileRuns)
	s.metrics.Add(MetricReconcileRepairs, uint64(res.Repaired()))
	errs := uint64(res.Errors)
	if err != nil {
		errs++
	}
	s.metrics.Add(MetricReconcileErrors, errs)

	s.emitAudit(context.Background(), AuditEvent{
		EventType: auditEventReconcileCompleted,
		Metadata: map[string]string{
			"scanned":  fmt.Sprint(res.Scanned),
			"repaired": fmt.Sprint(res.Repaired()),
			"removed":  fmt.Sprint(res.Removed),
			"corrupt":  fmt.Sprint(res.Corrupt),
		},
	}, err)
}

// Snapshot summarizes every live session. It lists the whole key space and
// is meant for administrative use.
func (s *Service) Snapshot(ctx context.Context) (AnalyticsSnapshot, error) {
	if s.closed.Load() {
		return AnalyticsSnapshot{}, ErrServiceClosed
	}
	snap, err := analytics.Rollup(ctx, s.store, s.now(), 0)
	if err != nil {
		return AnalyticsSnapshot{}, err
	}
	s.metrics.Set(MetricSessionsActive, int64(snap.ActiveSessions))
	return snap, nil
}

// Analytics returns the daily counters, or nil when analytics is disabled.
func (s *Service) Analytics() *analytics.Counters {
	return s.counters
}

// Ping checks backend availability and returns the round trip.
func (s *Service) Ping(ctx context.Context) (time.Duration, error) {
	p, ok := s.backend.(interface {
		Ping(context.Context) (time.Duration, error)
	})
	if !ok {
		return 0, nil
	}
	return p.Ping(ctx)
}

// MetricsSnapshot returns a copy of every metric.
func (s *Service) MetricsSnapshot() MetricsSnapshot {
	if s == nil {
		return (*Metrics)(nil).Snapshot()
	}
	return s.metrics.Snapshot()
}

// AuditDropped returns how many audit events were dropped on a full buffer.
func (s *Service) AuditDropped() uint64 {
	if s == nil {
		return 0
	}
	return s.audit.Dropped()
}

// AuditDroppedByType breaks [Service.AuditDropped] down by event type.
func (s *Service) AuditDroppedByType() map[string]uint64 {
	if s == nil {
		return map[string]uint64{}
	}
	return s.audit.DroppedByType()
}

// Close stops the background loops and flushes pending audit events. Calls
// after the first are no-ops; other methods then return [ErrServiceClosed].
func (s *Service) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if s.reconciler != nil {
			s.reconciler.Stop()
		}
		if s.roller != nil {
			s.roller.Stop()
		}
		s.limiter.Close()
		s.audit.Close()
	})
}

/*
====================================
HELPERS
====================================
*/

func (s *Service) validateCreate(address string, chainID int64) error {
	if err := ValidateAddress(address); err != nil {
		return err
	}
	return s.chains.validate(chainID)
}

func (s *Service) checkCreateRate(ctx context.Context, address string) error {
	keys := []string{"addr:" + address}
	if s.config.RateLimit.PerIP {
		if ip := ClientIPFromContext(ctx); ip != "" {
			keys = append(keys, "ip:"+ip)
		}
	}
	if err := s.limiter.Check(keys...); err != nil {
		return ErrRateLimited
	}
	return nil
}

func (s *Service) read(ctx context.Context, id string) (*Session, error) {
	start := time.Now()
	sess, err := s.store.Get(ctx, id)
	s.metrics.Observe(MetricStoreLatency, time.Since(start))

	switch {
	case err == nil:
		s.metrics.Inc(MetricSessionRead)
	case errors.Is(err, session.ErrDecode):
		s.metrics.Inc(MetricSessionCorrupt)
	case errors.Is(err, ErrSessionNotFound):
		s.metrics.Inc(MetricSessionNotFound)
	}
	return sess, err
}

func (s *Service) write(ctx context.Context, sess *Session) error {
	start := time.Now()
	err := s.store.Update(ctx, sess)
	s.metrics.Observe(MetricStoreLatency, time.Since(start))
	return err
}

// countDaily bumps an analytics counter. Failures never fail the request.
func (s *Service) countDaily(ctx context.Context, name string, t time.Time) {
	if s.counters == nil {
		return
	}
	if _, err := s.counters.Increment(ctx, name, t); err != nil {
		s.logger.Warn("goSession: analytics counter increment failed",
			"counter", name,
			"error", err,
		)
	}
}

func mergeMetadata(current, patch map[string]any) map[string]any {
	if len(patch) == 0 {
		return current
	}
	out := make(map[string]any, len(current)+len(patch))
	for k, v := range current {
		out[k] = v
	}
	for k, v := range patch {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
