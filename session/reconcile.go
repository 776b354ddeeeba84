package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/goSession/kv"
)

// indexTTLTolerance absorbs clock rounding between the index TTL and the
// primary TTL so back-to-back sweeps do not keep extending the same set.
const indexTTLTolerance = time.Second

// ReconcileResult counts what one sweep inspected and repaired.
type ReconcileResult struct {
	Scanned        int // primary keys inspected
	IndexesScanned int // address index sets inspected
	Expired        int // primaries without expiry that received the standard TTL
	Reindexed      int // live ids re-added to their address index
	IndexExtended  int // index sets whose TTL was raised to cover a primary
	Removed        int // dangling ids removed from index sets
	Corrupt        int // undecodable primaries (logged, never deleted)
	Errors         int // lookups that failed and were skipped
}

// Repaired returns the number of repairs applied by the sweep.
func (r ReconcileResult) Repaired() int {
	return r.Expired + r.Reindexed + r.IndexExtended + r.Removed
}

// RunReconciliation repairs drift between primary records and the address
// index.
//
// Phase 1 walks primary keys: a key without expiry gets the standard TTL, a
// live id missing from its address index is re-added, and an index set that
// would expire before the record has its TTL raised. Phase 2 walks index
// sets and removes ids whose primary key is gone or now belongs to another
// address.
//
// Each step is independently idempotent, so a cancelled sweep never leaves
// state worse than before. A failed lookup is logged and skipped. The
// returned error is non-nil only when enumeration fails or ctx is done; the
// partial result is returned in both cases.
func (s *Store) RunReconciliation(ctx context.Context) (ReconcileResult, error) {
	var res ReconcileResult

	keys, err := s.backend.KeysMatching(ctx, s.sessionPattern())
	if err != nil {
		return res, err
	}
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		id, ok := s.idFromKey(key)
		if !ok {
			continue
		}
		res.Scanned++
		s.reconcilePrimary(ctx, key, id, &res)
	}

	indexKeys, err := s.backend.KeysMatching(ctx, s.addressPattern())
	if err != nil {
		return res, err
	}
	for _, indexKey := range indexKeys {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.IndexesScanned++
		s.reconcileIndex(ctx, indexKey, &res)
	}

	s.logger.Debug("session reconciliation finished",
		"scanned", res.Scanned,
		"indexes", res.IndexesScanned,
		"repaired", res.Repaired(),
		"errors", res.Errors,
	)
	return res, nil
}

func (s *Store) reconcilePrimary(ctx context.Context, key, id string, res *ReconcileResult) {
	ttl, err := s.backend.TTLOf(ctx, key)
	if err != nil {
		res.Errors++
		s.logger.Warn("reconcile: ttl lookup failed", "session_id", id, "error", err)
		return
	}

	switch ttl.State {
	case kv.TTLAbsent:
		// Evicted since the scan; phase 2 drops any index entry.
		return
	case kv.TTLNoExpiry:
		applied, err := s.backend.Expire(ctx, key, s.ttl)
		if err != nil {
			res.Errors++
			s.logger.Warn("reconcile: applying ttl failed", "session_id", id, "error", err)
			return
		}
		if !applied {
			return
		}
		res.Expired++
		ttl = kv.TTL{State: kv.TTLExpiring, Remaining: s.ttl}
	}

	data, found, err := s.backend.Get(ctx, key)
	if err != nil {
		res.Errors++
		s.logger.Warn("reconcile: record read failed", "session_id", id, "error", err)
		return
	}
	if !found {
		return
	}
	sess, err := Decode(data)
	if err != nil {
		res.Corrupt++
		s.logger.Error("reconcile: session record corrupt", "session_id", id, "error", err)
		return
	}

	indexKey := s.addressKey(sess.Address)
	added, err := s.backend.AddToSet(ctx, indexKey, id)
	if err != nil {
		res.Errors++
		s.logger.Warn("reconcile: index add failed", "session_id", id, "error", err)
		return
	}
	if added {
		res.Reindexed++
	}

	indexTTL, err := s.backend.TTLOf(ctx, indexKey)
	if err != nil {
		res.Errors++
		s.logger.Warn("reconcile: index ttl lookup failed", "session_id", id, "error", err)
		return
	}
	if !indexNeedsExtension(indexTTL, ttl.Remaining) {
		return
	}
	extended, err := s.backend.Expire(ctx, indexKey, ttl.Remaining)
	if err != nil {
		res.Errors++
		s.logger.Warn("reconcile: index expiry failed", "session_id", id, "error", err)
		return
	}
	if extended {
		res.IndexExtended++
	}
}

func indexNeedsExtension(indexTTL kv.TTL, primaryRemaining time.Duration) bool {
	switch indexTTL.State {
	case kv.TTLNoExpiry:
		return true
	case kv.TTLExpiring:
		return indexTTL.Remaining+indexTTLTolerance < primaryRemaining
	default:
		return false
	}
}

func (s *Store) reconcileIndex(ctx context.Context, indexKey string, res *ReconcileResult) {
	members, err := s.backend.MembersOfSet(ctx, indexKey)
	if err != nil {
		res.Errors++
		s.logger.Warn("reconcile: index read failed", "index", indexKey, "error", err)
		return
	}

	address, _ := strings.CutPrefix(indexKey, s.prefix+"a:")

	for _, id := range members {
		if ctx.Err() != nil {
			return
		}
		ttl, err := s.backend.TTLOf(ctx, s.key(id))
		if err != nil {
			res.Errors++
			s.logger.Warn("reconcile: ttl lookup failed", "session_id", id, "error", err)
			continue
		}
		if ttl.Alive() && s.indexedUnder(ctx, id, address, res) {
			continue
		}
		removed, err := s.backend.RemoveFromSet(ctx, indexKey, id)
		if err != nil {
			res.Errors++
			s.logger.Warn("reconcile: index remove failed", "session_id", id, "error", err)
			continue
		}
		if removed {
			res.Removed++
		}
	}
}

// indexedUnder reports whether the live record id still belongs to address.
// Unreadable or corrupt records are kept; phase 1 owns them.
func (s *Store) indexedUnder(ctx context.Context, id, address string, res *ReconcileResult) bool {
	data, found, err := s.backend.Get(ctx, s.key(id))
	if err != nil {
		res.Errors++
		s.logger.Warn("reconcile: record read failed", "session_id", id, "error", err)
		return true
	}
	if !found {
		return false
	}
	sess, err := Decode(data)
	if err != nil {
		return true
	}
	return NormalizeAddress(sess.Address) == address
}

// Reconciler runs [Store.RunReconciliation] on a fixed interval until stopped.
type Reconciler struct {
	store    *Store
	interval time.Duration
	logger   *slog.Logger
	onResult func(ReconcileResult, error)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewReconciler creates a [Reconciler]. onResult, when non-nil, observes
// every sweep outcome.
func NewReconciler(store *Store, interval time.Duration, onResult func(ReconcileResult, error)) *Reconciler {
	return &Reconciler{
		store:    store,
		interval: interval,
		logger:   store.logger,
		onResult: onResult,
	}
}

// Start launches the sweep loop. Calling Start on a running Reconciler is a
// no-op.
func (r *Reconciler) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil || r.interval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				res, err := r.store.RunReconciliation(ctx)
				if err != nil && ctx.Err() == nil {
					r.logger.Warn("session reconciliation failed", "error", err)
				}
				if r.onResult != nil {
					r.onResult(res, err)
				}
			}
		}
	}(r.done)
}

// Stop cancels any in-flight sweep and waits for the loop to exit. It is safe
// to call Stop when Start was never called.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}
