package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MrEthical07/goSession/session"
)

// Lister enumerates every live session. [session.Store] implements it.
type Lister interface {
	ListAll(ctx context.Context) ([]*session.Session, error)
}

// Snapshot summarizes the live sessions at one instant.
type Snapshot struct {
	At                time.Time
	ActiveSessions    int
	DistinctAddresses int
	ByChain           map[int64]int
	// IdleSessions counts sessions with no activity for longer than the
	// idle threshold passed to [Rollup].
	IdleSessions int
}

// Rollup lists every session and summarizes them. Sessions idle for longer
// than idleAfter are counted in IdleSessions; zero disables that count.
func Rollup(ctx context.Context, lister Lister, now time.Time, idleAfter time.Duration) (Snapshot, error) {
	sessions, err := lister.ListAll(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		At:             now.UTC(),
		ActiveSessions: len(sessions),
		ByChain:        make(map[int64]int),
	}
	addresses := make(map[string]struct{}, len(sessions))
	for _, s := range sessions {
		addresses[s.Address] = struct{}{}
		snap.ByChain[s.ChainID]++
		if idleAfter > 0 && s.IdleFor(now) > idleAfter {
			snap.IdleSessions++
		}
	}
	snap.DistinctAddresses = len(addresses)

	return snap, nil
}

// Roller runs [Rollup] on an interval and hands each snapshot to a callback.
type Roller struct {
	lister    Lister
	interval  time.Duration
	idleAfter time.Duration
	logger    *slog.Logger
	onResult  func(Snapshot)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRoller creates a [Roller]. A nil logger uses slog.Default().
func NewRoller(lister Lister, interval, idleAfter time.Duration, logger *slog.Logger, onResult func(Snapshot)) *Roller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Roller{
		lister:    lister,
		interval:  interval,
		idleAfter: idleAfter,
		logger:    logger,
		onResult:  onResult,
	}
}

// Start launches the rollup loop. It is a no-op when already running or when
// the interval is not positive.
func (r *Roller) Start() {
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
				snap, err := Rollup(ctx, r.lister, time.Now(), r.idleAfter)
				if err != nil {
					if ctx.Err() == nil {
						r.logger.Warn("analytics rollup failed", "error", err)
					}
					continue
				}
				r.logger.Debug("analytics rollup",
					"active", snap.ActiveSessions,
					"addresses", snap.DistinctAddresses,
					"idle", snap.IdleSessions,
				)
				if r.onResult != nil {
					r.onResult(snap)
				}
			}
		}
	}(r.done)
}

// Stop cancels the loop and waits for it to exit.
func (r *Roller) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}
