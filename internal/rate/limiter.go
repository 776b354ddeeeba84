package rate

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Config holds limiter tuning parameters.
type Config struct {
	// Limit is the number of hits allowed per key inside Window.
	Limit int
	// Window is the sliding window length.
	Window time.Duration
	// CleanupInterval controls how often idle keys are dropped. Zero uses Window.
	CleanupInterval time.Duration
}

type window struct {
	hits []time.Time
}

// Limiter is a concurrent sliding-window limiter keyed by arbitrary strings.
type Limiter struct {
	config Config
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a [Limiter]. A non-positive Limit or Window disables limiting.
func New(cfg Config) *Limiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = cfg.Window
	}
	return &Limiter{
		config:  cfg,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

func (l *Limiter) enabled() bool {
	return l != nil && l.config.Limit > 0 && l.config.Window > 0
}

// Allow records a hit for key and reports whether it fits in the window.
// Rejected hits are not recorded.
func (l *Limiter) Allow(key string) bool {
	if !l.enabled() || key == "" {
		return true
	}

	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.windows[key]
	if w == nil {
		w = &window{}
		l.windows[key] = w
	}
	w.prune(now.Add(-l.config.Window))
	if len(w.hits) >= l.config.Limit {
		return false
	}
	w.hits = append(w.hits, now)
	return true
}

// Check records one hit on every key, or on none of them: if any key is
// already at its limit it returns [ErrRateLimited] and no key is charged.
// Empty and repeated keys are ignored.
func (l *Limiter) Check(keys ...string) error {
	if !l.enabled() {
		return nil
	}

	now := l.now()
	cutoff := now.Add(-l.config.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	charge := make([]string, 0, len(keys))
	for _, key := range keys {
		if key == "" || slices.Contains(charge, key) {
			continue
		}
		if w := l.windows[key]; w != nil {
			w.prune(cutoff)
			if len(w.hits) >= l.config.Limit {
				return ErrRateLimited
			}
		}
		charge = append(charge, key)
	}

	for _, key := range charge {
		w := l.windows[key]
		if w == nil {
			w = &window{}
			l.windows[key] = w
		}
		w.hits = append(w.hits, now)
	}
	return nil
}

// Remaining returns how many hits key may still make inside the window.
func (l *Limiter) Remaining(key string) int {
	if !l.enabled() {
		return -1
	}

	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.windows[key]
	if w == nil {
		return l.config.Limit
	}
	w.prune(now.Add(-l.config.Window))
	return max(l.config.Limit-len(w.hits), 0)
}

// Reset forgets every hit recorded for key.
func (l *Limiter) Reset(key string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	delete(l.windows, key)
	l.mu.Unlock()
}

// Cleanup drops keys with no hits inside the window.
func (l *Limiter) Cleanup() {
	if !l.enabled() {
		return
	}

	cutoff := l.now().Add(-l.config.Window)
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, w := range l.windows {
		w.prune(cutoff)
		if len(w.hits) == 0 {
			delete(l.windows, key)
		}
	}
}

func (l *Limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// StartCleanupRoutine starts a background goroutine that periodically calls
// Cleanup. The goroutine is stopped when Close is called.
func (l *Limiter) StartCleanupRoutine() {
	if !l.enabled() || l.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan struct{})

	go func() {
		defer close(l.done)

		ticker := time.NewTicker(l.config.CleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Cleanup()
			}
		}
	}()
}

// Close stops the cleanup goroutine and waits for it to exit.
// It is safe to call Close even if StartCleanupRoutine was never called.
func (l *Limiter) Close() {
	if l == nil || l.cancel == nil {
		return
	}
	l.cancel()
	<-l.done
	l.cancel = nil
}

func (w *window) prune(cutoff time.Time) {
	i := 0
	for i < len(w.hits) && !w.hits[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.hits = append(w.hits[:0], w.hits[i:]...)
	}
}
