package analytics

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/kv"
)

const (
	defaultPrefix    = "wsc"
	defaultRetention = 90 * 24 * time.Hour
	dayLayout        = "2006-01-02"
)

// Counter names recorded by the session service.
const (
	CounterSessionsCreated      = "sessions_created"
	CounterSessionsDisconnected = "sessions_disconnected"
	CounterSessionsUpdated      = "sessions_updated"
)

// ErrInvalidName is returned for empty counter names or names containing
// ':' or glob characters.
var ErrInvalidName = errors.New("analytics: invalid counter name")

// Config configures [Counters].
type Config struct {
	// Prefix namespaces counter keys. Default "wsc".
	Prefix string
	// Retention is applied to each daily key. Default 90 days.
	Retention time.Duration
}

// Counters stores daily counters on a [kv.Backend].
type Counters struct {
	backend   kv.Backend
	prefix    string
	retention time.Duration
}

// NewCounters creates [Counters] on backend.
func NewCounters(backend kv.Backend, cfg Config) *Counters {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	if cfg.Retention <= 0 {
		cfg.Retention = defaultRetention
	}
	return &Counters{
		backend:   backend,
		prefix:    cfg.Prefix,
		retention: cfg.Retention,
	}
}

// DailyCount is one day's value for a counter.
type DailyCount struct {
	Day   time.Time
	Value int64
}

// Key returns the storage key for name on the UTC day containing t.
func (c *Counters) Key(name string, t time.Time) string {
	return c.prefix + ":" + t.UTC().Format(dayLayout) + ":" + name
}

// Increment adds one to name for the day containing t.
func (c *Counters) Increment(ctx context.Context, name string, t time.Time) (int64, error) {
	return c.IncrementBy(ctx, name, t, 1)
}

// IncrementBy adds n to name for the day containing t and returns the new
// value. The first increment of a day applies the retention TTL.
func (c *Counters) IncrementBy(ctx context.Context, name string, t time.Time, n int64) (int64, error) {
	if err := validateName(name); err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("analytics: increment must be > 0, got %d", n)
	}

	key := c.Key(name, t)
	count, err := c.backend.Increment(ctx, key, n)
	if err != nil {
		return 0, err
	}

	if count == n {
		if _, err := c.backend.Expire(ctx, key, c.retention); err != nil {
			return count, err
		}
	}

	return count, nil
}

// Get returns the value of name for the day containing t. Missing days are
// zero.
func (c *Counters) Get(ctx context.Context, name string, t time.Time) (int64, error) {
	if err := validateName(name); err != nil {
		return 0, err
	}

	data, found, err := c.backend.Get(ctx, c.Key(name, t))
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}

	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("analytics: counter %q is not an integer: %w", name, err)
	}
	return v, nil
}

// Range returns name for every UTC day from 'from' to 'to' inclusive, oldest
// first.
func (c *Counters) Range(ctx context.Context, name string, from, to time.Time) ([]DailyCount, error) {
	start := truncateDay(from)
	end := truncateDay(to)
	if end.Before(start) {
		return []DailyCount{}, nil
	}

	out := make([]DailyCount, 0, int(end.Sub(start)/(24*time.Hour))+1)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		v, err := c.Get(ctx, name, day)
		if err != nil {
			return nil, err
		}
		out = append(out, DailyCount{Day: day, Value: v})
	}
	return out, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func validateName(name string) error {
	if name == "" || strings.ContainsAny(name, ":*?[]\\ ") {
		return ErrInvalidName
	}
	return nil
}
