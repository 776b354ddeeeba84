package kv

import (
	"context"
	"errors"
	"time"
)

// ErrBackendUnavailable is returned when the store failed after exhausting retries.
var ErrBackendUnavailable = errors.New("kv backend unavailable")

// TTLState classifies the expiry of a key.
type TTLState uint8

const (
	// TTLAbsent means the key does not exist (or already expired).
	TTLAbsent TTLState = iota
	// TTLNoExpiry means the key exists without an expiry.
	TTLNoExpiry
	// TTLExpiring means the key exists and Remaining holds the time left.
	TTLExpiring
)

func (s TTLState) String() string {
	switch s {
	case TTLAbsent:
		return "absent"
	case TTLNoExpiry:
		return "no_expiry"
	case TTLExpiring:
		return "expiring"
	default:
		return "unknown"
	}
}

// TTL is the result of [Backend.TTLOf].
type TTL struct {
	State     TTLState
	Remaining time.Duration
}

// Alive reports whether the key exists with time left or without expiry.
func (t TTL) Alive() bool {
	switch t.State {
	case TTLNoExpiry:
		return true
	case TTLExpiring:
		return t.Remaining > 0
	default:
		return false
	}
}

// Backend is the operation contract consumed by the session store and the
// analytics counters. Implementations must be safe for concurrent use.
type Backend interface {
	// Get returns the value stored at key. found is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	// SetWithExpiry overwrites key with value and the given time-to-live.
	SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Replace overwrites key with value and ttl only if key already exists,
	// and reports whether it did.
	Replace(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// Delete removes key and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)
	// AddToSet adds member to setKey and reports whether it was newly added.
	AddToSet(ctx context.Context, setKey, member string) (bool, error)
	// RemoveFromSet removes member from setKey and reports whether it was present.
	RemoveFromSet(ctx context.Context, setKey, member string) (bool, error)
	// MembersOfSet returns the members of setKey; an absent set is empty.
	MembersOfSet(ctx context.Context, setKey string) ([]string, error)
	// Expire sets the time-to-live of an existing key (plain value or set).
	// It reports false when the key does not exist.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// TTLOf reports the expiry state of key.
	TTLOf(ctx context.Context, key string) (TTL, error)
	// KeysMatching enumerates keys matching a glob pattern. Not O(1); never use
	// it on a request hot path.
	KeysMatching(ctx context.Context, pattern string) ([]string, error)
	// Increment adds amount to the integer at key and returns the new value.
	Increment(ctx context.Context, key string, amount int64) (int64, error)
}
