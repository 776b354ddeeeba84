package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultOperationTimeout = 500 * time.Millisecond
	defaultMaxRetries       = 2
	defaultRetryBackoff     = 25 * time.Millisecond
	scanBatchSize           = 1000
)

// Options bounds every backend call.
type Options struct {
	// OperationTimeout is the deadline applied to each attempt.
	OperationTimeout time.Duration
	// MaxRetries is the number of additional attempts after the first failure.
	// Zero disables retries.
	MaxRetries int
	// RetryBackoff is multiplied by the attempt number between retries.
	RetryBackoff time.Duration
}

// DefaultOptions returns the standard call bounds.
func DefaultOptions() Options {
	return Options{
		OperationTimeout: defaultOperationTimeout,
		MaxRetries:       defaultMaxRetries,
		RetryBackoff:     defaultRetryBackoff,
	}
}

func (o Options) normalize() Options {
	if o.OperationTimeout <= 0 {
		o.OperationTimeout = defaultOperationTimeout
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = defaultRetryBackoff
	}
	return o
}

// RedisBackend implements [Backend] on a go-redis client.
type RedisBackend struct {
	redis redis.UniversalClient
	opts  Options
}

// NewRedisBackend wraps client. A zero OperationTimeout or RetryBackoff falls
// back to its [DefaultOptions] value; a zero MaxRetries means a single attempt.
func NewRedisBackend(client redis.UniversalClient, opts Options) *RedisBackend {
	return &RedisBackend{
		redis: client,
		opts:  opts.normalize(),
	}
}

// Get implements [Backend].
func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	err := b.do(ctx, func(ctx context.Context) error {
		var err error
		data, err = b.redis.Get(ctx, key).Bytes()
		return err
	})
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// SetWithExpiry implements [Backend].
func (b *RedisBackend) SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("kv: ttl must be > 0")
	}
	return b.do(ctx, func(ctx context.Context) error {
		return b.redis.Set(ctx, key, value, ttl).Err()
	})
}

// Replace implements [Backend] with SET XX.
func (b *RedisBackend) Replace(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, errors.New("kv: ttl must be > 0")
	}
	var ok bool
	err := b.do(ctx, func(ctx context.Context) error {
		var err error
		ok, err = b.redis.SetXX(ctx, key, value, ttl).Result()
		return err
	})
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	return ok, err
}

// Delete implements [Backend].
func (b *RedisBackend) Delete(ctx context.Context, key string) (bool, error) {
	var n int64
	err := b.do(ctx, func(ctx context.Context) error {
		var err error
		n, err = b.redis.Del(ctx, key).Result()
		return err
	})
	return n > 0, err
}

// AddToSet implements [Backend].
func (b *RedisBackend) AddToSet(ctx context.Context, setKey, member string) (bool, error) {
	var n int64
	err := b.do(ctx, func(ctx context.Context) error {
		var err error
		n, err = b.redis.SAdd(ctx, setKey, member).Result()
		return err
	})
	return n > 0, err
}

// RemoveFromSet implements [Backend].
func (b *RedisBackend) RemoveFromSet(ctx context.Context, setKey, member string) (bool, error) {
	var n int64
	err := b.do(ctx, func(ctx context.Context) error {
		var err error
		n, err = b.redis.SRem(ctx, setKey, member).Result()
		return err
	})
	return n > 0, err
}

// MembersOfSet implements [Backend].
func (b *RedisBackend) MembersOfSet(ctx context.Context, setKey string) ([]string, error) {
	var members []string
	err := b.do(ctx, func(ctx context.Context) error {
		var err error
		members, err = b.redis.SMembers(ctx, setKey).Result()
		return err
	})
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, err
	}
	return members, nil
}

// Expire implements [Backend].
func (b *RedisBackend) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, errors.New("kv: ttl must be > 0")
	}
	var ok bool
	err := b.do(ctx, func(ctx context.Context) error {
		var err error
		ok, err = b.redis.PExpire(ctx, key, ttl).Result()
		return err
	})
	return ok, err
}

// TTLOf implements [Backend]. PTTL replies -2 for a missing key and -1 for a
// key without expiry; go-redis passes both through unscaled.
func (b *RedisBackend) TTLOf(ctx context.Context, key string) (TTL, error) {
	var d time.Duration
	err := b.do(ctx, func(ctx context.Context) error {
		var err error
		d, err = b.redis.PTTL(ctx, key).Result()
		return err
	})
	if err != nil {
		return TTL{}, err
	}

	switch {
	case d == -2:
		return TTL{State: TTLAbsent}, nil
	case d == -1:
		return TTL{State: TTLNoExpiry}, nil
	case d <= 0:
		return TTL{State: TTLAbsent}, nil
	default:
		return TTL{State: TTLExpiring, Remaining: d}, nil
	}
}

// KeysMatching implements [Backend] with a SCAN cursor loop. SCAN may return a
// key more than once, so results are de-duplicated.
func (b *RedisBackend) KeysMatching(ctx context.Context, pattern string) ([]string, error) {
	var (
		cursor uint64
		seen   = make(map[string]struct{})
		out    []string
	)

	for {
		var (
			keys []string
			next uint64
		)
		err := b.do(ctx, func(ctx context.Context) error {
			var err error
			keys, next, err = b.redis.Scan(ctx, cursor, pattern, scanBatchSize).Result()
			return err
		})
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return out, nil
}

// Increment implements [Backend].
func (b *RedisBackend) Increment(ctx context.Context, key string, amount int64) (int64, error) {
	var n int64
	err := b.do(ctx, func(ctx context.Context) error {
		var err error
		n, err = b.redis.IncrBy(ctx, key, amount).Result()
		return err
	})
	return n, err
}

// Ping returns a point-in-time Redis availability check and latency.
func (b *RedisBackend) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	err := b.do(ctx, func(ctx context.Context) error {
		return b.redis.Ping(ctx).Err()
	})
	return time.Since(start), err
}

// do runs fn under the per-call deadline, retrying transport failures.
// redis.Nil is returned untouched; server error replies are not retried.
func (b *RedisBackend) do(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt <= b.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if waitErr := sleepContext(ctx, time.Duration(attempt)*b.opts.RetryBackoff); waitErr != nil {
				break
			}
		}

		opCtx, cancel := context.WithTimeout(ctx, b.opts.OperationTimeout)
		err = fn(opCtx)
		cancel()

		if err == nil || errors.Is(err, redis.Nil) {
			return err
		}
		var replyErr redis.Error
		if errors.As(err, &replyErr) || ctx.Err() != nil {
			break
		}
	}

	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ Backend = (*RedisBackend)(nil)
