//go:build integration
// +build integration

package test

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/kv"
	"github.com/MrEthical07/goSession/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// cmdCounter is a go-redis Hook that counts Redis commands and pipeline
// round-trips.
type cmdCounter struct {
	commands  atomic.Int64
	pipelines atomic.Int64
}

func (h *cmdCounter) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *cmdCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.commands.Add(1)
		return next(ctx, cmd)
	}
}

func (h *cmdCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		h.pipelines.Add(1)
		h.commands.Add(int64(len(cmds)))
		return next(ctx, cmds)
	}
}

func (h *cmdCounter) Reset() {
	h.commands.Store(0)
	h.pipelines.Store(0)
}

func (h *cmdCounter) Commands() int64  { return h.commands.Load() }
func (h *cmdCounter) Pipelines() int64 { return h.pipelines.Load() }

type integrationEnv struct {
	mr      *miniredis.Miniredis
	rdb     *redis.Client
	store   *session.Store
	counter *cmdCounter
}

// newIntegrationEnv creates a session.Store on miniredis with a command
// counter installed. The counter starts at zero after a warmup PING.
func newIntegrationEnv(t *testing.T) *integrationEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	counter := &cmdCounter{}
	rdb.AddHook(counter)

	// go-redis may issue handshake commands on first use.
	require.NoError(t, rdb.Ping(context.Background()).Err(), "warmup ping")
	counter.Reset()

	backend := kv.NewRedisBackend(rdb, kv.Options{
		OperationTimeout: time.Second,
		MaxRetries:       0,
	})
	store := session.NewStore(backend, session.Config{Prefix: "it", TTL: time.Hour})

	return &integrationEnv{mr: mr, rdb: rdb, store: store, counter: counter}
}

func makeSession(id, address string) *session.Session {
	now := time.Now().UTC()
	return &session.Session{
		ID:           id,
		Address:      address,
		ChainID:      1,
		ConnectedAt:  now,
		LastActivity: now,
	}
}
