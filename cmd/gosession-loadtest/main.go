package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/pflag"

	goSession "github.com/MrEthical07/goSession"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		sessions    int
		addresses   int
		concurrency int
		ops         int
		redisAddr   string
		prefix      string
	)

	flagSet := pflag.NewFlagSet("gosession-loadtest", pflag.ExitOnError)
	flagSet.IntVar(&sessions, "sessions", 20000, "number of sessions to seed")
	flagSet.IntVar(&addresses, "addresses", 2000, "number of distinct wallet addresses")
	flagSet.IntVar(&concurrency, "concurrency", 128, "number of concurrent workers")
	flagSet.IntVar(&ops, "ops", 100000, "operations per phase")
	flagSet.StringVar(&redisAddr, "redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	flagSet.StringVar(&prefix, "prefix", "wslt", "session key prefix")
	_ = flagSet.Parse(os.Args[1:])

	if sessions <= 0 || addresses <= 0 || concurrency <= 0 || ops <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, addresses, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := goSession.DefaultConfig()
	cfg.Session.Prefix = prefix
	cfg.RateLimit.Enabled = false
	cfg.Reconcile.Enabled = false
	cfg.Backend.OperationTimeout = 2 * time.Second

	svc, err := goSession.New().
		WithConfig(cfg).
		WithRedis(client).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build service: %v\n", err)
		os.Exit(1)
	}
	defer svc.Close()

	ids := make([]string, sessions)
	fmt.Printf("seeding %d sessions over %d addresses...\n", sessions, addresses)
	startSeed := time.Now()
	for i := 0; i < sessions; i++ {
		sess, err := svc.CreateSession(ctx, walletAddress(i%addresses), 1)
		if err != nil {
			fmt.Fprintf(os.Stderr, "create failed: %v\n", err)
			os.Exit(1)
		}
		ids[i] = sess.ID
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	getStats := runPhase(ops, concurrency, func(r *rand.Rand, _ int) error {
		_, err := svc.GetSession(ctx, ids[r.Intn(len(ids))])
		return err
	})

	updateStats := runPhase(ops, concurrency, func(r *rand.Rand, i int) error {
		_, err := svc.UpdateSession(ctx, ids[r.Intn(len(ids))], goSession.SessionUpdate{
			Metadata: map[string]any{"seq": i},
		})
		return err
	})

	listStats := runPhase(ops/10+1, concurrency, func(r *rand.Rand, _ int) error {
		_, err := svc.ListSessions(ctx, walletAddress(r.Intn(addresses)))
		return err
	})

	// Disconnect half the sessions concurrently with reads and updates of the
	// other half, then sweep.
	var disconnectCursor atomic.Int64
	half := len(ids) / 2
	mixedStats := runPhase(ops, concurrency, func(r *rand.Rand, i int) error {
		switch i % 3 {
		case 0:
			if n := int(disconnectCursor.Add(1)) - 1; n < half {
				_, err := svc.DisconnectSession(ctx, ids[n])
				return err
			}
			return nil
		case 1:
			_, err := svc.GetSession(ctx, ids[half+r.Intn(len(ids)-half)])
			return err
		default:
			_, err := svc.UpdateSession(ctx, ids[half+r.Intn(len(ids)-half)], goSession.SessionUpdate{
				Metadata: map[string]any{"mixed": i},
			})
			return err
		}
	})

	startSweep := time.Now()
	res, err := svc.RunReconciliation(ctx)
	sweep := time.Since(startSweep)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconciliation failed: %v\n", err)
	}

	fmt.Println("---- results ----")
	printStats("get", getStats)
	printStats("update", updateStats)
	printStats("list", listStats)
	printStats("mixed", mixedStats)
	fmt.Printf("reconcile: scanned=%d indexes=%d repaired=%d errors=%d total=%s\n",
		res.Scanned, res.IndexesScanned, res.Repaired(), res.Errors, sweep.Round(time.Millisecond))
}

func walletAddress(i int) string {
	return fmt.Sprintf("0x%040x", i+1)
}

func runPhase(ops, concurrency int, op func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r, i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
