// gosessiond runs the wallet session maintenance loops against Redis and
// exposes operational endpoints.
//
// It loads a YAML config, connects to Redis, runs the reconciliation sweep
// and the analytics rollup, and serves:
//
//	GET /healthz       backend round trip, 503 when Redis is unreachable
//	GET /metrics       Prometheus text exposition
//	GET /v1/session    the caller's session, resolved from a bearer token
//	                   or the X-Session-ID header
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/metrics/export/prometheus"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		listenAddr string
		redisAddr  string
		logLevel   string
	)

	flagSet := pflag.NewFlagSet("gosessiond", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to YAML config (defaults apply when empty)")
	flagSet.StringVar(&listenAddr, "listen", ":8080", "HTTP listen address")
	flagSet.StringVar(&redisAddr, "redis-addr", "", "override backend.addr from the config")
	flagSet.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := goSession.DefaultConfig()
	if configPath != "" {
		loaded, err := goSession.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if redisAddr != "" {
		cfg.Backend.Addr = redisAddr
	}
	cfg.Metrics.Enabled = true

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Backend.Addr},
		Password: cfg.Backend.Password,
		DB:       cfg.Backend.DB,
	})
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err := client.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		return fmt.Errorf("connect redis at %s: %w", cfg.Backend.Addr, err)
	}

	svc, err := goSession.New().
		WithConfig(cfg).
		WithRedis(client).
		WithLogger(logger).
		WithAuditSink(goSession.NewSlogSink(logger.With("component", "audit"))).
		Build()
	if err != nil {
		return fmt.Errorf("build session service: %w", err)
	}
	defer svc.Close()

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           newMux(svc, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("gosessiond listening",
			"addr", listenAddr,
			"redis", cfg.Backend.Addr,
			"reconcile_interval", cfg.Reconcile.Interval,
		)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("gosessiond shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newMux(svc *goSession.Service, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", prometheus.NewPrometheusExporter(svc).Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		rtt, err := svc.Ping(r.Context())
		if err != nil {
			logger.Warn("health check failed", "error", err)
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, map[string]string{"status": "ok", "redis_rtt": rtt.String()})
	})
	mux.Handle("GET /v1/session", middleware.RequireSession(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, _ := middleware.SessionFromContext(r.Context())
		writeJSON(w, sess)
	})))
	return middleware.ClientIP(mux)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
