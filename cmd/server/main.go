package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cachestats/internal/api"
	"cachestats/internal/config"
	"cachestats/internal/metrics"
	"cachestats/internal/statistics"
	"cachestats/internal/store"
	"cachestats/internal/util"
)

const shutdownTimeout = 15 * time.Second

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	configPath := flag.String("config", "", "Path to config.json/config.yaml")
	flag.Parse()

	cfg, resolvedCfgPath, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.SlogLevel())
	slog.Info("Config loaded", "path", resolvedCfgPath, "caches", len(cfg.Caches))

	reg := statistics.Default()
	caches, err := buildCaches(cfg, reg)
	if err != nil {
		slog.Error("Failed to build caches", "error", err)
		os.Exit(1)
	}
	prometheus.MustRegister(metrics.NewCollector(reg))

	var snapshots *store.Store
	if cfg.RedisAddr != "" {
		snapshots, err = openStore(context.Background(), cfg)
		if err != nil {
			slog.Warn("Snapshot store unavailable, statistics will not be persisted", "addr", cfg.RedisAddr, "error", err)
		} else {
			slog.Info("Snapshot store initialized", "addr", cfg.RedisAddr, "prefix", cfg.RedisPrefix)
		}
	}

	opts := api.Options{
		AdminToken:       cfg.AdminToken,
		StreamInterval:   cfg.StreamInterval(),
		StreamMaxClients: cfg.StreamMaxClients,
	}
	if snapshots != nil {
		opts.Snapshots = snapshots
	}

	mux := http.NewServeMux()
	api.New(reg, caches, opts).Register(mux)
	mux.Handle("/metrics", promhttp.Handler())
	slog.Info("Prometheus metrics enabled", "path", "/metrics")

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, cancelBackground := context.WithCancel(context.Background())
	defer cancelBackground()

	if snapshots != nil {
		go startSnapshotLoop(ctx, snapshots, reg, cfg.SnapshotInterval())
	}
	go startStatsLogLoop(ctx, reg, cfg.SnapshotInterval())

	idleConnsClosed := make(chan struct{})
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		sig := <-quit
		slog.Info("Received signal, starting graceful shutdown", "signal", sig)

		cancelBackground()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		if snapshots != nil {
			saveSnapshots(shutdownCtx, snapshots, reg)
		}
		closeCaches(caches)
		if snapshots != nil {
			snapshots.Close()
		}
		close(idleConnsClosed)
	}()

	slog.Info("Server running", "port", cfg.Port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("Server start failed", "error", err)
		os.Exit(1)
	}

	<-idleConnsClosed
	slog.Info("Server shutdown gracefully")
}

func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	var s *store.Store
	err := util.RetryWithBackoff(ctx, 2, 500*time.Millisecond, 2*time.Second, func() error {
		var err error
		s, err = store.New(store.Options{
			RedisAddr:     cfg.RedisAddr,
			RedisPassword: cfg.RedisPassword,
			RedisDB:       cfg.RedisDB,
			RedisPrefix:   cfg.RedisPrefix,
		})
		return err
	})
	return s, err
}
