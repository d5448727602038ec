package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/vietddude/stylelog"

	"github.com/hackfest/syncengine/internal/control"
	"github.com/hackfest/syncengine/internal/core/config"
	"github.com/hackfest/syncengine/internal/infra/kv"
	"github.com/hackfest/syncengine/internal/infra/remote"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	isDebug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	_ = godotenv.Load()

	// Load Configuration first (before setting up logger)
	cfg, err := config.Load(*configPath)
	if err != nil {
		// Fall back to default logger for config load errors
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	slogLevel := slog.LevelInfo
	if *isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}

	// Initialize stylelog with tint.Options for level control
	stylelog.InitDefault(
		&tint.Options{
			Level:      slogLevel,
			TimeFormat: time.RFC3339,
		})
	slog.Info("Logger initialized", "level", slogLevel.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := buildKV(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	source := remote.NewHTTPSource(cfg.Remote.BaseURL)

	engine, err := control.New(control.Options{
		Config: cfg,
		Source: source,
		KV:     store,
		Prober: source.Ping,
	})
	if err != nil {
		slog.Error("Failed to initialize engine", "error", err)
		os.Exit(1)
	}
	engine.Start(ctx)

	server := control.NewServer(engine, cfg.Server.Port)
	go func() {
		if err := server.Start(); err != nil && err.Error() != "http: Server closed" {
			slog.Error("Debug server failed", "error", err)
		}
	}()
	slog.Info("Sync engine started", "port", cfg.Server.Port)

	// Wait for Signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	slog.Info("Received signal, shutting down...", "signal", sig)

	// Graceful Shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
	}
	engine.Close()

	slog.Info("Sync engine stopped gracefully")
}

func buildKV(ctx context.Context, cfg *config.AppConfig) (kv.Store, func(), error) {
	switch cfg.Storage.Backend {
	case "redis":
		r, err := kv.NewRedis(cfg.Storage.Redis)
		if err != nil {
			return nil, nil, err
		}
		return r, func() { r.Close() }, nil
	case "postgres":
		p, err := kv.NewPostgres(ctx, cfg.Storage.Database)
		if err != nil {
			return nil, nil, err
		}
		return p, func() { p.Close() }, nil
	default:
		return kv.NewMemory(), func() {}, nil
	}
}
