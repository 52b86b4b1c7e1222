// Kestrel - Procurement cost-leakage detection.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opensource-finance/kestrel/internal/alert"
	"github.com/opensource-finance/kestrel/internal/api"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/ingest"
	"github.com/opensource-finance/kestrel/internal/pipeline"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/schedule"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("KESTREL_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("KESTREL_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Alert Router
	router, err := alert.NewRouter(cfg.AlertRoutes, busImpl)
	if err != nil {
		slog.Error("failed to initialize alert router", "error", err)
		os.Exit(1)
	}
	slog.Info("alert router initialized", "routes", router.RouteCount())

	// Initialize Pipeline
	pipe := pipeline.New(cfg, repo, cacheImpl, busImpl, router)
	slog.Info("detection pipeline initialized")

	// Optional one-off CSV import before serving
	if path := os.Getenv("KESTREL_IMPORT_CSV"); path != "" {
		if err := importCSV(ctx, path, repo); err != nil {
			slog.Error("csv import failed", "path", path, "error", err)
			os.Exit(1)
		}
	}

	// Initialize Scheduler
	var scheduler *schedule.Scheduler
	if cfg.Scheduler.Enabled || os.Getenv("KESTREL_SCHEDULER") == "true" {
		scheduler = schedule.New(cfg.Scheduler, pipe)
		scheduler.Start(ctx)
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, pipe, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop scheduler first
	if scheduler != nil {
		scheduler.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kestrel shutdown complete")
}

// importCSV loads a transaction CSV into the repository at startup.
func importCSV(ctx context.Context, path string, repo domain.Repository) error {
	txs, err := ingest.LoadFile(path)
	if err != nil {
		return err
	}
	if err := repo.SaveTransactions(ctx, txs); err != nil {
		return err
	}
	slog.Info("csv import complete", "path", path, "transactions", len(txs))
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🦅 KESTREL                  ║")
	fmt.Println("  ║   Procurement Cost-Leakage Detection      ║")
	fmt.Println("  ║      Every pound accounted for.           ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /transactions        - Ingest transactions")
	fmt.Println("    GET  /transactions/{id}   - Get transaction by ID")
	fmt.Println("    POST /runs                - Trigger a detection run")
	fmt.Println("    GET  /runs                - List recent runs")
	fmt.Println("    GET  /runs/{id}           - Get run by ID")
	fmt.Println("    GET  /runs/{id}/findings  - Scored findings in triage order")
	fmt.Println("    GET  /runs/{id}/summary   - Run summary")
	fmt.Println("    GET  /summary             - Latest run summary")
	fmt.Println("    GET  /health              - Health check")
	fmt.Println()
}
