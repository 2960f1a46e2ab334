// Package main is the entry point for the kyc-screener server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/merchantsafe/kyc-screener/internal/config"
	"github.com/merchantsafe/kyc-screener/internal/crawler"
	"github.com/merchantsafe/kyc-screener/internal/database"
	"github.com/merchantsafe/kyc-screener/internal/engine"
	"github.com/merchantsafe/kyc-screener/internal/http/routes"
	"github.com/merchantsafe/kyc-screener/internal/logging"
	"github.com/merchantsafe/kyc-screener/internal/repository"
	"github.com/merchantsafe/kyc-screener/internal/service"
	"github.com/merchantsafe/kyc-screener/internal/shutdown"
	"github.com/merchantsafe/kyc-screener/internal/version"
	"github.com/merchantsafe/kyc-screener/internal/worker"
)

func main() {
	logger := logging.SetDefault()

	v := version.Get()
	logger.Info("starting kyc-screener",
		"version", v.Version,
		"commit", v.Commit,
		"built", v.Date,
		"go_version", v.GoVersion,
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := database.MigrateWithLogger(db, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	repos := repository.NewRepositories(db)

	var cache *crawler.PageCache
	if cfg.CacheEnabled {
		cache = crawler.NewPageCache(repos.PageCache, cfg.CacheTTL, logger)
	}

	scanEngine := engine.New(cfg, cache, logger)
	services := service.NewServices(cfg, scanEngine, repos, logger)

	jobWorker := worker.New(
		repos.Jobs,
		scanEngine,
		services.Webhook,
		worker.Config{
			PollInterval:  cfg.WorkerPollInterval,
			Concurrency:   cfg.WorkerConcurrency,
			StaleTimeout:  cfg.StaleJobTimeout,
			ShutdownGrace: cfg.WorkerShutdownGracePeriod,
		},
		logger,
	)
	ctx, cancel := context.WithCancel(context.Background())
	jobWorker.Start(ctx)

	var handler http.Handler = routes.NewRouter(cfg, db, services)

	// Idle shutdown for scale-to-zero deployments. Probe traffic does not
	// count as activity, and running jobs hold the server open.
	idleMonitor := shutdown.NewIdleMonitor(shutdown.Config{
		Timeout:      cfg.IdleTimeout,
		Logger:       logger,
		ExcludePaths: []string{"/healthz", "/readyz"},
		BusyCheck:    jobWorker.Busy,
	})
	handler = idleMonitor.Middleware(handler)
	idleMonitor.Start()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler,
		// Write timeout must outlast a synchronous screening.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 6 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		select {
		case <-sigChan:
			logger.Info("shutting down server", "reason", "signal")
		case <-idleMonitor.ShutdownChan():
			logger.Info("shutting down server", "reason", "idle")
		}

		idleMonitor.Stop()
		cancel()
		jobWorker.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	logger.Info("starting server", "port", cfg.Port, "base_url", cfg.BaseURL)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
