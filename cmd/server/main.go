// Package main is the entry point for the booking sync server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cleanbuz/booking-sync/internal/api"
	"github.com/cleanbuz/booking-sync/internal/config"
	"github.com/cleanbuz/booking-sync/internal/events"
	"github.com/cleanbuz/booking-sync/internal/feed"
	"github.com/cleanbuz/booking-sync/internal/logging"
	"github.com/cleanbuz/booking-sync/internal/storage"
	"github.com/cleanbuz/booking-sync/internal/syncer"
	"github.com/cleanbuz/booking-sync/internal/tasks"
	"github.com/cleanbuz/booking-sync/internal/websocket"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		os.Stderr.WriteString("logger error: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting booking sync server", zap.String("version", version))

	// Database
	db, err := storage.NewDB(filepath.Join(cfg.DataDir, "booking-sync.db"))
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	if err := storage.RunMigrations(db, logger); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	// Repositories
	feedRepo := storage.NewFeedRepository(db)
	bookingRepo := storage.NewBookingRepository(db)
	taskRepo := storage.NewTaskRepository(db)

	// WebSocket hub
	hub := websocket.NewHub(logger)
	go hub.Run()

	// Change event publisher and consumers
	publisher := events.NewPublisher(logger)
	publisher.Subscribe(tasks.NewGenerator(taskRepo, logger))
	publisher.Subscribe(websocket.NewBroadcaster(hub, logger))
	defer publisher.Close()

	// Sync pipeline
	fetcher := feed.NewFetcher(cfg.FetchTimeout, cfg.MaxFeedBytes)
	orchestrator := syncer.NewOrchestrator(feedRepo, bookingRepo, fetcher, publisher, logger, syncer.Options{
		MaxConcurrent:   cfg.MaxConcurrentSyncs,
		FetchRetries:    cfg.FetchRetries,
		RetryBackoff:    cfg.RetryBackoff,
		DropThreshold:   cfg.DropThreshold,
		DefaultTimezone: cfg.DefaultTimezone,
	})

	scheduler := syncer.NewScheduler(orchestrator, feedRepo, logger, cfg.DefaultSyncIntervalMin)
	if err := scheduler.Start(context.Background()); err != nil {
		logger.Warn("failed to start sync scheduler", zap.Error(err))
	}

	// HTTP server
	router := api.NewRouter(api.Deps{
		DB:                     db,
		Feeds:                  feedRepo,
		Bookings:               bookingRepo,
		Tasks:                  taskRepo,
		Orchestrator:           orchestrator,
		Scheduler:              scheduler,
		Hub:                    hub,
		Logger:                 logger,
		DefaultSyncIntervalMin: cfg.DefaultSyncIntervalMin,
	})

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.ServerAddr))
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	// Stop scheduling first so no new runs start; in-flight runs that have
	// reached persistence are allowed to complete.
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server shutdown error", zap.Error(err))
	}

	logger.Info("server stopped")
}
