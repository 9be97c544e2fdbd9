package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/user/shouldipickitup/internal/app"
	"github.com/user/shouldipickitup/internal/delivery/http/handler"
	"github.com/user/shouldipickitup/internal/delivery/http/router"
	"github.com/user/shouldipickitup/pkg/config"
	"github.com/user/shouldipickitup/pkg/logger"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Could not load config", "error", err)
		os.Exit(1)
	}

	// --- Logger ---
	log := logger.Init(os.Stdout, logger.ParseLevel(cfg.LogLevel))
	log.Info("Logger initialized", "level", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Stores and pipeline ---
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to start application", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// Crawls outlive the request that submitted them but not the process.
	crawlCtx, cancelCrawls := context.WithCancel(context.WithoutCancel(ctx))
	sourceManager := a.NewSourceManager(crawlCtx)

	// --- Scheduler ---
	scheduler := app.NewScheduler(crawlCtx, func(ctx context.Context) error {
		_, err := a.Batch.Run(ctx)
		return err
	}, log)
	if err := scheduler.Start(cfg.CrawlSchedule); err != nil {
		log.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	// --- HTTP Server ---
	checks := make(map[string]handler.Pinger, len(a.Checks))
	for name, p := range a.Checks {
		checks[name] = p
	}
	apiHandler := handler.NewHandler(handler.Deps{
		SourceManager: sourceManager,
		Records:       a.Gateway,
		Failures:      a.Failures,
		History:       a.History,
		Checks:        checks,
		Logger:        log,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router.New(apiHandler, log),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 70 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("Starting server", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Could not listen on port", "port", cfg.ServerPort, "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	cancelCrawls()
	scheduler.Stop()
	sourceManager.Wait()
	log.Info("Server exiting")
}
