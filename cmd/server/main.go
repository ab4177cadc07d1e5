package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tmoradi/kestrel/internal/alert"
	"github.com/tmoradi/kestrel/internal/bus"
	"github.com/tmoradi/kestrel/internal/config"
	"github.com/tmoradi/kestrel/internal/handler"
	"github.com/tmoradi/kestrel/internal/monitor"
	"github.com/tmoradi/kestrel/internal/scheduler"
	"github.com/tmoradi/kestrel/internal/upstream"
	"github.com/tmoradi/kestrel/pkg/middleware"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	config.InitLogger(cfg)

	slog.Info("Starting Kestrel Fleet Monitor", "version", version)

	// Initialize upstream client
	client := upstream.NewClient(cfg, nil)

	// Initialize websocket hub
	hub := bus.NewHub(cfg)

	// Initialize alert engine
	alerts, err := alert.NewEngine(cfg, hub)
	if err != nil {
		slog.Error("Failed to initialize alert engine", "error", err)
		os.Exit(1)
	}

	// Watch the rules file for changes
	var watchStop chan struct{}
	if cfg.AlertRulesPath != "" {
		watchStop = make(chan struct{})
		if err := alert.WatchRules(alerts, cfg.AlertRulesPath, watchStop); err != nil {
			slog.Warn("Failed to watch alert rules file", "path", cfg.AlertRulesPath, "error", err)
		}
	}

	// Initialize monitoring engine
	engine := monitor.NewEngine(cfg, client, hub, alerts)

	// Initialize scheduler
	sched, err := scheduler.New(cfg, engine, hub)
	if err != nil {
		slog.Error("Failed to initialize scheduler", "error", err)
		os.Exit(1)
	}
	sched.Start()

	// Initialize handlers
	jobsHandler := handler.NewJobsHandler(cfg, engine, client)
	backendsHandler := handler.NewBackendsHandler(client)
	monitorHandler := handler.NewMonitorHandler(sched, engine, client)
	alertsHandler := handler.NewAlertsHandler(alerts)
	healthHandler := handler.NewHealthHandler(client, sched, version)

	// Create CORS config
	corsConfig := middleware.CORSConfig{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   cfg.CORSAllowedMethods,
		AllowedHeaders:   cfg.CORSAllowedHeaders,
		AllowCredentials: cfg.CORSAllowCredentials,
		MaxAge:           cfg.CORSMaxAge,
	}

	// Create router
	router := handler.NewRouter(
		jobsHandler,
		backendsHandler,
		monitorHandler,
		alertsHandler,
		healthHandler,
		hub,
		corsConfig,
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Handler(),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}

	// Start server in goroutine
	go func() {
		slog.Info("Starting HTTP server", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	slog.Info("Received shutdown signal, initiating graceful shutdown")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop watching the rules file
	if watchStop != nil {
		close(watchStop)
	}

	// Stop scheduler first (waits for any in-flight cycle)
	slog.Info("Stopping scheduler...")
	sched.Stop()

	// Shutdown HTTP server
	slog.Info("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Kestrel Fleet Monitor stopped")
}
