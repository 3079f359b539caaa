package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/api"
	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/auth"
	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/catalog"
	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/config"
	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/engine"
	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/metrics"
	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/push"
	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/reset"
	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/storage"
	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/websocket"
	"github.com/LeonidMehandzhijski/Break-Scheduler/pkg/middleware"
)

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("log_level", cfg.LogLevel).
		Str("timezone", cfg.Timezone.String()).
		Msg("starting break scheduler server")

	// Load the shift and break catalog
	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		cat, err = catalog.Load(cfg.CatalogPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.CatalogPath).Msg("failed to load catalog")
		}
		log.Info().Str("path", cfg.CatalogPath).Msg("catalog loaded")
	}

	// Create context for services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create the store (memory, local DynamoDB or AWS, per DYNAMO_MODE)
	store, err := storage.NewStore(ctx, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage")
	}

	// Create WebSocket hub
	hub := websocket.NewHub(log.Logger)
	go hub.Run()

	// Snapshot broadcaster bridges engine commits to the hub
	broadcaster := push.NewBroadcaster(store, hub, cfg.Timezone, log.Logger)
	go broadcaster.Run(ctx)

	// Create the break engine
	eng := engine.New(store, cat, broadcaster, cfg.Timezone, log.Logger)

	// Pre-generate today's schedule so the first snapshot is complete
	if _, err := eng.EnsureSchedule(ctx, eng.Today()); err != nil {
		log.Error().Err(err).Msg("failed to pre-generate today's schedule")
	}

	// Daily reset checker
	resetChecker := reset.NewChecker(eng, cfg.ResetCheckInterval, log.Logger)
	go resetChecker.Start(ctx)

	// Create handlers
	wsHandler := websocket.NewHandler(hub, cfg, broadcaster, log.Logger)
	breaksHandler := api.NewBreaksHandler(eng, log.Logger)
	scheduleHandler := api.NewScheduleHandler(eng, store, log.Logger)
	adminHandler := api.NewAdminHandler(eng, log.Logger)

	// Create router
	r := chi.NewRouter()

	// Add middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Register public routes (no auth required)
	r.Get("/health", healthHandler)

	// Internal routes (no auth - scraped by local tooling)
	r.Route("/internal", func(r chi.Router) {
		r.Get("/metrics", metrics.Get().Handler())
	})

	// Add auth middleware for protected routes
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)
		r.Get("/ws", wsHandler.ServeHTTP)

		r.Route("/api", func(r chi.Router) {
			r.Post("/breaks/assign", breaksHandler.Assign)
			r.Post("/breaks/status", breaksHandler.SetStatus)
			r.Get("/agents", scheduleHandler.ListAgents)
			r.Get("/schedule/{date}", scheduleHandler.GetSchedule)

			r.With(api.RequireAdmin).Post("/reset", adminHandler.Reset)
		})
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Stop background services
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"break-scheduler"}`)
}
