package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/trogers1052/outcome-tracker/internal/api"
	"github.com/trogers1052/outcome-tracker/internal/backfill"
	"github.com/trogers1052/outcome-tracker/internal/config"
	"github.com/trogers1052/outcome-tracker/internal/database"
	"github.com/trogers1052/outcome-tracker/internal/health"
	"github.com/trogers1052/outcome-tracker/internal/kafka"
	"github.com/trogers1052/outcome-tracker/internal/outcome"
	"github.com/trogers1052/outcome-tracker/internal/pricestore"
	"github.com/trogers1052/outcome-tracker/internal/provider"
	"github.com/trogers1052/outcome-tracker/internal/redis"
	"github.com/trogers1052/outcome-tracker/internal/registry"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Connect to database
	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := runMigrations(cfg.Database.ConnectionString()); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}
	log.Println("Connected to PostgreSQL database")

	// Connect to Redis (optional hot cache)
	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v (continuing without cache)", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
		log.Println("Connected to Redis cache")
	}

	// Create Kafka producer for audit events and alerts
	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic, cfg.Kafka.AlertsTopic)
	defer producer.Close()
	log.Printf("Kafka producer initialized (brokers: %v)", cfg.Kafka.Brokers)

	// Build the provider chain in priority order
	chain := provider.NewChain(
		provider.NewAlphaVantage(cfg.Providers.AlphaVantageKey, cfg.Providers.AlphaVantageBaseURL, cfg.Providers.RequestTimeout),
		provider.NewFinnhub(cfg.Providers.FinnhubKey, cfg.Providers.FinnhubBaseURL, cfg.Providers.RequestTimeout),
	)

	priceOpts := pricestore.Options{
		Repo:             db,
		Chain:            chain,
		Notifier:         producer,
		MaxRetries:       cfg.Fetch.MaxRetries,
		RetryDelay:       cfg.Fetch.RetryDelay,
		RetryBackoff:     cfg.Fetch.RetryBackoff,
		AlertDestination: cfg.Fetch.AlertDestination,
	}
	if redisClient != nil {
		priceOpts.Cache = redisClient
	}
	prices := pricestore.New(priceOpts)

	reg := registry.New(db, nil)

	calculator := outcome.New(outcome.Options{
		Repo:         db,
		Prices:       prices,
		Threshold:    cfg.Outcome.CorrectnessThreshold,
		PositionSize: cfg.Outcome.PositionSize,
		LookbackDays: cfg.Fetch.LookbackDays,
	})

	monitor := health.New(health.Options{
		Providers:        chain.Providers(),
		Repo:             db,
		Notifier:         producer,
		CanarySymbol:     cfg.Health.CanarySymbol,
		ThresholdHours:   cfg.Health.StalenessThresholdHours,
		AlertDestination: cfg.Fetch.AlertDestination,
	})

	orchestrator := backfill.New(backfill.Options{
		Registry:    reg,
		Prices:      prices,
		Calculator:  calculator,
		Publisher:   producer,
		Coverage:    db,
		Predictions: db,
		WindowDays:  cfg.Fetch.BackfillWindow,
	})

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create and start Kafka consumer for prediction events
	consumer := kafka.NewPredictionsConsumer(
		cfg.Kafka.Brokers,
		cfg.Kafka.PredictionsTopic,
		cfg.Kafka.ConsumerGroup,
		orchestrator,
	)
	go func() {
		log.Printf("Starting Kafka predictions consumer for topic: %s (group: %s-predictions)",
			cfg.Kafka.PredictionsTopic, cfg.Kafka.ConsumerGroup)
		if err := consumer.Start(ctx); err != nil {
			log.Printf("Kafka predictions consumer error: %v", err)
		}
	}()

	// Periodic health checks
	go func() {
		ticker := time.NewTicker(cfg.Health.CheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				report := monitor.RunHealthCheck(ctx, true, true)
				log.Printf("Health check: healthy=%v summary=%s", report.OverallHealthy, report.Summary)
			}
		}
	}()

	// Set up HTTP handler and routes
	handler := api.NewHandler(db, prices, reg, calculator, monitor, orchestrator)
	router := api.SetupRoutes(handler)

	// Create HTTP server
	addr := cfg.Server.Host + ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Cancel context to stop the Kafka consumer and health loop
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	// Close Kafka consumer
	if err := consumer.Close(); err != nil {
		log.Printf("Error closing Kafka consumer: %v", err)
	}

	log.Println("Server stopped")
}

func runMigrations(databaseUrl string) error {
	m, err := migrate.New("file://./db/migrations", databaseUrl)
	if err != nil {
		return err
	}

	// Apply all available migrations up to the latest version
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return err
	}
	if err == migrate.ErrNoChange {
		log.Println("No migrations to apply; database is up to date.")
	}
	return nil
}
