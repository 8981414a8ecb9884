// Command covenantd runs the covenant orchestration core: the HTTP/WebSocket
// API, the per-user Mediator actors, and the background cleanup and orphan
// sweep services.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codeready-toolchain/covenant/pkg/api"
	"github.com/codeready-toolchain/covenant/pkg/cleanup"
	"github.com/codeready-toolchain/covenant/pkg/config"
	"github.com/codeready-toolchain/covenant/pkg/database"
	"github.com/codeready-toolchain/covenant/pkg/events"
	"github.com/codeready-toolchain/covenant/pkg/mediator"
	"github.com/codeready-toolchain/covenant/pkg/metrics"
	"github.com/codeready-toolchain/covenant/pkg/orchestrator"
	"github.com/codeready-toolchain/covenant/pkg/orphan"
	"github.com/codeready-toolchain/covenant/pkg/provider"
	"github.com/codeready-toolchain/covenant/pkg/registry"
	"github.com/codeready-toolchain/covenant/pkg/router"
	"github.com/codeready-toolchain/covenant/pkg/store"
	"github.com/codeready-toolchain/covenant/pkg/subagent"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: Could not load %s file: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	gin.SetMode(getEnv("GIN_MODE", "debug"))

	log.Printf("Starting covenantd")
	log.Printf("HTTP Port: %s", httpPort)
	log.Printf("Config Directory: %s", *configDir)

	ctx := context.Background()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("Failed to initialize configuration: %v", err)
	}

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load database config: %v", err)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer dbClient.Close()
	log.Println("Connected to PostgreSQL database")

	covenantStore := store.NewCovenantStore(dbClient.Pool)

	catchupQuerier := events.NewPoolCatchupQuerier(dbClient.Pool)
	connManager := events.NewConnectionManager(catchupQuerier, 10*time.Second)
	notifyListener := events.NewNotifyListener(dbConfig.DSN(), connManager)
	connManager.SetListener(notifyListener)
	if err := notifyListener.Start(ctx); err != nil {
		log.Fatalf("Failed to start event listener: %v", err)
	}
	defer notifyListener.Stop(ctx)

	eventPublisher := events.NewEventPublisher(dbClient.Pool)

	promRegistry := prometheus.NewRegistry()
	metricsRegistry := metrics.NewRegistry(promRegistry)

	modelRegistry := registry.New(cfg.Models)
	providerClient := provider.New(cfg.Gateway, provider.WithMetricsSink(metricsRegistry), provider.WithCostTable(modelRegistry))
	smartRouter := router.New(modelRegistry, providerClient)
	subAgentExecutor := subagent.New(providerClient)

	dispatcher := orchestrator.NewDispatcher(covenantStore, eventPublisher, subAgentExecutor, modelRegistry, *cfg.Defaults)

	mediatorRegistry := mediator.NewRegistry(func(userID string) *mediator.Actor {
		return mediator.New(userID, covenantStore, smartRouter, eventPublisher, dispatcher, *cfg.Defaults, mediator.WithMetricsSink(metricsRegistry))
	})

	cleanupService := cleanup.NewService(cfg.Retention, covenantStore)
	cleanupService.Start(ctx)
	defer cleanupService.Stop()

	orphanSweeper := orphan.NewSweeper(covenantStore, *cfg.Defaults)
	orphanSweeper.Start(ctx)
	defer orphanSweeper.Stop()

	server := api.NewServer(cfg, dbClient, mediatorRegistry, covenantStore, connManager, promRegistry)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on :%s", httpPort)
		log.Printf("Health check available at: http://localhost:%s/health", httpPort)
		errCh <- server.Start(":" + httpPort)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("HTTP server failed: %v", err)
		}
	case sig := <-sigCh:
		slog.Info("Shutting down", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Graceful shutdown failed", "error", err)
		}
	}
}
