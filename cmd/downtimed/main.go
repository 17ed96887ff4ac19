package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	log "github.com/sirupsen/logrus"

	"downtime-report-backend/config"
	"downtime-report-backend/internal/api"
	"downtime-report-backend/internal/db"
	"downtime-report-backend/internal/inbox"
	"downtime-report-backend/internal/ingest"
	"downtime-report-backend/internal/mw"
	"downtime-report-backend/internal/notification"
	"downtime-report-backend/internal/store"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	cfg.ConfigureLogging()
	log.Infof("configuration loaded successfully from %s", configPath)

	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	log.Info("database initialized successfully")

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)

	// Critical downtime alerts are only sent when VAPID keys are configured.
	var alerts ingest.AlertDispatcher
	if cfg.Push.Enabled() {
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, &webpushOptions, cfg.Push.SendsPerSecond)
		pool.Start(ctx)
		alerts = pool
	} else {
		log.Warn("VAPID keys are not configured; critical downtime alerts are disabled")
	}

	responses := mw.NewResponseCache(cfg.Server.CacheTTL)
	ingestSvc := ingest.NewService(cfg, appStore, alerts)
	ingestSvc.OnChange(responses.Flush)

	// Watch the inbox directory in the background, if one is configured
	go inbox.NewService(cfg, ingestSvc).Run(ctx)

	// Initialize router
	handler := api.NewHandler(cfg, appStore, ingestSvc, &webpushOptions)
	router := api.NewRouter(handler, responses)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start the server in a goroutine
	go func() {
		log.Infof("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	log.Info("Shutdown signal received, stopping services...")

	// Create a deadline to wait for.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("HTTP server Shutdown: %v", err)
	}

	log.Info("Server gracefully stopped")
}
