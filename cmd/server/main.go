package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/cardlens/backend/config"
	httpDelivery "github.com/cardlens/backend/internal/delivery/http"
	"github.com/cardlens/backend/internal/infrastructure/cache"
	"github.com/cardlens/backend/internal/infrastructure/catalog"
	"github.com/cardlens/backend/internal/infrastructure/postgres"
	"github.com/cardlens/backend/internal/tracker"
	"github.com/cardlens/backend/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting CardLens Backend v1.0.0")
	log.Printf("Environment: %s", cfg.Server.Environment)
	log.Printf("Port: %s", cfg.Server.Port)
	log.Printf("Cache TTL: %s", cfg.Cache.TTL)

	// Initialize infrastructure dependencies
	memoryCache := cache.NewMemoryCache()

	catalogClient, err := catalog.NewClient(
		cfg.Catalog.APIKey,
		cfg.Catalog.BaseURL,
		catalog.WithTimeout(cfg.Catalog.Timeout),
		catalog.WithRetries(cfg.Catalog.Retries),
	)
	if err != nil {
		log.Fatalf("Failed to create catalog client: %v", err)
	}

	// Enable debug mode in development environment
	if cfg.Server.Environment == "development" {
		catalogClient.SetDebug(true)
		log.Printf("Catalog client debug mode enabled")
	}
	log.Printf("Pricing catalog configured: %s", cfg.Catalog.BaseURL)

	pacer := catalog.NewPacer(cfg.Catalog.PacerDelay)

	// Initialize usecase layer
	resolver := usecase.NewResolver(catalogClient, pacer, usecase.ResolverConfig{
		HighThreshold:      cfg.Matching.HighThreshold,
		MediumThreshold:    cfg.Matching.MediumThreshold,
		EnableDebugLogging: cfg.Matching.EnableDebugLogging,
	})

	priceService := usecase.NewPriceService(memoryCache, resolver, usecase.PriceServiceConfig{
		CacheTTL: cfg.Cache.TTL,
	})

	log.Printf("Matching thresholds: high=%d, medium=%d, debug=%v",
		cfg.Matching.HighThreshold,
		cfg.Matching.MediumThreshold,
		cfg.Matching.EnableDebugLogging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Optional batch price tracker
	if cfg.Tracker.Enabled {
		store, err := postgres.NewStore(ctx, postgres.Config{
			DSN:    cfg.Tracker.PostgresDSN,
			Schema: cfg.Tracker.Schema,
		})
		if err != nil {
			log.Fatalf("Failed to connect tracker store: %v", err)
		}
		defer store.Close()

		trk := tracker.New(store, resolver, tracker.Config{
			GroupSize:  cfg.Tracker.GroupSize,
			GroupDelay: cfg.Tracker.GroupDelay,
			StaleAfter: cfg.Tracker.StaleAfter,
			BatchLimit: cfg.Tracker.BatchLimit,
		})
		go trk.Start(ctx, cfg.Tracker.Interval)
		log.Printf("Price tracker enabled: interval=%s, batch=%d", cfg.Tracker.Interval, cfg.Tracker.BatchLimit)
	}

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(priceService)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("Server listening on %s", addr)

	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func init() {
	// Set log flags for better debugging
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(os.Stdout)
}
