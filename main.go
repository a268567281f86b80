package main

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hashirwa/oracle-backend/config"
	"github.com/hashirwa/oracle-backend/database"
	"github.com/hashirwa/oracle-backend/handlers"
	"github.com/hashirwa/oracle-backend/jobs"
	"github.com/hashirwa/oracle-backend/services"
	"github.com/hashirwa/oracle-backend/shared"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load config
	cfg := config.LoadConfig()

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}

	// Issuer catalog: Postgres when configured, JSON seed otherwise
	catalog := services.NewIssuerCatalog()
	if cfg.DatabaseURL != "" {
		if err := database.Connect(cfg.DatabaseURL); err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()

		if err := database.Migrate("database/schema.sql"); err != nil {
			log.Printf("Migration warning: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		issuers, err := database.FetchIssuers(ctx)
		cancel()
		if err != nil {
			log.Fatalf("Failed to load issuer catalog: %v", err)
		}
		catalog.Replace(issuers)
	} else {
		if err := catalog.LoadSeedFile(cfg.SeedPath); err != nil {
			log.Printf("Seed warning: %v (starting with an empty catalog)", err)
		}
	}

	// Initialize services
	httpFactory := shared.NewHTTPClientFactory(10 * time.Second)
	shimService := services.NewShimService(catalog)
	ledger := services.NewFulfillmentLedger()
	marketplaceStore := services.NewMarketplaceStore(catalog)
	dispatcher := services.NewNotificationDispatcher(marketplaceStore)
	coordinator := services.NewFulfillmentCoordinator(ledger, marketplaceStore, dispatcher, cfg.GetFulfillmentTimeout())
	oracleClient := services.NewOracleClient(cfg.OracleSubmitURL, cfg.GetSubmitMaxRetries(), httpFactory)
	datasetSync := services.NewDatasetSyncService(catalog, cfg.DatasetURL, httpFactory)

	logrus.WithFields(logrus.Fields{
		"issuers":             catalog.Size(),
		"refresh_interval":    cfg.GetRefreshInterval(),
		"fulfillment_timeout": cfg.GetFulfillmentTimeout(),
		"oracle_loopback":     oracleClient.Loopback(),
	}).Info("Oracle backend services initialized")

	// Initialize jobs
	schedulerJob := jobs.NewRefreshSchedulerJob(ledger, catalog, oracleClient, cfg.GetRefreshIssuerIDs(), cfg.GetRefreshInterval())
	expiryJob := jobs.NewFulfillmentExpiryJob(coordinator)
	datasetJob := jobs.NewDatasetSyncJob(datasetSync)

	// Initialize handlers
	shimHandler := handlers.NewShimHandler(shimService, coordinator)
	adminHandler := handlers.NewAdminHandler(schedulerJob, coordinator, ledger, catalog, datasetSync, shimService)
	documentHandler := handlers.NewDocumentHandler(marketplaceStore)
	watchlistHandler := handlers.NewWatchlistHandler(marketplaceStore)
	notificationHandler := handlers.NewNotificationHandler(marketplaceStore)

	// Start background jobs
	schedulerJob.Start()
	defer schedulerJob.Stop()

	go func() {
		sweepTicker := time.NewTicker(expiryJob.SweepInterval())
		datasetTicker := time.NewTicker(6 * time.Hour)
		defer sweepTicker.Stop()
		defer datasetTicker.Stop()

		for {
			select {
			case <-sweepTicker.C:
				expiryJob.Run()
			case <-datasetTicker.C:
				datasetJob.Run()
			}
		}
	}()

	// Setup Fiber
	app := fiber.New()

	// Middleware
	app.Use(logger.New())
	app.Use(cors.New())

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
		})
	})

	// Routes
	api := app.Group("/api/v1")

	// Oracle shim routes (consumed by the off-chain compute step)
	cl := api.Group("/cl")
	cl.Get("/cert", shimHandler.GetCert)
	cl.Get("/price", shimHandler.GetPrice)
	cl.Post("/callback", shimHandler.PostCallback)

	// Admin Routes
	admin := api.Group("/admin")
	// TODO: Add auth middleware
	admin.Post("/trigger_refresh", adminHandler.TriggerRefresh)
	admin.Post("/set_cert", adminHandler.SetCert)
	admin.Post("/set_price", adminHandler.SetPrice)
	admin.Post("/refresh_from_dataset", adminHandler.RefreshFromDataset)
	admin.Get("/rounds", adminHandler.GetRounds)
	admin.Get("/metrics", adminHandler.GetMetrics)

	// Marketplace routes
	app.Post("/documents/add/:listing_id", documentHandler.AddDocument)
	app.Get("/documents/:listing_id", documentHandler.ListDocuments)
	app.Post("/watchlist/toggle/:listing_id", watchlistHandler.Toggle)
	app.Get("/watchlist", watchlistHandler.List)
	app.Get("/notifications", notificationHandler.List)

	// Start server
	log.Printf("Server starting on port %s", cfg.ServerPort)
	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
