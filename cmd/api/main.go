package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/simtrek/esim_api/internal/cache"
	"github.com/simtrek/esim_api/internal/config"
	"github.com/simtrek/esim_api/internal/database"
	"github.com/simtrek/esim_api/internal/handler"
	"github.com/simtrek/esim_api/internal/middleware"
	"github.com/simtrek/esim_api/internal/repository"
	"github.com/simtrek/esim_api/internal/service"
	"github.com/simtrek/esim_api/internal/worker"
	"github.com/simtrek/esim_api/pkg/esimaccess"
	"github.com/simtrek/esim_api/pkg/esimgo"
)

// main is the application entrypoint for the Simtrek fulfillment API.
func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logger
	setupLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Msg("starting esim api")

	// 3. Connect database
	db, err := database.Connect(&cfg.DB)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "database connection failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// 3a. Run migrations
	if err := runMigrations(db.DB); err != nil {
		log.Error().Err(err).Msg("migration failed")
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}
	log.Info().Msg("migrations completed successfully")

	// 3b. Connect to Redis
	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Error().Err(err).Msg("redis connection failed")
		fmt.Fprintf(os.Stderr, "redis connection failed: %v\n", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected successfully")

	offerCache := cache.NewOfferCache(redisClient)

	// 4. Initialize repositories
	clientRepo := repository.NewClientRepository(db)
	adminRepo := repository.NewAdminUserRepository(db)
	providerRepo := repository.NewProviderRepository(db)
	productRepo := repository.NewProductRepository(db)
	offerRepo := repository.NewOfferRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	syncLogRepo := repository.NewSyncLogRepository(db)

	// 5. Register provider adapters. Missing credentials leave a provider
	// unregistered rather than failing boot.
	registry := service.NewAdapterRegistry()
	if cfg.EsimAccess.AccessCode != "" && cfg.EsimAccess.Secret != "" {
		registry.Register(service.NewEsimAccessAdapter(esimaccess.NewClient(esimaccess.Config{
			BaseURL:    cfg.EsimAccess.BaseURL,
			AccessCode: cfg.EsimAccess.AccessCode,
			Secret:     cfg.EsimAccess.Secret,
		})))
		log.Info().Msg("eSIM Access provider registered")
	} else {
		log.Warn().Msg("eSIM Access credentials missing - provider disabled")
	}
	if cfg.EsimGo.APIKey != "" {
		registry.Register(service.NewEsimGoAdapter(esimgo.NewClient(cfg.EsimGo.BaseURL, cfg.EsimGo.APIKey)))
		log.Info().Msg("eSIM Go provider registered")
	} else {
		log.Warn().Msg("eSIM Go credentials missing - provider disabled")
	}

	// 6. Initialize services
	authSvc := service.NewAuthService(clientRepo)
	adminAuthSvc := service.NewAdminAuthService(adminRepo)
	clientSvc := service.NewClientService(clientRepo)
	syncSvc := service.NewCatalogSyncService(registry, providerRepo, productRepo, syncLogRepo)
	pricingSvc := service.NewPricingService(productRepo, offerRepo, settingsRepo, redisClient)
	offerSvc := service.NewOfferService(offerRepo, settingsRepo, offerCache)
	settingsSvc := service.NewSettingsService(settingsRepo, offerRepo)
	fulfillmentSvc := service.NewFulfillmentService(registry, offerRepo, productRepo, providerRepo, orderRepo, cfg.Fulfillment)
	balanceSvc := service.NewBalanceService(registry, settingsRepo, service.NewLogNotifier())
	esimSvc := service.NewEsimService(registry)

	// 7. Initialize handlers
	handlers := &Handlers{
		Health:      handler.NewHealthHandler(balanceSvc),
		Offer:       handler.NewOfferHandler(offerSvc),
		Fulfillment: handler.NewFulfillmentHandler(fulfillmentSvc, offerSvc, orderRepo, redisClient),
		Esim:        handler.NewEsimHandler(esimSvc),
		Catalog:     handler.NewCatalogHandler(syncSvc, syncLogRepo),
		Pricing:     handler.NewPricingHandler(pricingSvc),
		Provider:    handler.NewProviderHandler(providerRepo, balanceSvc),
		Settings:    handler.NewSettingsHandler(settingsSvc),
		Client:      handler.NewClientHandler(clientSvc),
		Auth:        handler.NewAuthHandler(adminAuthSvc),
	}

	// 8. Initialize middleware
	authMw := middleware.NewAuthMiddleware(authSvc)
	jwtMw := middleware.NewJWTMiddleware()

	// 9. Setup router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.LoggingMiddleware())
	setupRoutes(router, handlers, authMw, jwtMw)

	// 10. Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 11. Start workers
	go worker.NewCatalogSyncWorker(syncSvc, cfg.Worker.CatalogSyncInterval).Start(ctx)
	go worker.NewPricingWorker(pricingSvc, cfg.Worker.PricingRebuildInterval).Start(ctx)
	go worker.NewBalanceWorker(balanceSvc, cfg.Worker.BalanceCheckInterval).Start(ctx)

	// 12. Start HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// 13. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// 14. Cancel context to stop workers
	cancel()

	// 15. Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

// Handlers groups all HTTP handlers used by the server.
type Handlers struct {
	Health      *handler.HealthHandler
	Offer       *handler.OfferHandler
	Fulfillment *handler.FulfillmentHandler
	Esim        *handler.EsimHandler
	Catalog     *handler.CatalogHandler
	Pricing     *handler.PricingHandler
	Provider    *handler.ProviderHandler
	Settings    *handler.SettingsHandler
	Client      *handler.ClientHandler
	Auth        *handler.AuthHandler
}

// setupRoutes registers all routes.
func setupRoutes(router *gin.Engine, handlers *Handlers, authMiddleware *middleware.AuthMiddleware, jwtMiddleware *middleware.JWTMiddleware) {
	router.GET("/v1/health", handlers.Health.GetHealth)

	// Storefront/checkout routes (protected with client API key)
	api := router.Group("/v1")
	api.Use(authMiddleware.Handle())
	{
		api.GET("/offers", handlers.Offer.ListOffers)
		api.GET("/offers/:sku", handlers.Offer.GetOffer)
		api.GET("/offers/:sku/quote", handlers.Offer.QuoteOffer)

		api.POST("/fulfillments", handlers.Fulfillment.Fulfill)
		api.GET("/fulfillments/:reference", handlers.Fulfillment.GetOrder)

		api.GET("/esims/:iccid", handlers.Esim.GetStatus)
		api.POST("/esims/:iccid/topup", handlers.Esim.TopUp)
	}

	// Admin routes
	admin := router.Group("/v1/admin")
	admin.POST("/auth/login", handlers.Auth.Login)
	admin.Use(jwtMiddleware.Handle())
	{
		// Client Management
		admin.POST("/clients", handlers.Client.CreateClient)
		admin.GET("/clients", handlers.Client.ListClients)
		admin.GET("/clients/:id", handlers.Client.GetClient)
		admin.GET("/clients/by-client-id/:client_id", handlers.Client.GetClientByClientID)
		admin.PUT("/clients/:id", handlers.Client.UpdateClient)
		admin.POST("/clients/:id/regenerate", handlers.Client.RegenerateKeys)

		// Catalogue maintenance
		admin.POST("/catalog/sync", handlers.Catalog.SyncAll)
		admin.POST("/catalog/sync/:slug", handlers.Catalog.SyncProvider)
		admin.POST("/catalog/prune/:slug", handlers.Catalog.PruneStale)
		admin.GET("/catalog/sync-logs", handlers.Catalog.GetSyncLogs)

		// Pricing
		admin.POST("/pricing/rebuild", handlers.Pricing.Rebuild)
		admin.GET("/settings", handlers.Settings.GetSettings)
		admin.PUT("/settings", handlers.Settings.UpdateSettings)

		// Provider Management
		admin.GET("/providers", handlers.Provider.ListProviders)
		admin.PATCH("/providers/:id", handlers.Provider.UpdateProvider)
		admin.GET("/providers/balances", handlers.Provider.GetBalances)
		admin.GET("/providers/health", handlers.Provider.GetHealth)
	}
}

// runMigrations runs database migrations using golang-migrate.
func runMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migration instance: %w", err)
	}

	// Run migrations
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func setupLogger(env string) {
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
