package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"travelagent/config"
	"travelagent/database"
	"travelagent/handlers"
	"travelagent/middleware"
	"travelagent/services/booking"
	"travelagent/services/cache"
	"travelagent/services/flights"
	"travelagent/services/hotels"
	"travelagent/services/inventory"
	"travelagent/services/location"
	"travelagent/services/prompt"
	"travelagent/services/trip"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: failed to load config: %v", err)
	}
	logger, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("main: failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	store, err := database.Open(ctx, cfg.DSN(), logger)
	if err != nil {
		logger.Fatal("main: failed to open database", zap.Error(err))
	}
	defer store.Close()

	session := inventory.NewSession(inventory.Config{
		BaseURL:           cfg.InventoryBaseURL(),
		ClientID:          cfg.AmadeusClientID,
		ClientSecret:      cfg.AmadeusClientSecret,
		Timeout:           cfg.InventoryTimeout(),
		RequestsPerSecond: cfg.InventoryRPS,
		ProbePath:         cfg.InventoryProbePath,
	}, logger)
	if !session.Configured() {
		logger.Warn("main: AMADEUS_CLIENT_ID/AMADEUS_CLIENT_SECRET not set, trip searches will fail")
	}

	backoff := inventory.Backoff{
		Attempts: cfg.InventoryMaxRetries,
		Base:     cfg.InventoryBackoff(),
		Pause:    cfg.InventoryPause(),
	}

	resolverOpts := []location.Option{location.WithBackoff(backoff), location.WithLogger(logger)}
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Warn("main: redis unavailable, location codes are cached in memory only", zap.Error(err))
		} else {
			defer rdb.Close()
			resolverOpts = append(resolverOpts, location.WithStore(cache.NewRedisStore(rdb, "travelagent:"), cfg.LocationCacheTTL()))
		}
	}
	resolver := location.NewResolver(session, resolverOpts...)

	flightEngine := flights.NewEngine(session,
		flights.WithBackoff(backoff),
		flights.WithCabinPolicy(flights.ParseCabinPolicy(cfg.CabinPolicy)),
		flights.WithMaxOffers(cfg.FlightMaxOffers),
		flights.WithLogger(logger),
	)
	hotelEngine := hotels.NewEngine(session,
		hotels.WithMaxCandidates(cfg.HotelMaxCandidates),
		hotels.WithRetry(cfg.HotelRetryAttempts, cfg.HotelRetryDelay()),
		hotels.WithLogger(logger),
	)

	interpreter := prompt.FromSettings(prompt.Settings{
		Strategy:     cfg.PromptStrategy,
		DateStrategy: cfg.DateStrategy,
		HFAPIKey:     cfg.HFAPIKey,
		HFModel:      cfg.HFModel,
		OpenAIAPIKey: cfg.OpenAIAPIKey,
		OpenAIModel:  cfg.OpenAIModel,
	}, logger)

	trips := trip.NewService(interpreter, resolver, flightEngine, hotelEngine, session,
		trip.WithRecorder(store),
		trip.WithMaxResults(cfg.MaxResults, cfg.HotelMaxResults),
		trip.WithOfferTTL(cfg.OfferCacheTTL()),
		trip.WithTimeout(cfg.RequestTimeout()),
		trip.WithLogger(logger),
	)
	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go trips.SweepOffers(janitorCtx, 5*time.Minute)

	bookings := booking.NewService(trips, booking.NewOrders(session), store, booking.WithLogger(logger))

	if cfg.GinMode == gin.ReleaseMode || cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Proxies()); err != nil {
		logger.Fatal("main: failed to set trusted proxies", zap.Error(err))
	}
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestLogger(logger.Named("access")))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.RateLimit(middleware.NewRateLimiter(cfg.RateLimitPerMinute), logger))

	handlers.New(trips, bookings, store, session, logger).Register(router)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout() + 30*time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	logger.Info("Travel agent backend starting", zap.String("addr", srv.Addr))
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("main: server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("main: server is shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("main: server forced to shutdown", zap.Error(err))
	}
	logger.Info("main: server stopped")
}
