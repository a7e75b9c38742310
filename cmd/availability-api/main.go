package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/slotswap-availability/api/swagger"
	"github.com/noah-isme/slotswap-availability/internal/bookingclient"
	"github.com/noah-isme/slotswap-availability/internal/calendarfeed"
	"github.com/noah-isme/slotswap-availability/internal/handler"
	"github.com/noah-isme/slotswap-availability/internal/middleware"
	"github.com/noah-isme/slotswap-availability/internal/notify"
	"github.com/noah-isme/slotswap-availability/internal/repository"
	"github.com/noah-isme/slotswap-availability/internal/service"
	"github.com/noah-isme/slotswap-availability/pkg/cache"
	"github.com/noah-isme/slotswap-availability/pkg/config"
	"github.com/noah-isme/slotswap-availability/pkg/database"
	"github.com/noah-isme/slotswap-availability/pkg/jobs"
	"github.com/noah-isme/slotswap-availability/pkg/logger"
	corsmiddleware "github.com/noah-isme/slotswap-availability/pkg/middleware/cors"
	ratelimitmiddleware "github.com/noah-isme/slotswap-availability/pkg/middleware/ratelimit"
	reqidmiddleware "github.com/noah-isme/slotswap-availability/pkg/middleware/requestid"
)

// @title Slotswap Availability API
// @version 1.0.0
// @description Blocked days, free windows and slot validation for slot-swap calendars.
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc := cfg.Location()
	metrics := service.NewMetricsService()
	checks := map[string]handler.Pinger{}

	booking, sourceName, closeSource := bookingSource(cfg, logr, checks)
	defer closeSource()

	var cacheRepo *repository.CacheRepository
	if cfg.Availability.CacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, availability cache disabled", "error", err)
		} else {
			cacheRepo = repository.NewCacheRepository(client, logr)
			checks["redis"] = cacheRepo
			defer cacheRepo.Close() //nolint:errcheck
		}
	}
	cacheSvc := service.NewCacheService(cacheRepoOrNil(cacheRepo), metrics, cfg.Availability.CacheTTL, logr, cacheRepo != nil)

	var feeds []service.RangeSource
	var feedStore *calendarfeed.Store
	if cfg.Feeds.Enabled && len(cfg.Feeds.Subscribed) > 0 {
		fetcher := calendarfeed.NewFetcher(&http.Client{Timeout: 30 * time.Second}, cfg.Feeds.CacheDir, logr)
		feedStore = calendarfeed.NewStore(fetcher, cfg.Feeds.Subscribed, loc, cfg.Feeds.HorizonDays, logr)
		feeds = append(feeds, feedStore)
	}

	policy := service.NewSchedulingPolicy(cfg.Scheduling, loc)
	availabilitySvc := service.NewAvailabilityService(booking, feeds, cacheSvc, metrics, policy, nil, logr, service.AvailabilityServiceConfig{
		SourceName: sourceName,
		CacheTTL:   cfg.Availability.CacheTTL,
	})
	reportSvc := service.NewReportService(availabilitySvc, logr)
	tokenSvc := service.NewTokenService(cfg.JWT.Secret)

	refreshSvc := service.NewRefreshService(availabilitySvc, metrics, logr, jobs.QueueConfig{
		Workers:    cfg.Refresh.Workers,
		BufferSize: cfg.Refresh.BufferSize,
		MaxRetries: cfg.Refresh.MaxRetries,
		RetryDelay: cfg.Refresh.RetryDelay,
	})
	refreshSvc.Start(ctx)
	defer refreshSvc.Stop()

	if feedStore != nil {
		scheduler, err := calendarfeed.NewScheduler(feedStore, cfg.Feeds.RefreshCron, loc, refreshSvc.OnFeedChange, logr)
		if err != nil {
			logr.Sugar().Fatalw("invalid calendar refresh schedule", "cron", cfg.Feeds.RefreshCron, "error", err)
		}
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	var hub *notify.Hub
	if cfg.Notify.Enabled && cfg.Notify.StreamURL != "" {
		subscriber := notify.NewSubscriber(cfg.Notify, &http.Client{}, refreshSvc.HandleSignal, logr)
		hub = notify.NewHub(ctx, subscriber, logr)
		defer hub.Close()
	}

	var limiter *ratelimitmiddleware.Store
	if cfg.RateLimit.RPS > 0 {
		limiter = ratelimitmiddleware.NewStore(cfg.RateLimit.RPS, cfg.RateLimit.Burst, 10*time.Minute)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	metricsHandler := handler.NewMetricsHandler(metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	availabilityHandler := handler.NewAvailabilityHandler(availabilitySvc, hub)
	reportHandler := handler.NewReportHandler(reportSvc)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(tokenSvc))
	api.Use(ratelimitmiddleware.Middleware(limiter, middleware.UserKey, logr))
	api.Use(middleware.WithResponseMeta())

	availability := api.Group("/availability")
	availability.GET("/blocked-days", availabilityHandler.BlockedDays)
	availability.GET("/window", availabilityHandler.Window)
	availability.POST("/validate", availabilityHandler.Validate)
	availability.GET("/summary", availabilityHandler.Summary)
	availability.GET("/policy", availabilityHandler.Policy)
	availability.POST("/invalidate", availabilityHandler.Invalidate)
	availability.GET("/report", reportHandler.Download)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "source", sourceName)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server forced to shutdown", "error", err)
	}
}

// bookingSource picks the REST client or the shared-database adapter.
func bookingSource(cfg *config.Config, logr *zap.Logger, checks map[string]handler.Pinger) (service.BookingSource, string, func()) {
	if cfg.Availability.Source == config.SourcePostgres {
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to booking database", "error", err)
		}
		repo := repository.NewBookingRepository(db)
		checks["postgres"] = repo
		return repo, "booking_postgres", func() { _ = db.Close() }
	}

	client := bookingclient.New(cfg.Booking, cfg.Location(), nil, logr)
	checks["booking"] = client
	return client, "booking_rest", func() {}
}

// cacheRepoOrNil keeps a nil repository from becoming a non-nil interface.
func cacheRepoOrNil(repo *repository.CacheRepository) service.CacheRepository {
	if repo == nil {
		return nil
	}
	return repo
}
