package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/ccsit-tools/schedule-api/api/swagger"
	"github.com/ccsit-tools/schedule-api/internal/handler"
	"github.com/ccsit-tools/schedule-api/internal/middleware"
	"github.com/ccsit-tools/schedule-api/internal/repository"
	"github.com/ccsit-tools/schedule-api/internal/service"
	"github.com/ccsit-tools/schedule-api/pkg/cache"
	"github.com/ccsit-tools/schedule-api/pkg/config"
	"github.com/ccsit-tools/schedule-api/pkg/database"
	"github.com/ccsit-tools/schedule-api/pkg/logger"
	corsmiddleware "github.com/ccsit-tools/schedule-api/pkg/middleware/cors"
	reqidmiddleware "github.com/ccsit-tools/schedule-api/pkg/middleware/requestid"
	"github.com/ccsit-tools/schedule-api/pkg/storage"
)

// @title CCSIT Schedule Builder API
// @version 1.0.0
// @description Course catalog and conflict-free timetable generation service
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	if err := database.EnsureSchema(db); err != nil {
		logr.Sugar().Fatalw("failed to apply database schema", "error", err)
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Catalog.CacheTTL, logr, cfg.Catalog.CacheEnabled)
	courseRepo := repository.NewCourseRepository(db)
	ingestSvc := service.NewIngestService(logr)
	catalogSvc := service.NewCatalogService(courseRepo, ingestSvc, cacheSvc, logr, cfg.Catalog.SnapshotDir)
	timetableSvc := service.NewTimetableService(catalogSvc, metrics, nil, logr, cfg.Generator.MaxCourses)

	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(exportStore, signer, nil, logr, service.ExportConfig{
		Enabled: cfg.Exports.Enabled,
		Workers: cfg.Exports.WorkerConcurrency,
		Retries: cfg.Exports.WorkerRetries,
		FileTTL: cfg.Exports.SignedURLTTL,
	})
	exportSvc.Start(ctx)
	defer exportSvc.Stop()

	go runCatalogRefresh(ctx, catalogSvc, cfg.Catalog.RefreshInterval, logr.Sugar())
	go runExportCleanup(ctx, exportSvc, cfg.Exports.CleanupInterval)

	catalogHandler := handler.NewCatalogHandler(catalogSvc)
	timetableHandler := handler.NewTimetableHandler(timetableSvc, cfg.Generator.RequestTimeout)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metrics)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if !catalogSvc.Ready(c.Request.Context()) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "catalog empty"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)
	r.GET("/downloads/:token", exportHandler.Download)

	api := r.Group(cfg.APIPrefix)
	{
		api.GET("/courses", catalogHandler.List)
		api.GET("/courses/:code", catalogHandler.Get)
		api.POST("/timetables/generate", timetableHandler.Generate)
		api.POST("/timetables/export", exportHandler.Submit)
		api.GET("/exports/:id", exportHandler.Status)

		admin := api.Group("/admin", middleware.AdminOnly(cfg.Admin.TokenSecret))
		admin.POST("/catalog/refresh", catalogHandler.Refresh)
	}

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
}

// runCatalogRefresh loads snapshots at startup and again on every tick so
// a newly scraped snapshot is picked up without a restart.
func runCatalogRefresh(ctx context.Context, catalog *service.CatalogService, interval time.Duration, log *zap.SugaredLogger) {
	refresh := func() {
		reports, err := catalog.Refresh(ctx, nil)
		if err != nil {
			log.Warnw("catalog refresh failed", "error", err)
			return
		}
		log.Infow("catalog refreshed", "snapshots", len(reports))
	}

	refresh()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}

func runExportCleanup(ctx context.Context, exports *service.ExportService, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			exports.CleanupExpired()
		}
	}
}
