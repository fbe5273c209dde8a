package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/estudio-sys/estudio-adm-api/api/swagger"
	"github.com/estudio-sys/estudio-adm-api/internal/handler"
	"github.com/estudio-sys/estudio-adm-api/internal/middleware"
	"github.com/estudio-sys/estudio-adm-api/internal/repository"
	"github.com/estudio-sys/estudio-adm-api/internal/service"
	"github.com/estudio-sys/estudio-adm-api/pkg/cache"
	"github.com/estudio-sys/estudio-adm-api/pkg/config"
	"github.com/estudio-sys/estudio-adm-api/pkg/database"
	"github.com/estudio-sys/estudio-adm-api/pkg/logger"
	corsmiddleware "github.com/estudio-sys/estudio-adm-api/pkg/middleware/cors"
	reqidmiddleware "github.com/estudio-sys/estudio-adm-api/pkg/middleware/requestid"
)

// @title Estudio ADM API
// @version 1.0.0
// @description Back-office API for studio membership and class verification
// @BasePath /api/v1
// @schemes http

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
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The API stays up without Redis; summaries are rebuilt on every
		// request and cadence state must be supplied by the caller.
		logr.Sugar().Warnw("redis unavailable, running without cache", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	clientRepo := repository.NewClientRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	verificationRepo := repository.NewVerificationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cadenceStateRepo := repository.NewCadenceStateRepository(redisClient, cfg.Reconciliation.CadenceStateKey)

	authSvc := service.NewAuthService(service.AuthConfig{
		Username:     cfg.Operator.Username,
		PasswordHash: cfg.Operator.PasswordHash,
		TokenSecret:  cfg.JWT.Secret,
		TokenExpiry:  cfg.JWT.Expiration,
		Issuer:       cfg.JWT.Issuer,
	}, validate, logr)
	clientSvc := service.NewClientService(clientRepo, ledgerRepo, validate, logr)
	verificationSvc := service.NewVerificationService(verificationRepo, ledgerRepo, validate, logr)
	reconciliationSvc := service.NewReconciliationService(clientRepo, ledgerRepo, verificationRepo, cacheRepo, cfg.Reconciliation.SummaryCacheTTL, validate, logr)
	cadenceSvc := service.NewCadenceService(clientRepo, ledgerRepo, verificationRepo, cadenceStateRepo, validate, logr)
	exportSvc := service.NewExportService(verificationRepo, service.ExportConfig{MaxRows: cfg.Exports.MaxRows}, logr, nil, nil)
	metricsSvc := service.NewMetricsService()

	authHandler := handler.NewAuthHandler(authSvc)
	clientHandler := handler.NewClientHandler(clientSvc)
	verificationHandler := handler.NewVerificationHandler(verificationSvc, exportSvc, metricsSvc)
	reconciliationHandler := handler.NewReconciliationHandler(reconciliationSvc, cadenceSvc, metricsSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))
	{
		protected.GET("/clients", clientHandler.List)
		protected.POST("/clients", clientHandler.Create)
		protected.GET("/clients/:dni", clientHandler.Get)
		protected.PUT("/clients/:dni", clientHandler.Update)
		protected.DELETE("/clients/:dni", clientHandler.Delete)
		protected.GET("/ledger", clientHandler.Ledger)
		protected.GET("/ledger/:dni", clientHandler.LedgerByDNI)

		protected.GET("/verifications", verificationHandler.List)
		protected.POST("/verifications", verificationHandler.MarkPresencial)
		protected.DELETE("/verifications/:id", verificationHandler.Delete)
		protected.GET("/verifications/export", verificationHandler.Export)

		protected.GET("/reconciliation/weekly", reconciliationHandler.WeeklySummary)
		protected.POST("/reconciliation/confirm", reconciliationHandler.Confirm)
		protected.POST("/reconciliation/daily-cadence", reconciliationHandler.DailyCadence)

		protected.GET("/metrics/snapshot", metricsHandler.Snapshot)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
