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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/apprenticeship-hours-api/api/swagger"
	"github.com/noah-isme/apprenticeship-hours-api/internal/handler"
	"github.com/noah-isme/apprenticeship-hours-api/internal/repository"
	"github.com/noah-isme/apprenticeship-hours-api/internal/rules"
	"github.com/noah-isme/apprenticeship-hours-api/internal/service"
	"github.com/noah-isme/apprenticeship-hours-api/pkg/cache"
	"github.com/noah-isme/apprenticeship-hours-api/pkg/config"
	"github.com/noah-isme/apprenticeship-hours-api/pkg/database"
	"github.com/noah-isme/apprenticeship-hours-api/pkg/jobs"
	"github.com/noah-isme/apprenticeship-hours-api/pkg/logger"
	"github.com/noah-isme/apprenticeship-hours-api/pkg/storage"
)

const shutdownTimeout = 15 * time.Second

// @title Apprenticeship Hours API
// @version 1.0.0
// @description Apprenticeship hour tracking, transfer credit evaluation and licensure exam eligibility
// @BasePath /
// @schemes http https
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

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	registry, err := rules.Load(cfg.Rules.File)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	for _, r := range registry.List() {
		logr.Info("rules loaded",
			zap.String("jurisdiction", r.JurisdictionCode),
			zap.String("rule_set_id", r.RuleSetID),
			zap.String("rule_hash", registry.HashOf(r.RuleSetID)),
		)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		applied, err := database.Migrate(ctx, db)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		if len(applied) > 0 {
			logr.Info("migrations applied", zap.Strings("versions", applied))
		}
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, progress cache disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	enrollmentRepo := repository.NewEnrollmentRepository(db)
	hourRepo := repository.NewHourEntryRepository(db)
	transferRepo := repository.NewTransferRepository(db)
	timeclockRepo := repository.NewTimeclockRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Progress.CacheTTL, logr, cfg.Progress.CacheEnabled && cacheRepo != nil)

	auditSvc := service.NewAuditService(auditRepo, metrics, logr)
	auditQueue := jobs.NewQueue("audit", auditSvc.Handle, jobs.QueueConfig{
		Workers:    cfg.Audit.Workers,
		BufferSize: cfg.Audit.BufferSize,
		MaxRetries: cfg.Audit.MaxRetries,
		RetryDelay: cfg.Audit.RetryDelay,
		Logger:     logr,
		OnDrop:     auditSvc.OnDrop,
	})
	auditSvc.AttachQueue(auditQueue)
	auditQueue.Start(context.Background())
	defer auditQueue.Stop()

	authSvc := service.NewAuthService(service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
	})
	rulesSvc := service.NewRulesService(registry)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, registry, validate, logr)
	transferSvc := service.NewTransferService(registry, transferRepo, enrollmentRepo, cacheSvc, auditSvc, metrics, validate, logr)
	hourSvc := service.NewHourEntryService(hourRepo, enrollmentRepo, cacheSvc, auditSvc, validate, logr)
	progressSvc := service.NewProgressService(registry, enrollmentRepo, hourRepo, transferRepo, cacheSvc, metrics, logr)
	eligibilitySvc := service.NewEligibilityService(registry, progressSvc, metrics, validate, logr)
	timeclockSvc := service.NewTimeclockService(timeclockRepo, enrollmentRepo, hourRepo, cacheSvc, auditSvc, metrics, service.TimeclockConfig{
		GraceWindow:       cfg.Timeclock.GraceWindow,
		MaxAccuracyMeters: cfg.Timeclock.MaxAccuracyMeters,
		LunchStandard:     cfg.Timeclock.LunchStandard,
		MissingLunchAfter: cfg.Timeclock.MissingLunchAfter,
	}, logr)
	defer timeclockSvc.Stop()

	if cfg.Timeclock.RecoverTimersOnStart {
		recovered, err := timeclockSvc.RecoverGraceTimers(ctx)
		if err != nil {
			logr.Error("recover grace timers", zap.Error(err))
		} else {
			logr.Info("grace timers recovered", zap.Int("count", recovered))
		}
	}

	var reportHandler *handler.ReportHandler
	if cfg.Reports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			return fmt.Errorf("init report storage: %w", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		exportSvc := service.NewExportService(store, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Reports.SignedURLTTL,
		}, logr)
		reportSvc := service.NewReportService(progressSvc, hourSvc, exportSvc, auditSvc, validate, logr, service.ReportServiceConfig{
			ResultTTL:       cfg.Reports.SignedURLTTL,
			CleanupInterval: cfg.Reports.CleanupInterval,
		})
		reportSvc.StartCleanup(ctx)
		reportHandler = handler.NewReportHandler(reportSvc)
	}

	checks := map[string]handler.Pinger{"database": db}
	if redisClient != nil {
		checks["redis"] = handler.PingerFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	router := newRouter(RouterConfig{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Logger:         logr,
		Metrics:        metrics,
		Tokens:         authSvc,
		Ops:            handler.NewMetricsHandler(metrics, checks),
		Rules:          handler.NewRulesHandler(rulesSvc),
		Transfers:      handler.NewTransferHandler(transferSvc),
		Eligibility:    handler.NewEligibilityHandler(eligibilitySvc),
		Enrollments:    handler.NewEnrollmentHandler(enrollmentSvc),
		Progress:       handler.NewProgressHandler(progressSvc),
		Hours:          handler.NewHoursHandler(hourSvc),
		Timeclock:      handler.NewTimeclockHandler(timeclockSvc),
		Reports:        reportHandler,
	})
	if cfg.Env != config.EnvProduction {
		router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
