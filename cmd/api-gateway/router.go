package main

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/apprenticeship-hours-api/internal/handler"
	"github.com/noah-isme/apprenticeship-hours-api/internal/middleware"
	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
	"github.com/noah-isme/apprenticeship-hours-api/internal/service"
	"github.com/noah-isme/apprenticeship-hours-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/apprenticeship-hours-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/apprenticeship-hours-api/pkg/middleware/requestid"
)

// RouterConfig carries everything the HTTP surface is assembled from.
type RouterConfig struct {
	APIPrefix      string
	AllowedOrigins []string
	Logger         *zap.Logger
	Metrics        *service.MetricsService
	Tokens         middleware.TokenValidator

	Ops         *handler.MetricsHandler
	Rules       *handler.RulesHandler
	Transfers   *handler.TransferHandler
	Eligibility *handler.EligibilityHandler
	Enrollments *handler.EnrollmentHandler
	Progress    *handler.ProgressHandler
	Hours       *handler.HoursHandler
	Timeclock   *handler.TimeclockHandler
	Reports     *handler.ReportHandler
}

func newRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(cfg.Logger))
	r.Use(corsmiddleware.New(cfg.AllowedOrigins))
	r.Use(middleware.Metrics(cfg.Metrics))

	r.GET("/health", cfg.Ops.Health)
	r.GET("/ready", cfg.Ops.Ready)
	r.GET("/metrics", cfg.Ops.Prometheus)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())

	// Signed links carry their own authorisation.
	if cfg.Reports != nil {
		api.GET("/reports/download", cfg.Reports.Download)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(cfg.Tokens), middleware.AuditContext())

	admin := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleSupervisor)
	apprentice := middleware.RequireRoles(models.RoleApprentice)

	protected.GET("/rules", cfg.Rules.List)
	protected.GET("/rules/:code", cfg.Rules.Get)

	protected.POST("/transfers/evaluate", admin, cfg.Transfers.Evaluate)
	protected.POST("/transfers/:id/resolve", admin, cfg.Transfers.Resolve)

	protected.POST("/eligibility/check", admin, cfg.Eligibility.Check)
	protected.POST("/eligibility/remaining", cfg.Eligibility.Remaining)

	protected.POST("/sites", admin, cfg.Enrollments.CreateSite)

	enrollments := protected.Group("/enrollments")
	{
		enrollments.POST("", admin, cfg.Enrollments.Create)
		enrollments.GET("/:id", cfg.Enrollments.Get)
		enrollments.GET("/:id/transfers", cfg.Transfers.List)
		enrollments.POST("/:id/transfers", middleware.RequireRoles(models.RoleAdmin, models.RoleApprentice), cfg.Transfers.Submit)
		enrollments.GET("/:id/eligibility", cfg.Eligibility.ForEnrollment)
		enrollments.GET("/:id/progress", cfg.Progress.Summary)
		enrollments.GET("/:id/hours", cfg.Hours.List)
		if cfg.Reports != nil {
			enrollments.POST("/:id/reports", staff, cfg.Reports.Export)
		}
	}

	protected.POST("/hours/:id/verify", staff, cfg.Hours.Verify)
	protected.POST("/hours/:id/correct", staff, cfg.Hours.Correct)

	clock := protected.Group("/timeclock")
	{
		clock.GET("/alerts", admin, cfg.Timeclock.Alerts)
		clock.GET("/session", apprentice, cfg.Timeclock.Session)
		clock.POST("/clock-in", apprentice, cfg.Timeclock.ClockIn)
		clock.POST("/clock-out", apprentice, cfg.Timeclock.ClockOut)
		clock.POST("/lunch-start", apprentice, cfg.Timeclock.StartLunch)
		clock.POST("/lunch-end", apprentice, cfg.Timeclock.EndLunch)
		clock.POST("/heartbeat", apprentice, cfg.Timeclock.Heartbeat)
		clock.POST("/reset", apprentice, cfg.Timeclock.Reset)
	}

	return r
}
