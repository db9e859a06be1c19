package main

import (
	"context"
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

	_ "github.com/classtrack/classtrack-api/api/swagger"
	"github.com/classtrack/classtrack-api/internal/handler"
	"github.com/classtrack/classtrack-api/internal/middleware"
	"github.com/classtrack/classtrack-api/internal/models"
	"github.com/classtrack/classtrack-api/internal/repository"
	"github.com/classtrack/classtrack-api/internal/service"
	"github.com/classtrack/classtrack-api/pkg/cache"
	"github.com/classtrack/classtrack-api/pkg/config"
	"github.com/classtrack/classtrack-api/pkg/database"
	"github.com/classtrack/classtrack-api/pkg/export"
	"github.com/classtrack/classtrack-api/pkg/jobs"
	"github.com/classtrack/classtrack-api/pkg/logger"
	corsmiddleware "github.com/classtrack/classtrack-api/pkg/middleware/cors"
	reqidmiddleware "github.com/classtrack/classtrack-api/pkg/middleware/requestid"
	"github.com/classtrack/classtrack-api/pkg/storage"
)

// @title ClassTrack API
// @version 1.0.0
// @description Classroom accountability and grading API
// @BasePath /api/v1
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

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	validate := validator.New()

	metricsService := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheService := service.NewCacheService(cacheRepo, metricsService, cfg.Grading.CacheTTL, logr, cfg.Grading.CacheEnabled)

	userRepo := repository.NewUserRepository(db)
	classRepo := repository.NewClassRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	schemeRepo := repository.NewSchemeRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	reportRepo := repository.NewReportRepository(db)

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "classtrack-api",
	})
	userService := service.NewUserService(userRepo, validate, logr)
	gradingService := service.NewGradingService(activityRepo, submissionRepo, schemeRepo, classRepo, cacheService, cfg.Grading.CacheTTL, logr)
	classService := service.NewClassService(classRepo, userRepo, validate, logr)
	activityService := service.NewActivityService(activityRepo, classRepo, gradingService, validate, logr)
	submissionService := service.NewSubmissionService(submissionRepo, activityRepo, classRepo, gradingService, validate, logr)
	schemeService := service.NewSchemeService(schemeRepo, classRepo, gradingService, validate, logr)
	attendanceService := service.NewAttendanceService(attendanceRepo, classRepo, validate, logr)
	analyticsService := service.NewAnalyticsService(gradingService, submissionRepo, metricsService, cacheService,
		cfg.Grading.CacheTTL, cfg.Grading.AtRiskThreshold, cfg.Grading.AtRiskPending, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var reportService *service.ReportService
	var reportQueue *jobs.Queue
	if cfg.Exports.Enabled {
		fileStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

		exportService := service.NewExportService(gradingService, attendanceService, classRepo, fileStore, signer,
			service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Exports.SignedURLTTL},
			logr, export.NewCSVExporter(), export.NewPDFExporter())

		worker := service.NewReportWorker(reportRepo, exportService, cfg.Exports.WorkerRetries, logr)
		reportQueue = jobs.NewQueue("exports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})

		reportService = service.NewReportService(reportRepo, classRepo, reportQueue, exportService, logr, service.ReportServiceConfig{
			ResultTTL:  cfg.Exports.SignedURLTTL,
			MaxRetries: cfg.Exports.WorkerRetries,
		})

		reportQueue.Start(ctx)
		reportService.RecoverPendingJobs(ctx)
		reportService.StartCleanup(ctx)
	}

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	classHandler := handler.NewClassHandler(classService)
	activityHandler := handler.NewActivityHandler(activityService)
	submissionHandler := handler.NewSubmissionHandler(submissionService)
	gradingHandler := handler.NewGradingHandler(gradingService, schemeService)
	attendanceHandler := handler.NewAttendanceHandler(attendanceService)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/reset-password", authHandler.ResetPassword)

		auth.Use(middleware.JWT(authService))
		auth.POST("/logout", authHandler.Logout)
		auth.POST("/change-password", authHandler.ChangePassword)
		auth.GET("/me", authHandler.Me)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(authService))

	adminOnly := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)
	teacherUp := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleTeacher)

	users := protected.Group("/users", adminOnly)
	{
		users.GET("", userHandler.List)
		users.POST("", userHandler.Create)
		users.GET("/:id", userHandler.Get)
		users.PUT("/:id", userHandler.Update)
		users.DELETE("/:id", userHandler.Delete)
	}

	classes := protected.Group("/classes")
	{
		classes.GET("", classHandler.List)
		classes.POST("", teacherUp, classHandler.Create)
		classes.GET("/:classId", classHandler.Get)
		classes.PATCH("/:classId", teacherUp, classHandler.Update)
		classes.GET("/:classId/members", classHandler.Members)
		classes.POST("/:classId/members", teacherUp, classHandler.Enroll)
		classes.DELETE("/:classId/members/:studentId", teacherUp, classHandler.Unenroll)

		classes.GET("/:classId/standings", teacherUp, gradingHandler.ClassStandings)
		classes.GET("/:classId/standings/me", gradingHandler.MyStanding)
		classes.GET("/:classId/standings/:studentId", gradingHandler.StudentStanding)
		classes.GET("/:classId/scheme", gradingHandler.GetScheme)
		classes.PUT("/:classId/scheme", teacherUp, gradingHandler.UpsertScheme)

		classes.GET("/:classId/submissions/pending-count", teacherUp, submissionHandler.PendingCount)
		classes.GET("/:classId/attendance/:studentId", attendanceHandler.StudentSummary)

		classes.GET("/:classId/analytics/at-risk", teacherUp, analyticsHandler.AtRisk)
		classes.GET("/:classId/analytics/distribution", teacherUp, analyticsHandler.Distribution)
		classes.GET("/:classId/analytics/review-queue", teacherUp, analyticsHandler.ReviewQueue)
	}

	activities := protected.Group("/activities")
	{
		activities.GET("", activityHandler.List)
		activities.POST("", teacherUp, activityHandler.Create)
		activities.GET("/:id", activityHandler.Get)
		activities.PATCH("/:id", teacherUp, activityHandler.Update)
		activities.POST("/:id/archive", teacherUp, activityHandler.Archive)
		activities.POST("/:id/restore", teacherUp, activityHandler.Restore)
	}

	submissions := protected.Group("/submissions")
	{
		submissions.GET("", submissionHandler.List)
		submissions.POST("", submissionHandler.Submit)
		submissions.POST("/:id/review", teacherUp, submissionHandler.Review)
	}

	attendance := protected.Group("/attendance")
	{
		attendance.GET("/sessions", teacherUp, attendanceHandler.ListSessions)
		attendance.POST("/sessions", teacherUp, attendanceHandler.CreateSession)
		attendance.POST("/sessions/:id/records", teacherUp, attendanceHandler.Mark)
		attendance.POST("/sessions/:id/close", teacherUp, attendanceHandler.CloseSession)
		attendance.GET("/sessions/:id/records", teacherUp, attendanceHandler.Records)
	}

	protected.GET("/analytics/system", adminOnly, analyticsHandler.System)

	if cfg.Exports.Enabled {
		exportHandler := handler.NewExportHandler(reportService)

		// Download authenticates with the signed token in the URL, not a JWT.
		api.GET("/exports/download/:token", exportHandler.Download)

		exports := protected.Group("/exports", teacherUp)
		{
			exports.POST("", exportHandler.Generate)
			exports.GET("", exportHandler.List)
			exports.GET("/:id", exportHandler.Status)
		}
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	if reportQueue != nil {
		reportQueue.Stop()
	}
}
