package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/lsls-dev/school-portal-api/api/swagger"
	"github.com/lsls-dev/school-portal-api/internal/handler"
	"github.com/lsls-dev/school-portal-api/internal/middleware"
	"github.com/lsls-dev/school-portal-api/internal/models"
	"github.com/lsls-dev/school-portal-api/internal/repository"
	"github.com/lsls-dev/school-portal-api/internal/service"
	"github.com/lsls-dev/school-portal-api/pkg/cache"
	"github.com/lsls-dev/school-portal-api/pkg/config"
	"github.com/lsls-dev/school-portal-api/pkg/database"
	"github.com/lsls-dev/school-portal-api/pkg/logger"
	corsmiddleware "github.com/lsls-dev/school-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/lsls-dev/school-portal-api/pkg/middleware/requestid"
)

// @title School Portal API
// @version 0.1.0
// @description Role gated school portal: attendance register, rosters and results
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
	defer db.Close()

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			repo := repository.NewCacheRepository(redisClient, logr)
			defer repo.Close()
			cacheRepo = repo
		}
	}

	validate := validator.New()
	metricsService := service.NewMetricsService()
	cacheService := service.NewCacheService(cacheRepo, metricsService, cfg.Cache.SummaryTTL, logr, cacheRepo != nil)

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	parentRepo := repository.NewParentRepository(db)
	classRepo := repository.NewClassRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	resultRepo := repository.NewResultRepository(db)

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
	})
	attendanceService := service.NewAttendanceService(attendanceRepo, studentRepo, teacherRepo, cacheService, validate, logr)
	studentService := service.NewStudentService(studentRepo, userRepo, classRepo, parentRepo, validate, logr)
	teacherService := service.NewTeacherService(teacherRepo, userRepo, validate, logr)
	classService := service.NewClassService(classRepo, validate, logr)
	parentService := service.NewParentService(parentRepo, logr)
	resultService := service.NewResultService(resultRepo, teacherRepo, studentRepo, validate, logr)

	cookieMaxAge := int(cfg.JWT.Expiration.Seconds())
	secureCookie := cfg.Env == config.EnvProduction

	authHandler := handler.NewAuthHandler(authService, cfg.JWT.CookieName, cookieMaxAge, secureCookie)
	attendanceHandler := handler.NewAttendanceHandler(attendanceService)
	studentHandler := handler.NewStudentHandler(studentService)
	teacherHandler := handler.NewTeacherHandler(teacherService)
	classHandler := handler.NewClassHandler(classService)
	parentHandler := handler.NewParentHandler(parentService)
	resultHandler := handler.NewResultHandler(resultService)
	metricsHandler := handler.NewMetricsHandler(metricsService, db)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerPages(r, authService, cfg.JWT.CookieName)
	registerAPI(r, cfg.APIPrefix, authService, cfg.JWT.CookieName,
		authHandler, attendanceHandler, studentHandler, teacherHandler,
		classHandler, parentHandler, resultHandler)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

// registerPages mounts the dashboard page routes behind the session gate.
// These respond with lightweight placeholders in front of the SPA build;
// the gate's redirect policy is what matters here.
func registerPages(r *gin.Engine, auth *service.AuthService, cookieName string) {
	gate := middleware.Gate(auth, cookieName)
	page := func(name string) gin.HandlerFunc {
		return func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"page": name})
		}
	}

	r.GET("/", gate, page("root"))
	r.GET("/login", gate, page("login"))
	r.GET("/signup", gate, page("signup"))
	r.GET("/admin", gate, page("admin"))
	r.GET("/admin/users", gate, page("admin-users"))
	r.GET("/admin/students", gate, page("admin-students"))
	r.GET("/teacher", gate, page("teacher"))
	r.GET("/teacher/attendance", gate, page("teacher-attendance"))
	r.GET("/student", gate, page("student"))
	r.GET("/student/attendance", gate, page("student-attendance"))
	r.GET("/parent", gate, page("parent"))
	r.GET("/parent/children", gate, page("parent-children"))
}

func registerAPI(
	r *gin.Engine,
	prefix string,
	auth *service.AuthService,
	cookieName string,
	authHandler *handler.AuthHandler,
	attendanceHandler *handler.AttendanceHandler,
	studentHandler *handler.StudentHandler,
	teacherHandler *handler.TeacherHandler,
	classHandler *handler.ClassHandler,
	parentHandler *handler.ParentHandler,
	resultHandler *handler.ResultHandler,
) {
	api := r.Group(prefix)

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/signup", authHandler.Signup)
	api.POST("/auth/logout", authHandler.Logout)

	authed := api.Group("")
	authed.Use(middleware.JWT(auth, cookieName))

	authed.GET("/auth/me", authHandler.Me)
	authed.POST("/admin/users/:id/reset-password",
		middleware.RequireRoles(models.RoleAdmin), authHandler.ResetPassword)

	attendance := authed.Group("/attendance")
	{
		attendance.GET("", attendanceHandler.List)
		attendance.GET("/export", attendanceHandler.Export)
		attendance.GET("/students/:id/summary", attendanceHandler.Summary)
		// No role guard on the mark route: the service decides who may
		// write and reports UNAUTHORIZED for admin and parent callers.
		attendance.POST("", attendanceHandler.Record)
		attendance.PATCH("/:id",
			middleware.RequireRoles(models.RoleTeacher), attendanceHandler.UpdateStatus)
		attendance.DELETE("/:id",
			middleware.RequireRoles(models.RoleTeacher), attendanceHandler.Delete)
	}

	students := authed.Group("/students")
	{
		students.GET("", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), studentHandler.List)
		students.GET("/me", middleware.RequireRoles(models.RoleStudent), studentHandler.Me)
		students.GET("/:id", studentHandler.Get)
		students.GET("/:id/results", resultHandler.ListByStudent)
		students.POST("", middleware.RequireRoles(models.RoleAdmin), studentHandler.Create)
		students.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), studentHandler.Update)
		students.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), studentHandler.Delete)
	}

	teachers := authed.Group("/teachers")
	{
		teachers.GET("", middleware.RequireRoles(models.RoleAdmin), teacherHandler.List)
		teachers.GET("/:id", teacherHandler.Get)
		teachers.POST("", middleware.RequireRoles(models.RoleAdmin), teacherHandler.Create)
		teachers.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), teacherHandler.Update)
		teachers.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), teacherHandler.Delete)
	}

	classes := authed.Group("/classes")
	{
		classes.GET("", classHandler.List)
		classes.GET("/:id", classHandler.Get)
		classes.POST("", middleware.RequireRoles(models.RoleAdmin), classHandler.Create)
		classes.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), classHandler.Update)
		classes.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), classHandler.Delete)
	}

	parents := authed.Group("/parents")
	{
		parents.GET("", middleware.RequireRoles(models.RoleAdmin), parentHandler.List)
		parents.GET("/me/children", middleware.RequireRoles(models.RoleParent), parentHandler.Children)
	}

	results := authed.Group("/results")
	{
		results.POST("", middleware.RequireRoles(models.RoleTeacher), resultHandler.Create)
		results.PUT("/:id", middleware.RequireRoles(models.RoleTeacher), resultHandler.UpdateMarks)
	}
}
