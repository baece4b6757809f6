package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"glowspa/api/internal/audit"
	"glowspa/api/internal/authz"
	"glowspa/api/internal/config"
	"glowspa/api/internal/middleware"
	"glowspa/api/internal/repository"
	"glowspa/api/internal/service"
)

type HandlerSet struct {
	log         zerolog.Logger
	cfg         *config.AppConfig
	authService *service.AuthService
	engine      *authz.Engine
	auditor     *audit.Recorder
	db          *pgxpool.Pool
	cache       *redis.Client
	users       *repository.UserRepository
}

func NewHandlerSet(
	log zerolog.Logger,
	db *pgxpool.Pool,
	cache *redis.Client,
	registry *authz.Registry,
	auditor *audit.Recorder,
	cfg *config.AppConfig,
) HandlerSet {
	userRepo := repository.NewUserRepository(db)
	sessionStore := repository.NewSessionStore(cache)
	auth := service.NewAuthService(userRepo, sessionStore, auditor, cfg, log)
	engine := authz.NewEngine(registry, cfg.Hours)

	return HandlerSet{
		log:         log,
		cfg:         cfg,
		authService: auth,
		engine:      engine,
		auditor:     auditor,
		db:          db,
		cache:       cache,
		users:       userRepo,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)

		protected := v1.Group("/auth")
		protected.Use(middleware.Auth(h.authService, h.users))
		protected.POST("/logout", h.Logout)
		protected.POST("/password", h.ChangePassword)
		protected.GET("/me", h.Me)
		protected.GET("/sessions", h.ListSessions)
		protected.DELETE("/sessions", h.RevokeAllSessions)
		protected.DELETE("/sessions/:sessionId", h.RevokeSession)
	}

	appointments := v1.Group("/appointments")
	appointments.Use(middleware.Auth(h.authService, h.users))
	appointments.GET("", middleware.RequirePermission(h.engine, h.auditor, "appointment", "view"), h.ListAppointments)
	appointments.PATCH("/:appointmentId", h.UpdateAppointment)

	billing := v1.Group("/billing")
	billing.Use(middleware.Auth(h.authService, h.users))
	billing.GET("/invoices", middleware.RequirePermission(h.engine, h.auditor, "invoice", "view"), h.ListInvoices)

	authzGroup := v1.Group("/authz")
	authzGroup.Use(middleware.Auth(h.authService, h.users))
	authzGroup.POST("/check", h.CheckPermission)

	admin := v1.Group("/admin")
	admin.Use(
		middleware.Auth(h.authService, h.users),
		middleware.RequirePermission(h.engine, h.auditor, "staff", "manage"),
	)
	admin.POST("/lockouts/:identifier/clear", h.ClearLockout)
}
