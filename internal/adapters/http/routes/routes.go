package routes

import (
	"context"
	"time"

	"nutricoach/internal/adapters/cache"
	"nutricoach/internal/adapters/http/handlers"
	"nutricoach/internal/adapters/http/middleware"
	"nutricoach/internal/adapters/persistence/repositories"
	"nutricoach/internal/config"
	"nutricoach/internal/core/services"
	"nutricoach/internal/pkg/jwt"
	"nutricoach/internal/pkg/metrics"
	"nutricoach/internal/pkg/password"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// clientCacheAge bounds how long a browser may reuse a client listing
const clientCacheAge = 30 * time.Second

// Dependencies carries everything the HTTP layer needs
type Dependencies struct {
	Config      *config.Config
	Metrics     *metrics.Metrics
	Auth        *services.AuthService
	Sessions    services.Authenticator
	Roles       *services.RoleService
	Clients     *services.ClientService
	Assignments *services.AssignmentService
	Users       *services.UserService
	Dashboard   *services.DashboardService
	Probes      map[string]handlers.Probe
}

// Build wires repositories and services on top of the database and the
// optional redis client
func Build(db *gorm.DB, rdb *redis.Client, cfg *config.Config, m *metrics.Metrics) (*Dependencies, error) {
	tokens, err := jwt.NewManager(cfg.TokenConfig())
	if err != nil {
		return nil, err
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	refreshTokenRepo := repositories.NewRefreshTokenRepository(db)
	assignmentRepo := repositories.NewAssignmentRepository(db)

	// Login lockout is shared across instances through redis
	var limiter *services.LoginLimiter
	if rdb != nil {
		store := cache.NewAttemptStore(rdb, "")
		limiter = services.NewLoginLimiter(store, cfg.Security.LoginMaxAttempts, cfg.LoginLockout())
	}

	probes := map[string]handlers.Probe{
		"database": func(ctx context.Context) error { return config.DatabaseHealth(ctx, db) },
	}
	if rdb != nil {
		probes["redis"] = func(ctx context.Context) error { return config.RedisHealth(ctx, rdb) }
	}

	policy := password.NewPolicy(cfg.Security.BcryptCost)

	return &Dependencies{
		Config:      cfg,
		Metrics:     m,
		Auth:        services.NewAuthService(userRepo, refreshTokenRepo, policy, tokens, limiter, m),
		Sessions:    services.NewSessionService(tokens, userRepo, refreshTokenRepo, m),
		Roles:       services.NewRoleService(assignmentRepo),
		Clients:     services.NewClientService(userRepo),
		Assignments: services.NewAssignmentService(userRepo, assignmentRepo),
		Users:       services.NewUserService(userRepo, refreshTokenRepo, policy),
		Dashboard:   services.NewDashboardService(userRepo, refreshTokenRepo),
		Probes:      probes,
	}, nil
}

// Setup configures all routes for the application
func Setup(app *fiber.App, deps *Dependencies) {
	cfg := deps.Config
	cookies := middleware.NewCookies(cfg.Cookie)
	gate := middleware.SessionGate(deps.Sessions, deps.Roles, cookies)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.AppMode, deps.Probes)
	authHandler := handlers.NewAuthHandler(deps.Auth, deps.Sessions, cookies)
	clientHandler := handlers.NewClientHandler(deps.Clients)
	assignmentHandler := handlers.NewAssignmentHandler(deps.Assignments)
	userHandler := handlers.NewUserHandler(deps.Users, cookies)
	dashboardHandler := handlers.NewDashboardHandler(deps.Dashboard)

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)
	app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics.Handler()))

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API v1 group
	apiV1 := app.Group("/api/v1")
	apiV1.Get("/", healthHandler.APIInfo)

	setupAuthRoutes(apiV1.Group("/auth", middleware.NoCacheHeaders()), authHandler, gate, cfg)
	setupClientRoutes(apiV1.Group("/clients", gate), clientHandler)
	setupAssignmentRoutes(apiV1.Group("/assignments", gate, middleware.AdminOnly()), assignmentHandler)
	setupUserRoutes(apiV1.Group("/users", gate, middleware.AdminOnly()), userHandler)
	setupProfileRoutes(apiV1.Group("/profile", gate, middleware.NoCacheHeaders()), userHandler)

	// Dashboard (All authenticated users)
	apiV1.Get("/dashboard", gate, middleware.PrivateCacheHeaders(clientCacheAge), dashboardHandler.GetDashboard)
}

// setupAuthRoutes configures authentication routes
func setupAuthRoutes(router fiber.Router, handler *handlers.AuthHandler, gate fiber.Handler, cfg *config.Config) {
	limit := middleware.AuthRateLimiter(cfg.Security.AuthRatePerMin)

	// Public
	router.Post("/register", limit, handler.Register)
	router.Post("/login", limit, handler.Login)
	router.Post("/refresh", limit, handler.RefreshToken)
	router.Post("/logout", handler.Logout)

	// Authenticated
	router.Get("/me", gate, handler.Me)
	router.Post("/logout-all", gate, handler.LogoutAll)
}

// setupClientRoutes configures client routes (Authenticated)
func setupClientRoutes(router fiber.Router, handler *handlers.ClientHandler) {
	router.Use(middleware.PrivateCacheHeaders(clientCacheAge))

	router.Get("/", middleware.CoachOrAdmin(), handler.List)
	router.Get("/:id", handler.Get)
}

// setupAssignmentRoutes configures assignment routes (Admin only)
func setupAssignmentRoutes(router fiber.Router, handler *handlers.AssignmentHandler) {
	router.Post("/", handler.Assign)
	router.Delete("/:coachId/:clientId", handler.Unassign)
}

// setupUserRoutes configures user management routes (Admin only)
func setupUserRoutes(router fiber.Router, handler *handlers.UserHandler) {
	router.Get("/", handler.ListUsers)
	router.Get("/:id", handler.GetUser)
	router.Patch("/:id", handler.UpdateUser)
}

// setupProfileRoutes configures profile routes (Authenticated)
func setupProfileRoutes(router fiber.Router, handler *handlers.UserHandler) {
	router.Put("/password", handler.ChangePassword)
}
