package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"nutricoach/internal/adapters/http/middleware"
	"nutricoach/internal/adapters/http/routes"
	"nutricoach/internal/adapters/persistence/models"
	"nutricoach/internal/adapters/persistence/repositories"
	"nutricoach/internal/config"
	"nutricoach/internal/core/services"
	"nutricoach/internal/pkg/metrics"
	"nutricoach/internal/pkg/password"

	"github.com/gofiber/fiber/v2"

	_ "nutricoach/docs" // Swagger docs
)

// @title NutriCoach API
// @version 1.0
// @description NutriCoach session, role and coaching API
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@nutricoach.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host api.nutricoach.io
// @BasePath /api/v1
// @schemes https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer config.CloseDatabase(db)

	// Auto migrate (creates tables if not exist)
	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("❌ Failed to auto migrate: %v", err)
	}
	log.Println("✅ Database migration completed")

	// Bootstrap administrator
	if err := config.NewSeeder(db, cfg, password.NewPolicy(cfg.Security.BcryptCost)).Run(); err != nil {
		log.Printf("⚠️ Warning: Failed to seed admin user: %v", err)
	}

	// Connect to redis (optional, backs the login lockout)
	rdb, err := config.ConnectRedis(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to connect to redis: %v", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	m := metrics.New(nil)

	deps, err := routes.Build(db, rdb, cfg, m)
	if err != nil {
		log.Fatalf("❌ Failed to build services: %v", err)
	}

	// Purge expired refresh tokens on a schedule
	cronService := services.NewCronService(repositories.NewRefreshTokenRepository(db), cfg.Cron.LedgerPurgeSchedule, m)
	if err := cronService.Start(); err != nil {
		log.Fatalf("❌ Failed to start cron service: %v", err)
	}
	defer cronService.Stop()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "NutriCoach API v1.0",
		ErrorHandler: middleware.CustomErrorHandler,
	})

	// Setup middlewares
	middleware.Setup(app, cfg, m)

	// Setup routes
	routes.Setup(app, deps)

	// Graceful shutdown
	go gracefulShutdown(app)

	// Start server
	log.Printf("🚀 Server starting on port %s [MODE: %s]", cfg.Port, cfg.AppMode)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

// gracefulShutdown handles graceful shutdown
func gracefulShutdown(app *fiber.App) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("❌ Error during shutdown: %v", err)
	}
	log.Println("✅ Server stopped gracefully")
}
