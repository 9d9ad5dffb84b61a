package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"spec-dating-system/handlers"
	"spec-dating-system/middleware"
	"spec-dating-system/models"
	"spec-dating-system/services"
	"spec-dating-system/utils"
	"spec-dating-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 50 * 1024 * 1024, // 50MB, answer media only
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(allowedOriginsList, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Spec{},
		&models.Requirement{},
		&models.Application{},
		&models.Round{},
		&models.Answer{},
		&models.Date{},
		&models.MemberProfile{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	mediaStore, err := utils.NewR2MediaStoreFromEnv()
	if err != nil {
		log.Fatal("failed to initialize R2 media store:", err)
	}

	notifier := services.NewNotifierFromEnv()
	hub := services.NewEventHub()

	specService := services.NewSpecService(db, notifier)
	applicationService := services.NewApplicationService(db, notifier)
	roundService := services.NewRoundService(db, hub, notifier, mediaStore)
	feedService := services.NewFeedService(db)
	mediaService := services.NewMediaService(mediaStore)

	// --- Profile mirror sync from the profile service ---
	syncServiceURL := os.Getenv("SYNC_SERVICE_URL")
	if syncServiceURL == "" {
		log.Fatal("SYNC_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("SPEC_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("SPEC_SERVICE_TOKEN environment variable not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	syncWorker := workers.NewProfileSyncWorker(db, syncServiceURL, "/api/v1/public/profiles", serviceToken)
	if err := syncWorker.StartScheduler(ctx); err != nil {
		log.Fatal("failed to start profile sync scheduler:", err)
	}

	handlers.SetupSpecRoutes(app, specService, applicationService, feedService)
	handlers.SetupRoundRoutes(app, roundService, mediaService, hub)
	handlers.SetupFeedRoutes(app, feedService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Profile Sync Worker running (every 1m)")
	log.Printf("✅ Approval policy: %s", applicationService.ApprovalPolicy)
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")

	<-ctx.Done()
	log.Println("Shutting down server...")
}
