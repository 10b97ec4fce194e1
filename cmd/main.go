package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"github.com/vmorozov/droplink/internal/config"
	"github.com/vmorozov/droplink/internal/db"
	"github.com/vmorozov/droplink/internal/handlers"
	"github.com/vmorozov/droplink/internal/middleware"
	"github.com/vmorozov/droplink/internal/services"
	"github.com/vmorozov/droplink/internal/storage"
	"github.com/vmorozov/droplink/internal/store"
)

func main() {
	cfg := config.Load()
	slogger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	mongoDB, err := db.Connect(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatalf("MongoDB connection failed: %v", err)
	}

	links, err := store.NewMongoLinks(mongoDB)
	if err != nil {
		log.Fatalf("Link store init failed: %v", err)
	}
	users, err := store.NewMongoUsers(mongoDB)
	if err != nil {
		log.Fatalf("User store init failed: %v", err)
	}

	blobs, err := storage.NewMinioStore(
		cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey,
		cfg.MinioBucket, cfg.MinioUseSSL,
	)
	if err != nil {
		log.Fatalf("MinIO connection failed: %v", err)
	}

	linkService := services.NewLinkService(links, blobs, cfg.LinkTTL, slogger)
	authService := services.NewAuthService(users, cfg.JWTSecret)

	sweeper := services.NewSweeper(links, linkService, cfg.SweepInterval, slogger)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("Sweeper start failed: %v", err)
	}
	defer sweeper.Stop()

	app := fiber.New(fiber.Config{
		BodyLimit: cfg.MaxUploadSize,
	})
	app.Use(logger.New())
	app.Use(cors.New())

	authHandler := handlers.NewAuthHandler(authService)
	linkHandler := handlers.NewLinkHandler(linkService, cfg.BaseURL)
	transferHandler := handlers.NewTransferHandler(linkService, blobs)

	api := app.Group("/api")

	api.Post("/auth/register", authHandler.Register)
	api.Post("/auth/login", authHandler.Login)

	// Link management, owners only. The status lookup stays public, so the
	// auth middleware is attached per route rather than on the group.
	authRequired := middleware.Auth(cfg.JWTSecret)
	api.Post("/upload-links", authRequired, linkHandler.Create)
	api.Get("/upload-links", authRequired, linkHandler.List)

	// Public surface: status lookup and the transfer itself.
	api.Get("/upload-links/:link_id/status", linkHandler.Status)
	api.Post("/upload/:link_id", transferHandler.Upload)
	api.Get("/download/:link_id", transferHandler.Download)
	api.Get("/download/:link_id/info", transferHandler.Info)

	log.Fatal(app.Listen(":" + cfg.Port))
}
