package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/cleanlists/api/internal/client"
	"github.com/cleanlists/api/internal/config"
	appcrypto "github.com/cleanlists/api/internal/crypto"
	"github.com/cleanlists/api/internal/database"
	"github.com/cleanlists/api/internal/handler"
	"github.com/cleanlists/api/internal/middleware"
	"github.com/cleanlists/api/internal/model"
	"github.com/cleanlists/api/internal/repository"
	"github.com/cleanlists/api/internal/service"
	"github.com/cleanlists/api/internal/worker"
	ws "github.com/cleanlists/api/internal/websocket"
)

const providerSpotify = "spotify"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize token encryption
	cipher, err := appcrypto.NewCipher(cfg.Encryption.Key)
	if err != nil {
		log.Fatalf("Failed to initialize token encryption: %v", err)
	}

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub(time.Duration(cfg.Jobs.HeartbeatSeconds) * time.Second)
	go hub.Run()

	// Initialize repositories
	jobRepo := repository.NewJobRepository(db)
	syncRepo := repository.NewSyncRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	webhookRepo := repository.NewWebhookRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)

	// Initialize provider clients
	spotifyClient := client.NewSpotifyClient(cfg.Provider)
	matcher := client.NewSearchMatcher(spotifyClient)

	// Initialize services
	tokenService := service.NewTokenService(tokenRepo, cipher, spotifyClient)
	jobService := service.NewJobService(jobRepo, tokenService, spotifyClient, asynqClient, providerSpotify)
	syncService := service.NewSyncService(syncRepo, jobRepo, subscriptionRepo, tokenService, spotifyClient, matcher, providerSpotify)
	webhookService := service.NewWebhookService(webhookRepo, subscriptionRepo, cfg.Webhook)

	// Initialize handlers
	jobHandler := handler.NewJobHandler(jobService, validate)
	syncHandler := handler.NewSyncHandler(syncService, validate)
	providerHandler := handler.NewProviderHandler(tokenService, validate)
	webhookHandler := handler.NewWebhookHandler(webhookService)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Billing webhooks are signed, not session-authenticated
	app.Post("/webhooks/billing", webhookHandler.Handle)

	// API routes
	api := app.Group("/api", authMiddleware.Authenticate())

	// Job routes
	jobs := api.Group("/jobs")
	jobs.Post("/", rateLimiter.JobLimit(cfg.RateLimit.JobsPerHour), jobHandler.Create)
	jobs.Get("/", jobHandler.List)
	jobs.Get("/:jobId", jobHandler.Get)
	jobs.Get("/:jobId/mappings", jobHandler.Mappings)

	// Sync routes
	sync := api.Group("/sync")
	sync.Post("/enable/:jobId", syncHandler.Enable)
	sync.Post("/:configId/run", rateLimiter.SyncLimit(cfg.RateLimit.SyncPerHour), syncHandler.Run)
	sync.Post("/:configId/disable", syncHandler.Disable)
	sync.Get("/", syncHandler.List)
	sync.Get("/:configId/history", syncHandler.History)

	// Provider connection routes
	provider := api.Group("/provider")
	provider.Post("/connect", providerHandler.Connect)
	provider.Post("/disconnect", providerHandler.Disconnect)
	provider.Get("/status", providerHandler.Status)

	// Subscription state
	api.Get("/subscription", webhookHandler.Subscription)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		hub.HandleConnection(c, jobID, func() bool {
			job, err := jobRepo.FindByID(jobID)
			return err == nil && job != nil && job.Status == model.JobStatusProcessing
		})
	}))

	// Start Asynq worker server
	jobWorker := worker.NewJobWorker(jobRepo, tokenService, spotifyClient, matcher, hub, providerSpotify, cfg.Jobs.BatchSize)
	go startWorkerServer(cfg, jobWorker)

	// Start background schedulers
	syncScheduler := worker.NewSyncScheduler(syncService, time.Duration(cfg.Scheduler.SyncPollSeconds)*time.Second, cfg.Scheduler.SyncWorkers)
	syncScheduler.Start()

	webhookSweeper := worker.NewWebhookSweeper(webhookRepo, webhookService, time.Duration(cfg.Webhook.SweepSeconds)*time.Second)
	webhookSweeper.Start()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		syncScheduler.Stop()
		webhookSweeper.Stop()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(cfg *config.Config, jobWorker *worker.JobWorker) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Jobs.Concurrency,
			Queues: map[string]int{
				service.QueueCleanPlaylist: 10,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeCleanPlaylist, jobWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
