package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/chateval/backend/internal/api/handlers"
	"github.com/chateval/backend/internal/evaluation"
	"github.com/chateval/backend/internal/extract"
	"github.com/chateval/backend/internal/llm"
	"github.com/chateval/backend/internal/metrics"
	"github.com/chateval/backend/internal/middleware/ratelimit"
	"github.com/chateval/backend/internal/middleware/security"
	"github.com/chateval/backend/internal/middleware/validation"
	"github.com/chateval/backend/internal/session"
	"github.com/chateval/backend/internal/storage/sqlite"
	"github.com/chateval/backend/pkg/config"
	appLogger "github.com/chateval/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting ChatEval API Server")

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var redisClient *redis.Client
	var documents session.Store

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = client.Ping(pingCtx).Err()
		cancel()

		if err != nil {
			appLogger.Warn("Redis not available, using in-memory document storage", zap.Error(err))
			client.Close()
		} else {
			redisClient = client
			defer redisClient.Close()
			documents = session.NewRedisStore(redisClient, time.Duration(cfg.Session.DocumentTTLSec)*time.Second)
			appLogger.Info("Redis document storage enabled",
				zap.String("addr", fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)),
			)
		}
	}

	if documents == nil {
		documents = session.NewMemoryStore(cfg.Session.MaxSessions)
	}

	llmClient := llm.NewClient(cfg.LLM.Model, cfg.LLM.TimeoutSec)
	orchestrator := evaluation.NewOrchestrator(llmClient, cfg.LLM.AnswerMaxTokens, cfg.LLM.EvalMaxTokens)

	metrics.Init()

	chatHandler := handlers.NewChatHandler(orchestrator, documents, sqliteClient, llmClient)
	documentHandler := handlers.NewDocumentHandler(documents, extract.DecodePayload, extract.Text)
	historyHandler := handlers.NewHistoryHandler(sqliteClient)
	healthHandler := handlers.NewHealthHandler(sqliteClient, redisClient)
	streamHandler := handlers.NewStreamHandler(orchestrator, documents, sqliteClient)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))
	app.Use(session.Middleware(cfg.Session.CookieName))
	app.Use(validation.Middleware(validation.Config{
		MaxDocumentSize: cfg.Server.BodyLimit,
		Logger:          appLogger.GetLogger(),
	}))

	limiter := ratelimit.New(ratelimit.Config{
		CookieName: cfg.Session.CookieName,
		Logger:     appLogger.GetLogger(),
	})
	defer limiter.Stop()

	app.Post("/chat", limiter.Middleware(), chatHandler.HandleChat)
	app.Post("/improve", limiter.Middleware(), chatHandler.HandleImprove)
	app.Post("/upload_pdf", documentHandler.UploadPDF)
	app.Post("/clear_history", chatHandler.ClearHistory)
	app.Post("/validate_api_key", chatHandler.ValidateAPIKey)

	app.Get("/history", historyHandler.GetHistory)
	app.Get("/history/stats", historyHandler.GetStats)
	app.Get("/history/export", historyHandler.ExportHistory)
	app.Delete("/history/:id", historyHandler.DeleteItem)

	app.Get("/health", healthHandler.Handle)
	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/chat", websocket.New(streamHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
