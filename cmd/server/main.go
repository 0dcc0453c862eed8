package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"screenai-backend/internal/capture"
	"screenai-backend/internal/config"
	"screenai-backend/internal/credentials"
	"screenai-backend/internal/database"
	"screenai-backend/internal/handlers"
	"screenai-backend/internal/middleware"
	"screenai-backend/internal/orchestrator"
	"screenai-backend/internal/pkg/logger"
	"screenai-backend/internal/router"
	"screenai-backend/internal/services"
	"screenai-backend/internal/websocket"
	"screenai-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting ScreenAI Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("✗ Invalid configuration: %v", err)
	}
	log.Println("✓ Environment variables loaded")

	appLog := logger.NewZapLogger(cfg.LogFile, cfg.IsProduction())
	defer appLog.Sync()

	// ──── Step 2: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL, cfg.WorkerCount)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 3: Credentials and Viewport Frames ────
	var creds credentials.Store = credentials.NewEnvStore()
	if cfg.CredentialSource == "redis" {
		creds = credentials.NewRedisStore(redisClients.Queue, credentials.DefaultRedisKey)
	}
	log.Printf("✓ Credentials read from %s", cfg.CredentialSource)

	frames := capture.NewRedisStore(redisClients.Queue, cfg.ViewportTTL)

	// ──── Step 4: Initialize Provider Services ────
	geminiService := services.NewGeminiService(cfg.GeminiConcurrentReqs, appLog)
	ocrService := services.NewOCRService(cfg.OCREndpoint, appLog)
	imageFetcher := services.NewImageFetcher(cfg.ImageProxyURL)
	log.Printf("✓ Gemini client ready (text: %s, vision: %s)", cfg.GeminiTextModel, cfg.GeminiVisionModel)

	orch := orchestrator.New(orchestrator.Deps{
		Sender:      orchestrator.NewRedisSender(redisClients.Queue),
		Generator:   geminiService,
		Recognizer:  ocrService,
		Images:      imageFetcher,
		Capturer:    frames,
		Credentials: creds,
		Logger:      appLog,
		TextModel:   cfg.GeminiTextModel,
		VisionModel: cfg.GeminiVisionModel,
	})

	// ──── Step 5: Start Intent Worker Pool ────
	workerPool := worker.NewPool(redisClients.Queue, orch, cfg.WorkerCount, appLog)
	workerPool.Start()
	log.Printf("✓ Worker pool started (%d goroutines)", cfg.WorkerCount)

	// ──── Step 6: Start WebSocket Hub ────
	tokens := middleware.NewContextTokens(cfg.JWTSecret, cfg.ContextTokenTTL)
	wsHub := websocket.NewHub(
		redisClients.PubSub,
		tokens,
		worker.NewQueue(redisClients.Queue, cfg.WorkerCount),
		orchestrator.UpdatesChannel,
		appLog,
	)
	log.Println("✓ WebSocket hub started")

	// ──── Step 7: Start HTTP Server ────
	contextLimiter := middleware.NewRateLimiter(rate.Every(2*time.Second), 10)
	defer contextLimiter.Stop()

	r := router.New(tokens, contextLimiter, router.Handlers{
		Contexts:  handlers.NewContextHandler(tokens, appLog),
		Render:    handlers.NewRenderHandler(),
		Viewport:  handlers.NewViewportHandler(frames, appLog),
		Health:    handlers.NewHealthHandler().Check("redis", redisClients),
		WebSocket: wsHub.HandleWebSocket,
	}, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: r,
		// Viewport uploads are large; provider calls are not made on this path.
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		workerPool.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	appLog.Info("Server", "listening", map[string]interface{}{"port": cfg.Port, "env": cfg.Env})
	log.Printf("✓ ScreenAI Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
