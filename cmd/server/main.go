package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"portal-service/internal/ai"
	"portal-service/internal/aiqueue"
	"portal-service/internal/api/routes"
	"portal-service/internal/config"
	"portal-service/internal/database"
	"portal-service/internal/presence"
	"portal-service/internal/repositories/postgres"
	"portal-service/internal/services"
	ws "portal-service/internal/websocket"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	slog.Info("Starting portal server")

	redisClient, err := database.NewRedisConnection(&cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	db, err := database.NewPostgresConnection(&cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}

	storage, err := database.NewMinIOClient(&cfg.MinIO)
	if err != nil {
		slog.Error("Failed to connect to MinIO", "error", err)
		os.Exit(1)
	}

	userRepo := postgres.NewUserRepository(db)
	redisService := services.NewRedisService(redisClient)

	// A restart means nobody is connected; stale presence state would
	// otherwise survive until the heartbeats expired on their own.
	startupCtx := context.Background()
	if err := userRepo.ClearHeartbeats(); err != nil {
		slog.Error("Failed to clear heartbeats", "error", err)
	}
	if err := redisService.ClearOnlineUsers(startupCtx); err != nil {
		slog.Error("Failed to clear online user set", "error", err)
	}

	engine, err := ai.NewOllamaEngine(cfg.AI.BaseURL, cfg.AI.Model)
	if err != nil {
		slog.Error("Failed to initialize inference engine", "error", err)
		os.Exit(1)
	}
	queue := aiqueue.New(cfg.AI.PollInterval)

	registry := ws.NewRegistry()
	dispatcher := ws.NewDispatcher(registry)

	sweeperCtx, stopSweeper := context.WithCancel(context.Background())
	sweeper := presence.NewSweeper(userRepo, cfg.Presence.SweepInterval, cfg.Presence.OnlineWindow)
	go sweeper.Run(sweeperCtx)

	router := routes.NewRouter(routes.Deps{
		Config:      cfg,
		DB:          db,
		RedisClient: redisClient,
		Storage:     storage,
		Engine:      engine,
		Queue:       queue,
		Registry:    registry,
		Dispatcher:  dispatcher,
	})
	router.SetupRoutes()

	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:     router.GetEngine(),
		ReadTimeout: cfg.Server.ReadTimeout,
		// No write timeout: the AI endpoint holds an SSE stream open for
		// as long as inference takes.
		WriteTimeout: 0,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Server shutting down...")

	stopSweeper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server stopped")
}
