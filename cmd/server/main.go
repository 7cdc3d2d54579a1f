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

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/dak-1306/pyctalk-sub001/internal/config"
	"github.com/dak-1306/pyctalk-sub001/internal/handler"
	"github.com/dak-1306/pyctalk-sub001/internal/middleware"
	"github.com/dak-1306/pyctalk-sub001/internal/presence"
	"github.com/dak-1306/pyctalk-sub001/internal/repository"
	"github.com/dak-1306/pyctalk-sub001/internal/service"
	"github.com/dak-1306/pyctalk-sub001/pkg/logger"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	appLogger := logger.New(cfg.Log.Level)

	// Подключение к Redis (опционально: без него ядро работает в памяти)
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(context.Background()).Err(); err != nil {
			appLogger.Fatal("Failed to connect to Redis", "error", err)
		}
		appLogger.Info("Redis connection established")
	}

	// Инициализация репозиториев и реестра присутствия
	repos := repository.NewRepositories(rdb, cfg, appLogger)
	registry := presence.NewRegistry(appLogger)

	// Восстановление диалогов из снапшота
	if repos.Snapshot != nil {
		restoreConversations(repos, appLogger)
	}

	// Инициализация сервисов
	services := service.NewServices(repos, registry, cfg, appLogger)

	// Инициализация middleware
	authMiddleware := middleware.NewAuthMiddleware(services.Auth, appLogger)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(services.RateLimit, cfg.Media.UploadRateLimit, appLogger)

	// Инициализация handlers
	handlers := handler.NewHandlers(services, registry, cfg, appLogger)

	// Настройка роутера
	router := setupRouter(handlers, authMiddleware, rateLimitMiddleware, cfg)

	// Периодические снапшоты диалогов
	snapshotCtx, stopSnapshots := context.WithCancel(context.Background())
	defer stopSnapshots()
	if repos.Snapshot != nil && cfg.Redis.SnapshotInterval > 0 {
		go snapshotLoop(snapshotCtx, repos, cfg.Redis.SnapshotInterval, appLogger)
	}

	// Запуск HTTP сервера
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		appLogger.Info("Starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Ожидание сигнала для graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	stopSnapshots()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
	}

	// Финальный снапшот перед выходом
	if repos.Snapshot != nil {
		saveSnapshots(context.Background(), repos, appLogger)
	}

	appLogger.Info("Server exited")
}

func setupRouter(
	handlers *handler.Handlers,
	authMiddleware *middleware.AuthMiddleware,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	cfg *config.Config,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.ErrorHandler())

	// Health check
	router.GET("/health", handlers.Health.Check)

	// API v1
	v1 := router.Group("/api/v1")
	{
		media := v1.Group("/media")
		media.Use(authMiddleware.RequireAuth())
		{
			media.POST("", rateLimitMiddleware.Limit(), handlers.Media.Upload)
			media.DELETE("/:hash", handlers.Media.Delete)
		}
	}

	// WebSocket endpoint для чата
	router.GET("/ws/chat", handlers.WebSocket.HandleChat)

	return router
}

func restoreConversations(repos *repository.Repositories, log logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dump, err := repos.Snapshot.Load(ctx)
	if err != nil {
		log.Warn("Failed to restore conversations from snapshot", "error", err)
		return
	}
	for key, msgs := range dump {
		repos.Conversation.Restore(key, msgs)
	}
	if len(dump) > 0 {
		log.Info("Conversations restored from snapshot", "count", len(dump))
	}
}

func snapshotLoop(ctx context.Context, repos *repository.Repositories, interval time.Duration, log logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			saveSnapshots(ctx, repos, log)
		}
	}
}

func saveSnapshots(ctx context.Context, repos *repository.Repositories, log logger.Logger) {
	for key, msgs := range repos.Conversation.Dump() {
		if err := repos.Snapshot.Save(ctx, key, msgs); err != nil {
			log.Warn("Failed to snapshot conversation", "error", err, "pair", key.ID())
		}
	}
}
