package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Rayan1605/MainChatApplication/internal/cache"
	"github.com/Rayan1605/MainChatApplication/internal/config"
	"github.com/Rayan1605/MainChatApplication/internal/database"
	"github.com/Rayan1605/MainChatApplication/internal/handlers"
	"github.com/Rayan1605/MainChatApplication/internal/middleware"
	"github.com/Rayan1605/MainChatApplication/internal/queue"
	"github.com/Rayan1605/MainChatApplication/internal/realtime"
	"github.com/Rayan1605/MainChatApplication/internal/routes"
	"github.com/Rayan1605/MainChatApplication/internal/services"
	"github.com/Rayan1605/MainChatApplication/internal/store"
	"github.com/Rayan1605/MainChatApplication/internal/workers"
	"github.com/Rayan1605/MainChatApplication/pkg/logger"
)

func main() {
	// 0. Load Config & Initialize Logger
	config.LoadConfig()
	cfg := config.AppConfig
	logger.Init(cfg.Env)

	logger.Info().Str("environment", cfg.Env).Msg("Starting chat backend...")
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Redis: message cache, job queues, socket.io adapter
	rdb, err := database.NewRedis(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Redis is required")
	}
	defer rdb.Close()

	// 2. Durable store
	messageStore, closeStore := openStore(ctx, cfg)
	defer closeStore()

	// 3. Metrics
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// 4. Queues and workers
	registry := queue.NewRegistry()
	chatQueue := queue.NewChatQueue(rdb, registry, queue.Options{
		Prefix:   cfg.QueuePrefix,
		Attempts: cfg.QueueAttempts,
		Backoff:  cfg.QueueBackoff,
		Metrics:  queue.NewMetrics(promReg),
	}, workers.NewChatWorker(messageStore), cfg.QueueConcurrency)

	// 5. Socket.io
	socketServer, err := realtime.NewServer(realtime.Options{
		AllowedOrigin: cfg.FrontendURL,
		Redis: &realtime.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   "socket.io",
		},
		Metrics: realtime.NewMetrics(promReg),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create socket server")
	}
	go socketServer.Serve()
	defer socketServer.Close()

	// 6. Chat pipeline
	messageCache := cache.NewMessageCache(rdb)
	chatService := services.NewChatService(messageCache, socketServer.Channel(realtime.AreaChat), chatQueue)

	// 7. Router
	r := gin.New()
	r.Use(middleware.LoggingMiddleware())
	r.Use(middleware.ErrorHandlerMiddleware())
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORSMiddleware(cfg.FrontendURL))

	api := r.Group("/api/v1")
	routes.RegisterChatRoutes(api, handlers.NewChatHandler(chatService, messageCache), middleware.NewChatLimiter(ctx))
	routes.RegisterQueueRoutes(api, handlers.NewQueueHandler(registry))

	r.GET("/health", handlers.Health(
		handlers.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
		messageStore,
	))
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})))
	r.GET("/socket.io/*any", socketServer.Handler())
	r.POST("/socket.io/*any", socketServer.Handler())

	// 8. Start workers, then serve
	if err := chatQueue.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start chat queue")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	// In-flight jobs finish before Redis and the store close.
	chatQueue.Close()
	logger.Info().Msg("Server exited gracefully")
}

func openStore(ctx context.Context, cfg *config.Config) (store.MessageStore, func()) {
	switch cfg.DurableStore {
	case config.StorePostgres:
		db, err := database.ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		return store.NewGormStore(db), func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}
	default:
		mc, err := database.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
		}
		return store.NewMongoStore(mc.Database), func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			mc.Close(closeCtx)
		}
	}
}
