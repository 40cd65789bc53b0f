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
	"github.com/tixgate/tixgate/internal/di"
	"github.com/tixgate/tixgate/internal/fanout"
	"github.com/tixgate/tixgate/internal/metrics"
	"github.com/tixgate/tixgate/internal/repository"
	"github.com/tixgate/tixgate/internal/service"
	"github.com/tixgate/tixgate/internal/worker"
	"github.com/tixgate/tixgate/pkg/config"
	"github.com/tixgate/tixgate/pkg/database"
	"github.com/tixgate/tixgate/pkg/logger"
	"github.com/tixgate/tixgate/pkg/middleware"
	pkgredis "github.com/tixgate/tixgate/pkg/redis"
	"github.com/tixgate/tixgate/pkg/telemetry"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logLevel := "info"
	if cfg.App.Debug {
		logLevel = "debug"
	}
	if err := logger.Init(&logger.Config{
		Level:       logLevel,
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("starting tixgate",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment))

	ctx := context.Background()

	// Initialize tracing
	if cfg.OTel.Enabled {
		if _, err := telemetry.Init(ctx, &telemetry.Config{
			Enabled:        true,
			ServiceName:    cfg.OTel.ServiceName,
			ServiceVersion: cfg.App.Version,
			Environment:    cfg.App.Environment,
			CollectorAddr:  cfg.OTel.CollectorAddr,
		}); err != nil {
			appLog.Warn("failed to initialize telemetry", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := telemetry.Shutdown(shutdownCtx); err != nil {
					appLog.Warn("telemetry shutdown failed", zap.Error(err))
				}
			}()
		}
	}
	if err := metrics.Init(); err != nil {
		appLog.Warn("failed to initialize metrics", zap.Error(err))
	}

	// Initialize database connection
	db, err := database.NewPostgres(ctx, &database.PostgresConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        int32(cfg.Database.MaxOpenConns),
		MinConns:        int32(cfg.Database.MaxIdleConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnectTimeout:  5 * time.Second,
		MaxRetries:      3,
		RetryInterval:   1 * time.Second,
		EnableTracing:   cfg.OTel.Enabled,
	})
	if err != nil {
		appLog.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()
	appLog.Info("database connected")

	// Initialize Redis connection
	redisClient, err := pkgredis.NewClient(ctx, &pkgredis.Config{
		Host:          cfg.Redis.Host,
		Port:          cfg.Redis.Port,
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.DB,
		PoolSize:      cfg.Redis.PoolSize,
		MinIdleConns:  cfg.Redis.MinIdleConns,
		DialTimeout:   cfg.Redis.DialTimeout,
		ReadTimeout:   cfg.Redis.ReadTimeout,
		WriteTimeout:  cfg.Redis.WriteTimeout,
		MaxRetries:    3,
		RetryInterval: 100 * time.Millisecond,
	})
	if err != nil {
		appLog.Fatal("redis connection failed", zap.Error(err))
	}
	defer redisClient.Close()
	appLog.Info("redis connected")

	// Initialize Kafka event publisher with no-op fallback
	var eventPublisher service.EventPublisher
	eventPublisher, err = service.NewKafkaEventPublisher(ctx, &service.EventPublisherConfig{
		Brokers:     cfg.Kafka.Brokers,
		Topic:       cfg.Kafka.Topic,
		ServiceName: cfg.App.Name,
		ClientID:    cfg.Kafka.ClientID,
	})
	if err != nil {
		appLog.Warn("kafka connection failed, using no-op publisher", zap.Error(err))
		eventPublisher = service.NewNoOpEventPublisher()
	} else {
		appLog.Info("kafka event publisher connected")
	}
	defer eventPublisher.Close()

	// Build dependency injection container
	container := di.NewContainer(&di.ContainerConfig{
		DB:             db,
		Redis:          redisClient,
		EventPublisher: eventPublisher,
		ServiceName:    cfg.App.Name,
		Version:        cfg.App.Version,
		QueueConfig: &service.QueueServiceConfig{
			EntryTTL:       cfg.Queue.EntryTTL,
			AdmitBatchSize: cfg.Queue.AdmitBatchSize,
			AdmitInterval:  cfg.Queue.AdmitInterval,
			QueuePassTTL:   cfg.Queue.QueuePassTTL,
			JWTSecret:      cfg.JWT.Secret,
		},
		InventoryConfig: &service.InventoryServiceConfig{
			LockTTL:  cfg.Booking.LockTTL,
			MaxSeats: cfg.Booking.MaxSeats,
		},
		BookingConfig: &service.BookingServiceConfig{
			SessionTTL: cfg.Booking.SessionTTL,
			MaxSeats:   cfg.Booking.MaxSeats,
		},
		NotifierConfig: &fanout.NotifierConfig{
			AdmitInterval:    cfg.Queue.AdmitInterval,
			PositionInterval: cfg.Queue.PositionInterval,
			AdmitBatchSize:   cfg.Queue.AdmitBatchSize,
		},
		SweeperConfig: &worker.SweeperConfig{
			Interval: cfg.Booking.SweepInterval,
		},
	})

	// Pre-load Lua scripts into Redis
	if queueRepo, ok := container.QueueRepo.(*repository.RedisQueueRepository); ok {
		if err := queueRepo.LoadScripts(ctx); err != nil {
			appLog.Warn("failed to pre-load Lua scripts", zap.Error(err))
		} else {
			appLog.Info("Lua scripts pre-loaded into Redis")
		}
	}

	// Start background workers
	if err := container.StartWorkers(); err != nil {
		appLog.Fatal("failed to start workers", zap.Error(err))
	}
	defer container.StopWorkers()

	// Setup Gin
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	// Liveness and readiness
	router.GET("/health", container.HealthHandler.Health)
	router.GET("/ready", container.HealthHandler.Ready)

	// API routes, identity from X-User-ID. The payment callback comes from
	// the payment collaborator and carries no user identity.
	v1 := router.Group("/api/v1")

	idempotencyConfig := middleware.DefaultIdempotencyConfig(redisClient)
	idempotencyConfig.TTL = cfg.Booking.SessionTTL

	queue := v1.Group("/queue")
	queue.Use(middleware.UserContext())
	{
		queue.POST("/join", container.QueueHandler.Join)
		queue.DELETE("/leave", container.QueueHandler.Leave)
		queue.GET("/position", container.QueueHandler.Position)
		queue.GET("/stats", container.QueueHandler.Stats)
		queue.GET("/notifications", container.QueueHandler.Notifications)
	}

	inventory := v1.Group("/inventory")
	inventory.Use(middleware.UserContext())
	{
		inventory.POST("/lock", container.InventoryHandler.Lock)
		inventory.POST("/release", container.InventoryHandler.Release)
		inventory.GET("/seats", container.InventoryHandler.Seats)
		inventory.GET("/summary", container.InventoryHandler.Summary)
	}

	bookings := v1.Group("/bookings")
	bookings.Use(middleware.UserContext())
	{
		bookings.POST("", middleware.Idempotency(idempotencyConfig), container.BookingHandler.Create)
		bookings.GET("/:id", container.BookingHandler.Get)
		bookings.POST("/:id/confirm", middleware.Idempotency(idempotencyConfig), container.BookingHandler.Confirm)
		bookings.POST("/:id/cancel", middleware.Idempotency(idempotencyConfig), container.BookingHandler.Cancel)
	}

	v1.POST("/payments/callback", container.PaymentHandler.Callback)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		appLog.Info("tixgate listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Fatal("server forced to shutdown", zap.Error(err))
	}

	appLog.Info("server exited gracefully")
}
