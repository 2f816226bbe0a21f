package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"instaclone/config"
	database "instaclone/db"
	"instaclone/events"
	"instaclone/repository"
)

func main() {
	ctx := context.Background()
	// .env is optional outside local development
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	// Load database configuration
	dbCfg, err := config.LoadDatabaseConfig("")
	if err != nil {
		logger.Fatal("failed to load database config", zap.Error(err))
	}

	// Create database connection
	dbConn, err := database.NewConnection(database.Config{
		Host:         dbCfg.Host,
		Port:         dbCfg.Port,
		User:         dbCfg.User,
		Password:     dbCfg.Password,
		DBName:       dbCfg.DBName,
		SSLMode:      dbCfg.SSLMode,
		MaxOpenConns: dbCfg.MaxOpenConns,
		MaxIdleConns: dbCfg.MaxIdleConns,
		MaxLifetime:  dbCfg.MaxLifetime,
	})
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer dbConn.Close()

	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = dbConn.HealthCheck(healthCtx)
	cancel()
	if err != nil {
		logger.Fatal("database health check failed", zap.Error(err))
	}
	if err := dbConn.EnsureSchema(ctx); err != nil {
		logger.Fatal("failed to ensure schema", zap.Error(err))
	}
	logger.Info("database connected")

	// Redis backs the session store and the feed cache
	redisCfg := config.LoadRedisConfig()
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
		PoolSize: 10,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	logger.Info("redis connected")

	// Change-event bus: NATS when configured, in-process otherwise
	natsCfg := config.LoadNATSConfig()
	var bus events.Bus
	if natsCfg.URL != "" {
		natsBus, err := events.NewNATSBus(events.NATSConfig{
			URL:           natsCfg.URL,
			MaxReconnects: natsCfg.MaxReconnects,
			ReconnectWait: natsCfg.ReconnectWait,
		}, logger)
		if err != nil {
			logger.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer natsBus.Close()
		bus = natsBus
		logger.Info("nats connected", zap.String("url", natsCfg.URL))
	} else {
		bus = events.NewMemoryBus()
		logger.Info("using in-process event bus")
	}

	// Visibility tap: log chat change events flowing through the bus.
	tap, err := bus.Subscribe(events.SubjectChatChangedAll, func(subject string, data []byte) {
		var event events.ChatChangedEvent
		if err := events.Decode(data, &event); err != nil {
			logger.Warn("failed to decode chat event", zap.Error(err))
			return
		}
		logger.Debug("chat changed", zap.String("chat_id", event.ChatID))
	})
	if err != nil {
		logger.Fatal("failed to subscribe event tap", zap.Error(err))
	}
	defer tap.Unsubscribe()

	// Background reconciler repairs the denormalized copies
	feedCache := repository.NewFeedCache(redisClient)
	reconciler := repository.NewReconciler(dbConn.DB, feedCache, logger)
	reconCfg := config.LoadReconcilerConfig()

	if reconCfg.RunOnce {
		if err := reconciler.Run(ctx); err != nil {
			logger.Fatal("reconcile pass failed", zap.Error(err))
		}
		return
	}

	reconCtx, stopReconciler := context.WithCancel(ctx)
	go runReconciler(reconCtx, reconciler, reconCfg.Interval, logger)

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	stopReconciler()
}

func runReconciler(ctx context.Context, reconciler *repository.Reconciler, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := reconciler.Run(ctx); err != nil {
			logger.Error("reconcile pass failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
