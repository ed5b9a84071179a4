package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/naserallahataya/mern-realtime-chat-server/internal/api"
	"github.com/naserallahataya/mern-realtime-chat-server/internal/auth"
	"github.com/naserallahataya/mern-realtime-chat-server/internal/cache"
	"github.com/naserallahataya/mern-realtime-chat-server/internal/config"
	"github.com/naserallahataya/mern-realtime-chat-server/internal/events"
	"github.com/naserallahataya/mern-realtime-chat-server/internal/logger"
	"github.com/naserallahataya/mern-realtime-chat-server/internal/metrics"
	"github.com/naserallahataya/mern-realtime-chat-server/internal/presence"
	"github.com/naserallahataya/mern-realtime-chat-server/internal/repository"
	"github.com/naserallahataya/mern-realtime-chat-server/internal/service"
	"github.com/naserallahataya/mern-realtime-chat-server/internal/storage"
	"github.com/naserallahataya/mern-realtime-chat-server/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	if _, err := os.Stat(cfgPath); err != nil {
		cfgPath = ""
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	zl, err := logger.New(cfg.App.Env != "production")
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx := context.Background()

	mongoClient, err := repository.Connect(ctx, cfg.Mongo.URI)
	if err != nil {
		zl.Fatalw("mongo connect", "err", err)
	}
	db := mongoClient.Database(cfg.Mongo.Database)
	if err := repository.EnsureIndexes(ctx, db); err != nil {
		zl.Fatalw("ensure indexes", "err", err)
	}

	convs := repository.NewMongoConversationStore(db.Collection("conversations"))
	msgs := repository.NewMongoMessageStore(db.Collection("messages"))
	users := repository.NewMongoUserStore(db.Collection("users"))

	tokens := auth.NewTokenManager(cfg.JWT.Secret, cfg.TokenTTL)

	var mirror ws.PresenceMirror
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		mirror = cache.NewPresenceStore(redisClient, cfg.Redis.Prefix)
	}

	var publisher service.EventPublisher
	var producer *events.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer = events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicMessageSent)
		publisher = producer
	}

	var blobs api.BlobStore
	if cfg.S3.Bucket != "" {
		s3Store, err := storage.NewS3Store(ctx, cfg.S3.Region, cfg.S3.Bucket)
		if err != nil {
			zl.Fatalw("s3 init", "err", err)
		}
		blobs = s3Store
	}

	m := metrics.New(nil)
	hub := ws.NewHub()
	registry := presence.NewRegistry()

	svc := service.NewMessaging(convs, msgs, users, hub, publisher, m, zl)
	wsHandler := ws.NewHandler(hub, registry, convs, users, svc, tokens, mirror, m, zl, ws.Config{
		PingInterval:   cfg.PingInterval,
		WriteDeadline:  cfg.WriteDeadline,
		MaxMessageSize: cfg.WS.MaxMessageSizeBytes,
	})

	app := api.NewServer(convs, msgs, users, svc, tokens, blobs, wsHandler, zl, cfg.Upload.MaxSizeBytes)

	if cfg.App.MetricsPort != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			zl.Infow("metrics listening", "port", cfg.App.MetricsPort)
			if err := http.ListenAndServe(":"+cfg.App.MetricsPort, mux); err != nil {
				zl.Warnw("metrics server stopped", "err", err)
			}
		}()
	}

	errs := make(chan error, 1)
	go func() {
		zl.Infow("server listening", "port", cfg.App.Port)
		errs <- app.Listen(":" + cfg.App.Port)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errs:
		zl.Fatalw("server error", "err", err)
	case s := <-sig:
		zl.Infow("signal received", "signal", s.String())
	}

	if err := app.Shutdown(); err != nil {
		zl.Warnw("fiber shutdown", "err", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if producer != nil {
		_ = producer.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		zl.Warnw("mongo disconnect", "err", err)
	}
	zl.Info("shutting down")
}
