package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"gigmarket/backend/internal/api/handler"
	"gigmarket/backend/internal/chathub"
	"gigmarket/backend/internal/config"
	"gigmarket/backend/internal/jobs"
	"gigmarket/backend/internal/notify"
	"gigmarket/backend/internal/orders"
	"gigmarket/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

func setupDependencies(cfg *config.Config) (*gorm.DB, *redis.Client) {
	db, err := storage.OpenPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	var rdb *redis.Client
	if cfg.RedisEnabled() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			log.Fatalf("Failed to connect Redis: %v", err)
		}
	} else {
		log.Println("WARN: REDIS_ADDR not set, running as a single instance without job tracking")
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return db, rdb
}

func main() {
	log.Println("Starting gigmarket order service...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Dependencies
	db, rdb := setupDependencies(cfg)
	s := storage.NewStorageService(db, rdb)

	// 2. Services. The hub is added to the notifier once it exists.
	notifiers := notify.NewMulti()
	orderSvc := orders.NewService(s, notifiers)

	var relay chathub.Relay
	if rdb != nil {
		relay = s
	}
	hub := chathub.NewManagerService(orderSvc, relay)
	notifiers.Add(hub)

	if cfg.KafkaEnabled() {
		producer, err := notify.NewKafkaNotifier(notify.KafkaConfig{
			Brokers:  cfg.KafkaBrokers,
			Topic:    cfg.KafkaTopic,
			Username: cfg.KafkaUsername,
			Password: cfg.KafkaPassword,
		})
		if err != nil {
			log.Fatalf("Failed to start Kafka producer: %v", err)
		}
		defer producer.Close()
		notifiers.Add(producer)
	}

	if cfg.TelegramEnabled() {
		tg, err := notify.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			log.Fatalf("Failed to start Telegram notifier: %v", err)
		}
		notifiers.Add(tg)
	}

	tracker := jobs.NewTracker(s, cfg.JobStatusTTL)
	auth := handler.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer)

	// 3. Hub goroutine
	go hub.Run(ctx)

	// 4. HTTP
	h := handler.NewHandler(orderSvc, hub, tracker, auth, cfg.PaymentCallbackSecret, cfg.CORSOrigins)
	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        h.Router(),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Printf("Listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: HTTP shutdown: %v", err)
	}
	if rdb != nil {
		rdb.Close()
	}
}
