package http

import (
	"context"
	"fmt"
	"log"
	stdhttp "net/http"
	"os/signal"
	"syscall"
	"time"

	"fedimux/internal/cache"
	"fedimux/internal/config"
	"fedimux/internal/database"
	"fedimux/internal/handler"
	"fedimux/internal/mastodon"
	"fedimux/internal/model"
	"fedimux/internal/queue"
	"fedimux/internal/redis"
	"fedimux/internal/repository"
	"fedimux/internal/service"
	"fedimux/internal/store"
	"fedimux/internal/worker"
)

func Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Connect to Database
	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// 3. Connect to Redis
	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer redisClient.Close()
	if err := redisClient.Ping(ctx); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	// 4. Repositories and local state
	accountRepo := repository.NewAccountRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	deviceTokenRepo := repository.NewDeviceTokenRepository(db)

	edges := store.NewRelationshipStore()
	registry := service.NewNotificationRegistry()
	counters := cache.NewCounterStore(redisClient.Client)

	// 5. Remote client and services
	mastodonClient := mastodon.NewClient()

	relationshipService := service.NewRelationshipService(accountRepo, edges, mastodonClient)

	keys := model.KeyMaterial{
		Endpoint: cfg.PushEndpointBase,
		P256DH:   cfg.PushP256DH,
		Auth:     cfg.PushAuth,
	}
	subscriptionService := service.NewSubscriptionService(accountRepo, subscriptionRepo, mastodonClient, keys)

	var sink service.BadgeSink = service.LogBadgeSink{}
	if cfg.FCMProjectID != "" {
		fcmSink, err := service.NewFCMBadgeSink(ctx, cfg.FCMProjectID, cfg.FCMClientEmail, cfg.FCMPrivateKey, deviceTokenRepo)
		if err != nil {
			return fmt.Errorf("failed to create FCM badge sink: %w", err)
		}
		sink = fcmSink
	}

	aggregator := service.NewBadgeAggregator(accountRepo, counters, sink)
	go aggregator.Run(ctx)

	router := service.NewPushRouter(accountRepo, registry, counters, mastodonClient, subscriptionService, aggregator)

	// 6. Queue and workers
	publisher := queue.NewPublisher(redisClient.Client)
	consumer := queue.NewConsumer(redisClient.Client)

	eventHandler := worker.NewHandler(router, aggregator)
	managerCfg := worker.DefaultManagerConfig()
	managerCfg.WorkerCount = cfg.WorkerCount
	manager := worker.NewManager(consumer, eventHandler, managerCfg)
	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	defer manager.Stop()

	// 7. HTTP server
	mux := NewRouter(RouterConfig{
		AccountHandler: handler.NewAccountHandler(
			accountRepo, edges, registry, subscriptionService, counters, publisher),
		RelationshipHandler: handler.NewRelationshipHandler(relationshipService),
		PushHandler:         handler.NewPushHandler(publisher, subscriptionService, deviceTokenRepo),
		BadgeHandler:        handler.NewBadgeHandler(counters, aggregator),
		JWTSecret:           cfg.JWTSecret,
	})

	server := &stdhttp.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on :%s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
