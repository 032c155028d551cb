package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/robertarktes/travel-bookings/internal/adapters/crdb"
	mongoadapter "github.com/robertarktes/travel-bookings/internal/adapters/mongo"
	"github.com/robertarktes/travel-bookings/internal/adapters/rabbit"
	redisadapter "github.com/robertarktes/travel-bookings/internal/adapters/redis"
	"github.com/robertarktes/travel-bookings/internal/checkout"
	"github.com/robertarktes/travel-bookings/internal/config"
	httpapi "github.com/robertarktes/travel-bookings/internal/http"
	"github.com/robertarktes/travel-bookings/internal/observability"
	"github.com/robertarktes/travel-bookings/internal/outbox"
	"github.com/robertarktes/travel-bookings/internal/payments"
	"github.com/robertarktes/travel-bookings/internal/ratelimit"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const gatewayTimeout = 10 * time.Second

func main() {
	logger := observability.NewLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg)
	if err != nil {
		logger.Error("failed to set up tracing", err)
		os.Exit(1)
	}
	defer shutdownOTel()

	if err := crdb.RunMigrations(cfg.CRDBDSN, cfg.MigrationsDir); err != nil {
		logger.Error("failed to run migrations", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.CRDBDSN)
	if err != nil {
		logger.Error("failed to connect to cockroachdb", err)
		os.Exit(1)
	}
	defer pool.Close()

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Error("failed to connect to mongodb", err)
		os.Exit(1)
	}
	defer mongoClient.Disconnect(ctx)
	mongoDB := mongoClient.Database("travel")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", err)
		os.Exit(1)
	}
	defer rabbitConn.Close()

	broker, err := rabbit.NewPublisher(rabbitConn)
	if err != nil {
		logger.Error("failed to open rabbitmq channel", err)
		os.Exit(1)
	}

	repo := crdb.NewRepository(pool)
	catalog := mongoadapter.NewCatalogRepository(mongoDB, logger)
	notes := mongoadapter.NewNotificationStore(mongoDB, logger)
	cache := redisadapter.NewCache(redisClient)
	idemp := redisadapter.NewIdempotency(redisClient, cfg.IdempotencyTTL)
	rl := ratelimit.NewRateLimiter(cache)

	gateway := payments.NewSimulatedGateway(cfg.GatewayDelay)
	processor := payments.NewProcessor(repo, gateway, logger)
	orchestrator := checkout.NewOrchestrator(catalog, repo, processor, logger, gatewayTimeout)

	handlers := httpapi.NewHandlers(cfg, repo, catalog, notes, cache, idemp, orchestrator, logger)
	router := httpapi.NewRouter(handlers, rl, logger)

	// The API also drains its own outbox so a single-binary deployment works
	// without the standalone publisher.
	publisher := outbox.NewPublisher(repo, broker, logger)
	go func() {
		if err := publisher.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("outbox publisher stopped", err)
		}
	}()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("starting api server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", err)
	}
}
