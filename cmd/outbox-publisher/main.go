package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/travel-bookings/internal/adapters/crdb"
	"github.com/robertarktes/travel-bookings/internal/adapters/rabbit"
	"github.com/robertarktes/travel-bookings/internal/config"
	"github.com/robertarktes/travel-bookings/internal/observability"
	"github.com/robertarktes/travel-bookings/internal/outbox"
)

func main() {
	logger := observability.NewLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.CRDBDSN)
	if err != nil {
		logger.Error("failed to connect to cockroachdb", err)
		os.Exit(1)
	}
	defer pool.Close()

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
	publisher := outbox.NewPublisher(repo, broker, logger)

	logger.Info("starting outbox publisher")
	if err := publisher.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("outbox publisher stopped", err)
		os.Exit(1)
	}
	logger.Info("outbox publisher stopped")
}
