package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	mongoadapter "github.com/robertarktes/travel-bookings/internal/adapters/mongo"
	"github.com/robertarktes/travel-bookings/internal/adapters/rabbit"
	"github.com/robertarktes/travel-bookings/internal/config"
	"github.com/robertarktes/travel-bookings/internal/observability"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const queueName = "notifications.q"

var bindings = []string{"checkout.*", "booking.*", "payment.*"}

var titles = map[string]string{
	"checkout.completed":       "Booking confirmed",
	"booking.refund_requested": "Refund requested",
	"payment.refunded":         "Payment refunded",
}

func main() {
	logger := observability.NewLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Error("failed to connect to mongodb", err)
		os.Exit(1)
	}
	defer mongoClient.Disconnect(ctx)
	notes := mongoadapter.NewNotificationStore(mongoClient.Database("travel"), logger)

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", err)
		os.Exit(1)
	}
	defer rabbitConn.Close()

	consumer, err := rabbit.NewConsumer(rabbitConn, queueName, bindings)
	if err != nil {
		logger.Error("failed to set up consumer", err)
		os.Exit(1)
	}

	deliveries, err := consumer.Consume(ctx)
	if err != nil {
		logger.Error("failed to start consuming", err)
		os.Exit(1)
	}

	logger.Info("starting notification worker")
	for {
		select {
		case <-ctx.Done():
			logger.Info("notification worker stopped")
			return
		case d, ok := <-deliveries:
			if !ok {
				logger.Error("delivery channel closed")
				return
			}
			if err := handle(ctx, notes, d, logger); err != nil {
				logger.WithField("message_id", d.MessageId).Error("failed to handle event", err)
				d.Nack(false, true)
				continue
			}
			d.Ack(false)
		}
	}
}

func handle(ctx context.Context, notes *mongoadapter.NotificationStore, d amqp.Delivery, logger observability.Logger) error {
	var payload map[string]interface{}
	if err := json.Unmarshal(d.Body, &payload); err != nil {
		// Malformed payloads never become parseable; drop instead of requeue.
		logger.WithField("message_id", d.MessageId).Error("malformed event payload", err)
		return nil
	}

	userID := uuid.Nil
	if raw, ok := payload["user_id"].(string); ok {
		userID, _ = uuid.Parse(raw)
	}
	if userID == uuid.Nil {
		return nil
	}

	title, ok := titles[d.Type]
	if !ok {
		title = "Booking update"
	}
	return notes.Insert(ctx, userID, title, d.Type, d.Type, payload)
}
