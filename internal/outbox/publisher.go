package outbox

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/travel-bookings/internal/adapters/crdb"
	"github.com/robertarktes/travel-bookings/internal/adapters/rabbit"
	"github.com/robertarktes/travel-bookings/internal/observability"
)

const (
	pollInterval = 2 * time.Second
	batchSize    = 100
)

// Publisher drains NEW outbox rows to the broker. A row is marked PUBLISHED
// only after the broker accepts it, so a crash re-delivers rather than drops;
// consumers dedupe on MessageId.
type Publisher struct {
	repo   *crdb.Repository
	broker *rabbit.Publisher
	logger observability.Logger
}

func NewPublisher(repo *crdb.Repository, broker *rabbit.Publisher, logger observability.Logger) *Publisher {
	return &Publisher{repo: repo, broker: broker, logger: logger}
}

func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.drain(ctx); err != nil {
				p.logger.Error("outbox drain failed", err)
			}
		}
	}
}

func (p *Publisher) drain(ctx context.Context) error {
	records, err := p.repo.GetUnpublishedOutbox(ctx, batchSize)
	if err != nil {
		return err
	}
	if len(records) > 0 {
		// Rows come back oldest first.
		observability.OutboxLag.Set(time.Since(records[0].CreatedAt).Seconds())
	} else {
		observability.OutboxLag.Set(0)
	}

	for _, rec := range records {
		msg := amqp.Publishing{
			ContentType: "application/json",
			MessageId:   rec.DedupeKey,
			Timestamp:   rec.CreatedAt,
			Type:        rec.EventType,
			Body:        rec.Payload,
		}
		if err := p.broker.Publish(ctx, rec.EventType, msg); err != nil {
			p.logger.WithField("outbox_id", rec.ID.String()).Error("publish failed", err)
			continue
		}
		if err := p.repo.MarkPublished(ctx, rec.ID, time.Now()); err != nil {
			p.logger.WithField("outbox_id", rec.ID.String()).Error("mark published failed", err)
		}
	}
	return nil
}
