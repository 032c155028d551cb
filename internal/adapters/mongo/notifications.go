package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/travel-bookings/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type NotificationStore struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewNotificationStore(db *mongo.Database, logger observability.Logger) *NotificationStore {
	return &NotificationStore{
		coll:   db.Collection("notifications"),
		logger: logger,
	}
}

type NotificationDoc struct {
	ID        uuid.UUID `bson:"_id"`
	UserID    uuid.UUID `bson:"userId"`
	Title     string    `bson:"title"`
	Body      string    `bson:"body"`
	EventType string    `bson:"eventType"`
	Data      bson.M    `bson:"data"`
	Read      bool      `bson:"read"`
	CreatedAt time.Time `bson:"createdAt"`
}

func (n *NotificationStore) Insert(ctx context.Context, userID uuid.UUID, title, body, eventType string, data map[string]interface{}) error {
	doc := NotificationDoc{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     title,
		Body:      body,
		EventType: eventType,
		Data:      bson.M(data),
		CreatedAt: time.Now(),
	}
	_, err := n.coll.InsertOne(ctx, doc)
	if err != nil {
		n.logger.Error("failed to insert notification", err)
	}
	return err
}

func (n *NotificationStore) ListForUser(ctx context.Context, userID uuid.UUID, limit int64) ([]NotificationDoc, error) {
	cur, err := n.coll.Find(ctx, bson.M{"userId": userID},
		options.Find().SetSort(bson.M{"createdAt": -1}).SetLimit(limit))
	if err != nil {
		n.logger.Error("failed to list notifications", err)
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []NotificationDoc
	for cur.Next(ctx) {
		var doc NotificationDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, cur.Err()
}
