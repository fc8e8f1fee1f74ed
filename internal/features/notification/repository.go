package notification

import (
	"context"
	"time"

	"go-pos-sync/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *SyncNotification) error
	MarkEmailSent(ctx context.Context, id primitive.ObjectID) error
	ListByRestaurant(ctx context.Context, restaurantID string, limit int64) ([]SyncNotification, error)
}

type NotificationRepositoryImpl struct {
	collection *mongo.Collection
}

func NewNotificationRepository(db *database.MongodbDB) NotificationRepository {
	return &NotificationRepositoryImpl{
		collection: db.DB.Collection("sync_notifications"),
	}
}

func (r *NotificationRepositoryImpl) Create(ctx context.Context, n *SyncNotification) error {
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	n.CreatedAt = time.Now()
	_, err := r.collection.InsertOne(ctx, n)
	return err
}

func (r *NotificationRepositoryImpl) MarkEmailSent(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"email_sent": true}},
	)
	return err
}

func (r *NotificationRepositoryImpl) ListByRestaurant(ctx context.Context, restaurantID string, limit int64) ([]SyncNotification, error) {
	if limit <= 0 {
		limit = 20
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cursor, err := r.collection.Find(ctx, bson.M{"restaurant_id": restaurantID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var items []SyncNotification
	if err = cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}
