package credential

import (
	"context"
	"time"

	"go-pos-sync/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CredentialRepository interface {
	Upsert(ctx context.Context, cred *Credential) error
	GetByRestaurant(ctx context.Context, restaurantID string) (*Credential, error)
	ListActive(ctx context.Context) ([]Credential, error)
	SetLastSyncAt(ctx context.Context, restaurantID string, t time.Time) error
	Deactivate(ctx context.Context, restaurantID string) error
	EnsureIndexes(ctx context.Context) error
}

type CredentialRepositoryImpl struct {
	collection *mongo.Collection
}

func NewCredentialRepository(db *database.MongodbDB) CredentialRepository {
	return &CredentialRepositoryImpl{
		collection: db.DB.Collection("pos_credentials"),
	}
}

func (r *CredentialRepositoryImpl) Upsert(ctx context.Context, cred *Credential) error {
	now := time.Now()
	cred.UpdatedAt = now
	if cred.ID.IsZero() {
		cred.ID = primitive.NewObjectID()
		cred.CreatedAt = now
	}

	update := bson.M{
		"$set": bson.M{
			"encrypted_client_id":     cred.EncryptedClientID,
			"encrypted_client_secret": cred.EncryptedClientSecret,
			"location_id":             cred.LocationID,
			"is_active":               cred.IsActive,
			"updated_at":              cred.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"_id":        cred.ID,
			"created_at": cred.CreatedAt,
		},
	}

	opts := options.Update().SetUpsert(true)
	_, err := r.collection.UpdateOne(ctx, bson.M{"restaurant_id": cred.RestaurantID}, update, opts)
	return err
}

func (r *CredentialRepositoryImpl) GetByRestaurant(ctx context.Context, restaurantID string) (*Credential, error) {
	var cred Credential
	err := r.collection.FindOne(ctx, bson.M{"restaurant_id": restaurantID}).Decode(&cred)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &cred, nil
}

func (r *CredentialRepositoryImpl) ListActive(ctx context.Context) ([]Credential, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"is_active": true})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var creds []Credential
	if err = cursor.All(ctx, &creds); err != nil {
		return nil, err
	}
	return creds, nil
}

func (r *CredentialRepositoryImpl) SetLastSyncAt(ctx context.Context, restaurantID string, t time.Time) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"restaurant_id": restaurantID},
		bson.M{"$set": bson.M{"last_sync_at": t, "updated_at": time.Now()}},
	)
	return err
}

func (r *CredentialRepositoryImpl) Deactivate(ctx context.Context, restaurantID string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"restaurant_id": restaurantID},
		bson.M{"$set": bson.M{"is_active": false, "updated_at": time.Now()}},
	)
	return err
}

func (r *CredentialRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "restaurant_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
