package transaction

import (
	"context"
	"time"

	"go-pos-sync/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type TransactionRepository interface {
	InsertMany(ctx context.Context, txns []Transaction) (int, error)
	ExistingExternalIDs(ctx context.Context, restaurantID string, externalIDs []string) (map[string]bool, error)
	ListByWindow(ctx context.Context, restaurantID string, start, end time.Time, limit int64) ([]Transaction, error)
	CountByRestaurant(ctx context.Context, restaurantID string) (int64, error)
	EnsureIndexes(ctx context.Context) error
}

type TransactionRepositoryImpl struct {
	collection *mongo.Collection
}

func NewTransactionRepository(db *database.MongodbDB) TransactionRepository {
	return &TransactionRepositoryImpl{
		collection: db.DB.Collection("transactions"),
	}
}

// InsertMany is unordered so one duplicate-key conflict (a concurrent
// overlapping import) does not abort the remainder. Returns the number
// actually inserted.
func (r *TransactionRepositoryImpl) InsertMany(ctx context.Context, txns []Transaction) (int, error) {
	if len(txns) == 0 {
		return 0, nil
	}

	docs := make([]interface{}, 0, len(txns))
	for i := range txns {
		if txns[i].ID.IsZero() {
			txns[i].ID = primitive.NewObjectID()
		}
		docs = append(docs, txns[i])
	}

	opts := options.InsertMany().SetOrdered(false)
	res, err := r.collection.InsertMany(ctx, docs, opts)
	inserted := 0
	if res != nil {
		inserted = len(res.InsertedIDs)
	}
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Losers of the unique-index race are duplicates, not failures
			return inserted, nil
		}
		return inserted, err
	}
	return inserted, nil
}

func (r *TransactionRepositoryImpl) ExistingExternalIDs(ctx context.Context, restaurantID string, externalIDs []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	if len(externalIDs) == 0 {
		return existing, nil
	}

	filter := bson.M{
		"restaurant_id": restaurantID,
		"external_id":   bson.M{"$in": externalIDs},
	}
	opts := options.Find().SetProjection(bson.M{"external_id": 1})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ExternalID string `bson:"external_id"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	for _, row := range rows {
		existing[row.ExternalID] = true
	}
	return existing, nil
}

// ListByWindow returns the tenant's transactions inside [start, end] in
// closed-at order. A non-positive limit means unbounded; the export path
// relies on that to emit every row.
func (r *TransactionRepositoryImpl) ListByWindow(ctx context.Context, restaurantID string, start, end time.Time, limit int64) ([]Transaction, error) {
	filter := bson.M{
		"restaurant_id": restaurantID,
		"closed_at":     bson.M{"$gte": start, "$lte": end},
	}
	opts := options.Find().SetSort(bson.D{{Key: "closed_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var txns []Transaction
	if err = cursor.All(ctx, &txns); err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *TransactionRepositoryImpl) CountByRestaurant(ctx context.Context, restaurantID string) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"restaurant_id": restaurantID})
}

func (r *TransactionRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			// Import idempotence rests on this index
			Keys:    bson.D{{Key: "restaurant_id", Value: 1}, {Key: "external_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "restaurant_id", Value: 1}, {Key: "closed_at", Value: 1}},
		},
	})
	return err
}
