package syncjob

import (
	"context"
	"time"

	"go-pos-sync/internal/database"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type JobRepository interface {
	Create(ctx context.Context, job *SyncJob) error
	Claim(ctx context.Context, jobID string) (*SyncJob, error)
	UpdateProgress(ctx context.Context, jobID string, progress Progress) error
	Heartbeat(ctx context.Context, jobID string) error
	Complete(ctx context.Context, jobID string, result Result) error
	Fail(ctx context.Context, jobID string, jobErr JobError) (*SyncJob, error)
	MarkNotified(ctx context.Context, jobID string) error
	GetByJobID(ctx context.Context, jobID string) (*SyncJob, error)
	FindActiveByRestaurant(ctx context.Context, restaurantID string) (*SyncJob, error)
	ListByRestaurant(ctx context.Context, restaurantID string, limit int64) ([]SyncJob, error)
	ReapStale(ctx context.Context, ttl time.Duration) ([]SyncJob, error)
	ReapOrphanedPending(ctx context.Context, ttl time.Duration) ([]SyncJob, error)
	EnsureIndexes(ctx context.Context) error
}

type JobRepositoryImpl struct {
	collection *mongo.Collection
}

func NewJobRepository(db *database.MongodbDB) JobRepository {
	return &JobRepositoryImpl{
		collection: db.DB.Collection("sync_jobs"),
	}
}

// Create inserts a new pending job. The partial unique index on
// restaurant_id (status pending/processing) rejects a second active job for
// the same tenant at the database, so concurrent producers cannot race past
// a check-then-act gap.
func (r *JobRepositoryImpl) Create(ctx context.Context, job *SyncJob) error {
	if job.ID.IsZero() {
		job.ID = primitive.NewObjectID()
	}
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	job.Status = StatusPending
	job.Attempts = 0
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = 3
	}
	job.CreatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, job)
	if mongo.IsDuplicateKeyError(err) {
		existing, findErr := r.FindActiveByRestaurant(ctx, job.RestaurantID)
		if findErr == nil && existing != nil {
			return &SyncAlreadyInProgressError{ExistingJobID: existing.JobID}
		}
		return &SyncAlreadyInProgressError{}
	}
	return err
}

// Claim atomically transitions pending -> processing. Exactly one worker can
// win; everyone else gets ErrAlreadyClaimed.
func (r *JobRepositoryImpl) Claim(ctx context.Context, jobID string) (*SyncJob, error) {
	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"status":       StatusProcessing,
			"started_at":   now,
			"heartbeat_at": now,
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var job SyncJob
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"job_id": jobID, "status": StatusPending},
		update, opts,
	).Decode(&job)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrAlreadyClaimed
		}
		return nil, err
	}
	return &job, nil
}

func (r *JobRepositoryImpl) UpdateProgress(ctx context.Context, jobID string, progress Progress) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"job_id": jobID, "status": StatusProcessing},
		bson.M{"$set": bson.M{"progress": progress, "heartbeat_at": time.Now()}},
	)
	return err
}

func (r *JobRepositoryImpl) Heartbeat(ctx context.Context, jobID string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"job_id": jobID, "status": StatusProcessing},
		bson.M{"$set": bson.M{"heartbeat_at": time.Now()}},
	)
	return err
}

func (r *JobRepositoryImpl) Complete(ctx context.Context, jobID string, result Result) error {
	now := time.Now()
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"job_id": jobID, "status": StatusProcessing},
		bson.M{"$set": bson.M{
			"status":       StatusCompleted,
			"result":       result,
			"completed_at": now,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrJobNotFound
	}
	return nil
}

// Fail increments the attempt counter and either re-pends the job for
// another pickup or parks it terminally failed once attempts run out.
func (r *JobRepositoryImpl) Fail(ctx context.Context, jobID string, jobErr JobError) (*SyncJob, error) {
	jobErr.Timestamp = time.Now()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var job SyncJob
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"job_id": jobID, "status": StatusProcessing},
		bson.M{
			"$inc": bson.M{"attempts": 1},
			"$set": bson.M{"error": jobErr},
		},
		opts,
	).Decode(&job)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	update := bson.M{"$set": bson.M{"status": StatusPending}}
	job.Status = StatusPending
	if job.Attempts >= job.MaxAttempts {
		now := time.Now()
		update = bson.M{"$set": bson.M{"status": StatusFailed, "completed_at": now}}
		job.Status = StatusFailed
		job.CompletedAt = &now
	}

	if _, err := r.collection.UpdateOne(ctx, bson.M{"job_id": jobID}, update); err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *JobRepositoryImpl) MarkNotified(ctx context.Context, jobID string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"job_id": jobID},
		bson.M{"$set": bson.M{"notification_sent": true}},
	)
	return err
}

func (r *JobRepositoryImpl) GetByJobID(ctx context.Context, jobID string) (*SyncJob, error) {
	var job SyncJob
	err := r.collection.FindOne(ctx, bson.M{"job_id": jobID}).Decode(&job)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

func (r *JobRepositoryImpl) FindActiveByRestaurant(ctx context.Context, restaurantID string) (*SyncJob, error) {
	var job SyncJob
	err := r.collection.FindOne(ctx, bson.M{
		"restaurant_id": restaurantID,
		"status":        bson.M{"$in": []JobStatus{StatusPending, StatusProcessing}},
	}).Decode(&job)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

func (r *JobRepositoryImpl) ListByRestaurant(ctx context.Context, restaurantID string, limit int64) ([]SyncJob, error) {
	if limit <= 0 {
		limit = 20
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cursor, err := r.collection.Find(ctx, bson.M{"restaurant_id": restaurantID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var jobs []SyncJob
	if err = cursor.All(ctx, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// ReapStale re-pends processing jobs whose heartbeat expired, so jobs held by
// crashed workers become claimable again. Returns the re-pended jobs for
// re-enqueueing.
func (r *JobRepositoryImpl) ReapStale(ctx context.Context, ttl time.Duration) ([]SyncJob, error) {
	cutoff := time.Now().Add(-ttl)
	filter := bson.M{
		"status":       StatusProcessing,
		"heartbeat_at": bson.M{"$lt": cutoff},
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var stale []SyncJob
	if err = cursor.All(ctx, &stale); err != nil {
		return nil, err
	}

	var reaped []SyncJob
	for _, job := range stale {
		// Per-job guarded update so a worker that heartbeats between the find
		// and the update keeps its claim.
		res, err := r.collection.UpdateOne(ctx,
			bson.M{"job_id": job.JobID, "status": StatusProcessing, "heartbeat_at": bson.M{"$lt": cutoff}},
			bson.M{"$set": bson.M{"status": StatusPending}},
		)
		if err != nil {
			return reaped, err
		}
		if res.ModifiedCount > 0 {
			job.Status = StatusPending
			reaped = append(reaped, job)
		}
	}
	return reaped, nil
}

// ReapOrphanedPending returns pending jobs untouched for longer than ttl. A
// pending job that old has usually lost its queue entry (process restart with
// the in-process queue, or an enqueue failure right after create), leaving its
// tenant blocked until someone puts it back on the queue. Matched jobs are
// stamped so each is handed back at most once per ttl; a duplicate queue entry
// is harmless because Claim admits exactly one worker.
func (r *JobRepositoryImpl) ReapOrphanedPending(ctx context.Context, ttl time.Duration) ([]SyncJob, error) {
	cutoff := time.Now().Add(-ttl)
	filter := bson.M{
		"status":     StatusPending,
		"created_at": bson.M{"$lt": cutoff},
		"$or": []bson.M{
			{"heartbeat_at": bson.M{"$exists": false}},
			{"heartbeat_at": bson.M{"$lt": cutoff}},
		},
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var orphans []SyncJob
	if err = cursor.All(ctx, &orphans); err != nil {
		return nil, err
	}

	var reaped []SyncJob
	now := time.Now()
	for _, job := range orphans {
		res, err := r.collection.UpdateOne(ctx,
			bson.M{"job_id": job.JobID, "status": StatusPending},
			bson.M{"$set": bson.M{"heartbeat_at": now}},
		)
		if err != nil {
			return reaped, err
		}
		if res.ModifiedCount > 0 {
			hb := now
			job.HeartbeatAt = &hb
			reaped = append(reaped, job)
		}
	}
	return reaped, nil
}

func (r *JobRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "job_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// At most one active job per tenant, enforced by the database
			Keys: bson.D{{Key: "restaurant_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{
					"status": bson.M{"$in": []string{string(StatusPending), string(StatusProcessing)}},
				}),
		},
		{
			Keys: bson.D{{Key: "restaurant_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
	})
	return err
}
