package syncjob

import (
	"context"
	"fmt"
	"time"

	"go-pos-sync/internal/config"

	"github.com/redis/go-redis/v9"
)

const queueKey = "sync:jobs"

// JobQueue decouples producers from the worker. Dequeue blocks up to the
// given timeout and returns "" when nothing arrived.
type JobQueue interface {
	Enqueue(ctx context.Context, jobID string) error
	Dequeue(ctx context.Context, timeout time.Duration) (string, error)
	ActiveJobsFor(ctx context.Context, restaurantID string) ([]string, error)
}

// NewJobQueue picks the Redis queue when an address is configured, else the
// in-process queue.
func NewJobQueue(cfg *config.Config, repo JobRepository) JobQueue {
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return NewRedisJobQueue(client, repo)
	}
	return NewMemoryJobQueue(repo)
}

// RedisJobQueue is a Redis-list-backed queue shared by multiple worker
// processes.
type RedisJobQueue struct {
	client *redis.Client
	repo   JobRepository
}

func NewRedisJobQueue(client *redis.Client, repo JobRepository) *RedisJobQueue {
	return &RedisJobQueue{client: client, repo: repo}
}

func (q *RedisJobQueue) Enqueue(ctx context.Context, jobID string) error {
	if err := q.client.LPush(ctx, queueKey, jobID).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", jobID, err)
	}
	return nil
}

func (q *RedisJobQueue) Dequeue(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := q.client.BRPop(ctx, timeout, queueKey).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to dequeue job: %w", err)
	}
	// BRPOP returns [key, value]
	if len(res) != 2 {
		return "", nil
	}
	return res[1], nil
}

func (q *RedisJobQueue) ActiveJobsFor(ctx context.Context, restaurantID string) ([]string, error) {
	return activeJobsFor(ctx, q.repo, restaurantID)
}

// MemoryJobQueue is a channel-backed queue for single-process deployments
// and tests.
type MemoryJobQueue struct {
	jobs chan string
	repo JobRepository
}

func NewMemoryJobQueue(repo JobRepository) *MemoryJobQueue {
	return &MemoryJobQueue{
		jobs: make(chan string, 1024),
		repo: repo,
	}
}

func (q *MemoryJobQueue) Enqueue(ctx context.Context, jobID string) error {
	select {
	case q.jobs <- jobID:
		return nil
	default:
		return fmt.Errorf("job queue full, cannot enqueue %s", jobID)
	}
}

func (q *MemoryJobQueue) Dequeue(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case jobID := <-q.jobs:
		return jobID, nil
	case <-timer.C:
		return "", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (q *MemoryJobQueue) ActiveJobsFor(ctx context.Context, restaurantID string) ([]string, error) {
	return activeJobsFor(ctx, q.repo, restaurantID)
}

// Active jobs live in the store, not the queue: a claimed job has left the
// list but still blocks its tenant.
func activeJobsFor(ctx context.Context, repo JobRepository, restaurantID string) ([]string, error) {
	job, err := repo.FindActiveByRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, nil
	}
	return []string{job.JobID}, nil
}
