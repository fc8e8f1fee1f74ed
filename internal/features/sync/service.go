package sync

import (
	"context"
	"fmt"
	"time"

	"go-pos-sync/internal/config"
	"go-pos-sync/internal/features/credential"
	"go-pos-sync/internal/features/syncjob"

	"go.uber.org/zap"
)

type SyncService interface {
	// EnqueueSync is the single producer boundary used by the manual
	// endpoint, the login flow, and the scheduler.
	EnqueueSync(ctx context.Context, restaurantID, notificationEmail string) (*syncjob.SyncJob, Window, error)
	GetStatus(ctx context.Context, restaurantID string) (*ProgressView, error)
	GetJob(ctx context.Context, jobID string) (*syncjob.SyncJob, error)
	ListJobs(ctx context.Context, restaurantID string, limit int64) ([]syncjob.SyncJob, error)
	ComputeWindow(cred *credential.Credential) Window
}

type SyncServiceImpl struct {
	JobRepo     syncjob.JobRepository
	Queue       syncjob.JobQueue
	Credentials credential.CredentialService
	Config      *config.Config
	Logger      *zap.Logger
}

func NewSyncService(
	jobRepo syncjob.JobRepository,
	queue syncjob.JobQueue,
	credentials credential.CredentialService,
	cfg *config.Config,
	logger *zap.Logger,
) SyncService {
	return &SyncServiceImpl{
		JobRepo:     jobRepo,
		Queue:       queue,
		Credentials: credentials,
		Config:      cfg,
		Logger:      logger,
	}
}

func (s *SyncServiceImpl) ComputeWindow(cred *credential.Credential) Window {
	return ComputeWindow(cred, s.Config.FullSyncLookback)
}

func (s *SyncServiceImpl) EnqueueSync(ctx context.Context, restaurantID, notificationEmail string) (*syncjob.SyncJob, Window, error) {
	var window Window

	cred, err := s.Credentials.GetCredential(ctx, restaurantID)
	if err != nil {
		return nil, window, wrapStorage(err)
	}
	if cred == nil || !cred.IsActive {
		return nil, window, ErrNoCredentials
	}

	window = s.ComputeWindow(cred)

	// Fast path rejection with the existing job id; the partial unique index
	// behind Create closes the remaining race between concurrent producers.
	if existing, err := s.JobRepo.FindActiveByRestaurant(ctx, restaurantID); err == nil && existing != nil {
		return existing, window, &syncjob.SyncAlreadyInProgressError{ExistingJobID: existing.JobID}
	}

	job := &syncjob.SyncJob{
		RestaurantID:      restaurantID,
		MaxAttempts:       s.Config.MaxAttempts,
		NotificationEmail: notificationEmail,
	}
	if err := s.JobRepo.Create(ctx, job); err != nil {
		if alreadyErr, ok := err.(*syncjob.SyncAlreadyInProgressError); ok {
			existing, findErr := s.JobRepo.GetByJobID(ctx, alreadyErr.ExistingJobID)
			if findErr != nil {
				existing = nil
			}
			return existing, window, alreadyErr
		}
		return nil, window, wrapStorage(err)
	}

	if err := s.Queue.Enqueue(ctx, job.JobID); err != nil {
		return job, window, fmt.Errorf("job %s created but not enqueued: %w", job.JobID, err)
	}

	s.Logger.Info("sync job enqueued",
		zap.String("restaurant_id", restaurantID),
		zap.String("job_id", job.JobID),
		zap.Bool("full_sync", window.FullSync))

	return job, window, nil
}

func (s *SyncServiceImpl) GetJob(ctx context.Context, jobID string) (*syncjob.SyncJob, error) {
	return s.JobRepo.GetByJobID(ctx, jobID)
}

func (s *SyncServiceImpl) ListJobs(ctx context.Context, restaurantID string, limit int64) ([]syncjob.SyncJob, error) {
	return s.JobRepo.ListByRestaurant(ctx, restaurantID, limit)
}

// GetStatus is read-only: it never mutates job state and always produces a
// view, even for failed jobs.
func (s *SyncServiceImpl) GetStatus(ctx context.Context, restaurantID string) (*ProgressView, error) {
	job, err := s.JobRepo.FindActiveByRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, err
	}

	if job == nil {
		// No active job: surface the most recent terminal outcome, else idle
		recent, err := s.JobRepo.ListByRestaurant(ctx, restaurantID, 1)
		if err != nil || len(recent) == 0 {
			return &ProgressView{Status: "idle"}, nil
		}
		job = &recent[0]
	}

	return BuildProgressView(job), nil
}

// BuildProgressView projects a job record into the polling shape.
func BuildProgressView(job *syncjob.SyncJob) *ProgressView {
	view := &ProgressView{
		Status:               string(job.Status),
		JobID:                job.JobID,
		CurrentChunk:         job.Progress.CurrentPage,
		TotalChunks:          job.Progress.TotalPages,
		TransactionsImported: job.Progress.OrdersProcessed,
	}

	if job.Progress.TotalPages > 0 {
		view.PercentComplete = float64(job.Progress.CurrentPage) / float64(job.Progress.TotalPages) * 100
	}

	switch job.Status {
	case syncjob.StatusPending:
		view.Message = "Sync queued"
	case syncjob.StatusProcessing:
		view.Message = fmt.Sprintf("Importing page %d", job.Progress.CurrentPage)
		view.EstimatedTimeRemaining = estimateTimeRemaining(job)
	case syncjob.StatusCompleted:
		view.PercentComplete = 100
		if job.Result != nil {
			view.TransactionsImported = job.Result.OrdersImported
			view.Message = fmt.Sprintf("Imported %d orders", job.Result.OrdersImported)
		}
	case syncjob.StatusFailed:
		view.Message = "Sync failed"
		if job.Error != nil {
			view.Error = job.Error.Message
		}
	}

	return view
}

// estimateTimeRemaining derives a seconds estimate from observed throughput.
// Nil when the provider gave no total or no throughput is observable yet.
func estimateTimeRemaining(job *syncjob.SyncJob) *int {
	if job.StartedAt == nil || job.Progress.EstimatedTotal == nil {
		return nil
	}
	processed := job.Progress.OrdersProcessed
	if processed <= 0 {
		return nil
	}
	elapsed := time.Since(*job.StartedAt).Seconds()
	if elapsed <= 0 {
		return nil
	}

	throughput := float64(processed) / elapsed
	remaining := *job.Progress.EstimatedTotal - processed
	if remaining <= 0 {
		zero := 0
		return &zero
	}

	seconds := int(float64(remaining) / throughput)
	return &seconds
}
