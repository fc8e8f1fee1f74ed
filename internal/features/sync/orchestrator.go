package sync

import (
	"context"
	"errors"
	"time"

	"go-pos-sync/internal/config"
	"go-pos-sync/internal/features/credential"
	"go-pos-sync/internal/features/notification"
	"go-pos-sync/internal/features/pos"
	"go-pos-sync/internal/features/syncjob"
	"go-pos-sync/internal/features/transaction"

	"go.uber.org/zap"
)

// Orchestrator is the worker loop: it claims queued jobs, drives the
// fetch/import page loop, keeps progress and heartbeats current, and decides
// retry versus terminal failure.
type Orchestrator struct {
	Queue       syncjob.JobQueue
	JobRepo     syncjob.JobRepository
	Credentials credential.CredentialService
	Fetcher     pos.Fetcher
	Importer    transaction.Importer
	Notifier    notification.NotificationService
	Hub         *ProgressHub
	Config      *config.Config
	Logger      *zap.Logger

	stop chan struct{}
	done chan struct{}
}

func NewOrchestrator(
	queue syncjob.JobQueue,
	jobRepo syncjob.JobRepository,
	credentials credential.CredentialService,
	fetcher pos.Fetcher,
	importer transaction.Importer,
	notifier notification.NotificationService,
	hub *ProgressHub,
	cfg *config.Config,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		Queue:       queue,
		JobRepo:     jobRepo,
		Credentials: credentials,
		Fetcher:     fetcher,
		Importer:    importer,
		Notifier:    notifier,
		Hub:         hub,
		Config:      cfg,
		Logger:      logger,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start launches the consume loop and the stale-job reaper.
func (o *Orchestrator) Start() {
	go o.reaperLoop()
	go o.consumeLoop()
}

// Stop signals the loops and waits for the in-flight job to finish.
func (o *Orchestrator) Stop(ctx context.Context) error {
	close(o.stop)
	select {
	case <-o.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) consumeLoop() {
	defer close(o.done)
	ctx := context.Background()

	for {
		select {
		case <-o.stop:
			return
		default:
		}

		jobID, err := o.Queue.Dequeue(ctx, o.Config.WorkerPollInterval)
		if err != nil {
			o.Logger.Error("failed to dequeue sync job", zap.Error(err))
			time.Sleep(o.Config.WorkerPollInterval)
			continue
		}
		if jobID == "" {
			continue
		}

		o.ProcessJob(ctx, jobID)
	}
}

func (o *Orchestrator) reaperLoop() {
	interval := o.Config.HeartbeatTTL / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Sweep once at startup so jobs stranded by the previous process are
	// recovered before the first tick.
	o.recoverJobs()

	for {
		select {
		case <-o.stop:
			return
		case <-ticker.C:
			o.recoverJobs()
		}
	}
}

// recoverJobs puts stranded jobs back on the queue: processing jobs whose
// worker stopped heartbeating, and pending jobs whose queue entry is gone.
func (o *Orchestrator) recoverJobs() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stale, err := o.JobRepo.ReapStale(ctx, o.Config.HeartbeatTTL)
	if err != nil {
		o.Logger.Error("stale job reap failed", zap.Error(err))
	}
	for _, job := range stale {
		o.Logger.Warn("re-enqueued stale sync job",
			zap.String("restaurant_id", job.RestaurantID),
			zap.String("job_id", job.JobID))
		if err := o.Queue.Enqueue(ctx, job.JobID); err != nil {
			o.Logger.Error("failed to re-enqueue stale job",
				zap.String("job_id", job.JobID), zap.Error(err))
		}
	}

	orphaned, err := o.JobRepo.ReapOrphanedPending(ctx, o.Config.HeartbeatTTL)
	if err != nil {
		o.Logger.Error("orphaned pending job scan failed", zap.Error(err))
	}
	for _, job := range orphaned {
		o.Logger.Warn("re-enqueued orphaned pending sync job",
			zap.String("restaurant_id", job.RestaurantID),
			zap.String("job_id", job.JobID))
		if err := o.Queue.Enqueue(ctx, job.JobID); err != nil {
			o.Logger.Error("failed to re-enqueue pending job",
				zap.String("job_id", job.JobID), zap.Error(err))
		}
	}
}

// ProcessJob claims and runs a single job end to end.
func (o *Orchestrator) ProcessJob(ctx context.Context, jobID string) {
	job, err := o.JobRepo.Claim(ctx, jobID)
	if err != nil {
		if errors.Is(err, syncjob.ErrAlreadyClaimed) {
			// Another worker won, or the job was already finished
			return
		}
		o.Logger.Error("failed to claim sync job", zap.String("job_id", jobID), zap.Error(err))
		return
	}

	o.Logger.Info("sync job claimed",
		zap.String("restaurant_id", job.RestaurantID),
		zap.String("job_id", job.JobID),
		zap.Int("attempt", job.Attempts+1))

	jobCtx, cancel := context.WithTimeout(ctx, o.Config.JobTimeout)
	defer cancel()

	// Keep the claim visibly alive between page updates so a slow fetch or
	// import never trips the stale-job reaper on a healthy worker
	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go o.heartbeatLoop(hbCtx, job.JobID)

	result, window, runErr := o.runJob(jobCtx, job)
	if runErr != nil {
		o.handleFailure(ctx, job, result, runErr)
		return
	}

	if err := o.JobRepo.Complete(ctx, job.JobID, *result); err != nil {
		o.Logger.Error("failed to persist sync result",
			zap.String("job_id", job.JobID), zap.Error(err))
		o.handleFailure(ctx, job, result, wrapStorage(err))
		return
	}

	// The next sync becomes incremental from this window's end
	if err := o.Credentials.MarkSynced(ctx, job.RestaurantID, window.EndDate); err != nil {
		o.Logger.Error("failed to advance lastSyncAt",
			zap.String("restaurant_id", job.RestaurantID), zap.Error(err))
	}

	o.Logger.Info("sync job completed",
		zap.String("restaurant_id", job.RestaurantID),
		zap.String("job_id", job.JobID),
		zap.Int("orders_imported", result.OrdersImported),
		zap.Int("orders_failed", result.OrdersFailed),
		zap.Int64("duration_ms", result.DurationMs))

	o.notify(ctx, job, result, "")
	o.broadcastDone(job)
}

// heartbeatLoop refreshes the claim until the job finishes. The interval
// keeps at least two beats inside the reaper's TTL.
func (o *Orchestrator) heartbeatLoop(ctx context.Context, jobID string) {
	interval := o.Config.HeartbeatTTL / 3
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := o.JobRepo.Heartbeat(ctx, jobID); err != nil {
				o.Logger.Warn("heartbeat update failed",
					zap.String("job_id", jobID), zap.Error(err))
			}
		}
	}
}

// runJob drives the page loop. It returns the result and the window actually
// used; on error the result still carries whatever was imported before the
// failure, so the downstream notification reflects the partial work.
func (o *Orchestrator) runJob(ctx context.Context, job *syncjob.SyncJob) (*syncjob.Result, Window, error) {
	start := time.Now()
	var window Window

	var (
		page           = 1
		totalPages     = 0
		ordersImported = 0
		ordersFailed   = 0
		processed      = 0
	)

	partial := func() *syncjob.Result {
		return &syncjob.Result{
			OrdersImported: ordersImported,
			OrdersFailed:   ordersFailed,
			TotalPages:     totalPages,
			DurationMs:     time.Since(start).Milliseconds(),
			StartDate:      window.StartDate,
			EndDate:        window.EndDate,
			FullSync:       window.FullSync,
		}
	}

	cred, err := o.Credentials.GetCredential(ctx, job.RestaurantID)
	if err != nil {
		return partial(), window, wrapStorage(err)
	}
	if cred == nil || !cred.IsActive {
		return partial(), window, ErrNoCredentials
	}

	decrypted, err := o.Credentials.DecryptCredentialSet(cred)
	if err != nil {
		return partial(), window, err
	}

	window = ComputeWindow(cred, o.Config.FullSyncLookback)

	token, err := o.Fetcher.Authenticate(ctx, decrypted)
	if err != nil {
		return partial(), window, err
	}

	fetchWindow := pos.FetchWindow{Start: window.StartDate, End: window.EndDate}

	for {
		batch, err := o.Fetcher.FetchPage(ctx, token, decrypted.LocationGUID, fetchWindow, page)
		if err != nil {
			return partial(), window, err
		}

		batchResult, err := o.Importer.ImportBatch(ctx, job.RestaurantID, batch.Records)
		if err != nil {
			return partial(), window, wrapStorage(err)
		}

		ordersImported += batchResult.Imported
		ordersFailed += batchResult.Failed
		processed += len(batch.Records)

		if batch.TotalPages != nil {
			totalPages = *batch.TotalPages
		} else if batch.Done() {
			totalPages = page
		}

		progress := syncjob.Progress{
			CurrentPage:     page,
			TotalPages:      totalPages,
			OrdersProcessed: processed,
			EstimatedTotal:  batch.TotalCount,
		}
		if err := o.JobRepo.UpdateProgress(ctx, job.JobID, progress); err != nil {
			return partial(), window, wrapStorage(err)
		}
		job.Progress = progress
		o.Hub.Broadcast(job.RestaurantID, BuildProgressView(job))

		if batch.Done() {
			break
		}
		page++
	}

	return partial(), window, nil
}

// handleFailure records the attempt and either re-enqueues the job or parks
// it terminally failed with the captured error. The partial result preserves
// pre-failure import counts for the downstream notification.
func (o *Orchestrator) handleFailure(ctx context.Context, job *syncjob.SyncJob, partial *syncjob.Result, runErr error) {
	code := classifyError(runErr)

	failed, err := o.JobRepo.Fail(ctx, job.JobID, syncjob.JobError{
		Message: runErr.Error(),
		Code:    code,
	})
	if err != nil {
		o.Logger.Error("failed to record job failure",
			zap.String("job_id", job.JobID), zap.Error(err))
		return
	}

	if failed.Status == syncjob.StatusPending {
		o.Logger.Warn("sync job failed, re-queued",
			zap.String("restaurant_id", job.RestaurantID),
			zap.String("job_id", job.JobID),
			zap.String("code", code),
			zap.Int("attempts", failed.Attempts),
			zap.Int("max_attempts", failed.MaxAttempts),
			zap.Error(runErr))
		if err := o.Queue.Enqueue(ctx, job.JobID); err != nil {
			o.Logger.Error("failed to re-enqueue job after failure",
				zap.String("job_id", job.JobID), zap.Error(err))
		}
		return
	}

	o.Logger.Error("sync job terminally failed",
		zap.String("restaurant_id", job.RestaurantID),
		zap.String("job_id", job.JobID),
		zap.String("code", code),
		zap.Int("attempts", failed.Attempts),
		zap.Error(runErr))

	if partial == nil {
		partial = &syncjob.Result{}
	}
	o.notify(ctx, failed, partial, runErr.Error())
	o.broadcastDone(failed)
}

func (o *Orchestrator) notify(ctx context.Context, job *syncjob.SyncJob, result *syncjob.Result, errorMessage string) {
	n := &notification.SyncNotification{
		RestaurantID:   job.RestaurantID,
		JobID:          job.JobID,
		OrdersImported: result.OrdersImported,
		OrdersFailed:   result.OrdersFailed,
		DurationMs:     result.DurationMs,
		Success:        errorMessage == "",
		ErrorMessage:   errorMessage,
		Email:          job.NotificationEmail,
	}
	if err := o.Notifier.NotifySyncFinished(ctx, n); err != nil {
		o.Logger.Error("downstream notification failed",
			zap.String("job_id", job.JobID), zap.Error(err))
		return
	}
	if err := o.JobRepo.MarkNotified(ctx, job.JobID); err != nil {
		o.Logger.Error("failed to mark job notified",
			zap.String("job_id", job.JobID), zap.Error(err))
	}
}

func (o *Orchestrator) broadcastDone(job *syncjob.SyncJob) {
	current, err := o.JobRepo.GetByJobID(context.Background(), job.JobID)
	if err != nil {
		current = job
	}
	o.Hub.Broadcast(job.RestaurantID, BuildProgressView(current))
}
