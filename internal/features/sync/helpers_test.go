package sync

import (
	"context"
	"sort"
	stdsync "sync"
	"time"

	"go-pos-sync/internal/config"
	"go-pos-sync/internal/features/credential"
	"go-pos-sync/internal/features/notification"
	"go-pos-sync/internal/features/pos"
	"go-pos-sync/internal/features/syncjob"
	"go-pos-sync/internal/features/transaction"

	"go.uber.org/zap"
)

func testConfig() *config.Config {
	return &config.Config{
		MaxAttempts:        3,
		JobTimeout:         time.Minute,
		HeartbeatTTL:       time.Minute,
		WorkerPollInterval: 10 * time.Millisecond,
		FullSyncLookback:   30 * 24 * time.Hour,
	}
}

// fakeJobRepo mirrors the store's lifecycle semantics in memory: one active
// job per tenant, atomic claim, attempt-bounded fail.
type fakeJobRepo struct {
	mu         stdsync.Mutex
	jobs       map[string]*syncjob.SyncJob
	seq        int
	heartbeats int
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: make(map[string]*syncjob.SyncJob)}
}

func (r *fakeJobRepo) Create(_ context.Context, job *syncjob.SyncJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.jobs {
		if existing.RestaurantID == job.RestaurantID && existing.IsActive() {
			return &syncjob.SyncAlreadyInProgressError{ExistingJobID: existing.JobID}
		}
	}

	r.seq++
	if job.JobID == "" {
		job.JobID = "job-" + string(rune('a'+r.seq-1))
	}
	job.Status = syncjob.StatusPending
	job.Attempts = 0
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = 3
	}
	job.CreatedAt = time.Now().Add(time.Duration(r.seq) * time.Millisecond)

	stored := *job
	r.jobs[job.JobID] = &stored
	return nil
}

func (r *fakeJobRepo) Claim(_ context.Context, jobID string) (*syncjob.SyncJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok || job.Status != syncjob.StatusPending {
		return nil, syncjob.ErrAlreadyClaimed
	}
	now := time.Now()
	job.Status = syncjob.StatusProcessing
	job.StartedAt = &now
	job.HeartbeatAt = &now

	copied := *job
	return &copied, nil
}

func (r *fakeJobRepo) UpdateProgress(_ context.Context, jobID string, progress syncjob.Progress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[jobID]; ok && job.Status == syncjob.StatusProcessing {
		job.Progress = progress
		now := time.Now()
		job.HeartbeatAt = &now
	}
	return nil
}

func (r *fakeJobRepo) Heartbeat(_ context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[jobID]; ok && job.Status == syncjob.StatusProcessing {
		now := time.Now()
		job.HeartbeatAt = &now
		r.heartbeats++
	}
	return nil
}

func (r *fakeJobRepo) Complete(_ context.Context, jobID string, result syncjob.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok || job.Status != syncjob.StatusProcessing {
		return syncjob.ErrJobNotFound
	}
	now := time.Now()
	job.Status = syncjob.StatusCompleted
	job.Result = &result
	job.CompletedAt = &now
	return nil
}

func (r *fakeJobRepo) Fail(_ context.Context, jobID string, jobErr syncjob.JobError) (*syncjob.SyncJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok || job.Status != syncjob.StatusProcessing {
		return nil, syncjob.ErrJobNotFound
	}
	jobErr.Timestamp = time.Now()
	job.Attempts++
	job.Error = &jobErr
	if job.Attempts >= job.MaxAttempts {
		now := time.Now()
		job.Status = syncjob.StatusFailed
		job.CompletedAt = &now
	} else {
		job.Status = syncjob.StatusPending
	}
	copied := *job
	return &copied, nil
}

func (r *fakeJobRepo) MarkNotified(_ context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[jobID]; ok {
		job.NotificationSent = true
	}
	return nil
}

func (r *fakeJobRepo) GetByJobID(_ context.Context, jobID string) (*syncjob.SyncJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, syncjob.ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

func (r *fakeJobRepo) FindActiveByRestaurant(_ context.Context, restaurantID string) (*syncjob.SyncJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, job := range r.jobs {
		if job.RestaurantID == restaurantID && job.IsActive() {
			copied := *job
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeJobRepo) ListByRestaurant(_ context.Context, restaurantID string, limit int64) ([]syncjob.SyncJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var jobs []syncjob.SyncJob
	for _, job := range r.jobs {
		if job.RestaurantID == restaurantID {
			jobs = append(jobs, *job)
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
	if limit > 0 && int64(len(jobs)) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (r *fakeJobRepo) ReapStale(_ context.Context, ttl time.Duration) ([]syncjob.SyncJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-ttl)
	var reaped []syncjob.SyncJob
	for _, job := range r.jobs {
		if job.Status == syncjob.StatusProcessing && job.HeartbeatAt != nil && job.HeartbeatAt.Before(cutoff) {
			job.Status = syncjob.StatusPending
			reaped = append(reaped, *job)
		}
	}
	return reaped, nil
}

func (r *fakeJobRepo) ReapOrphanedPending(_ context.Context, ttl time.Duration) ([]syncjob.SyncJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-ttl)
	var reaped []syncjob.SyncJob
	for _, job := range r.jobs {
		if job.Status != syncjob.StatusPending || !job.CreatedAt.Before(cutoff) {
			continue
		}
		if job.HeartbeatAt != nil && !job.HeartbeatAt.Before(cutoff) {
			continue
		}
		now := time.Now()
		job.HeartbeatAt = &now
		reaped = append(reaped, *job)
	}
	return reaped, nil
}

func (r *fakeJobRepo) EnsureIndexes(_ context.Context) error { return nil }

// fakeCredentials serves one tenant's credential set without touching a vault.
type fakeCredentials struct {
	mu        stdsync.Mutex
	cred      *credential.Credential
	decrypted *credential.DecryptedCredentials
	decErr    error
	synced    []time.Time
}

func (f *fakeCredentials) SaveCredentials(_ context.Context, _, _, _, _ string) error { return nil }

func (f *fakeCredentials) GetCredential(_ context.Context, restaurantID string) (*credential.Credential, error) {
	if f.cred == nil || f.cred.RestaurantID != restaurantID {
		return nil, nil
	}
	return f.cred, nil
}

func (f *fakeCredentials) DecryptCredentialSet(_ *credential.Credential) (*credential.DecryptedCredentials, error) {
	if f.decErr != nil {
		return nil, f.decErr
	}
	return f.decrypted, nil
}

func (f *fakeCredentials) MarkSynced(_ context.Context, _ string, syncedThrough time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synced = append(f.synced, syncedThrough)
	return nil
}

func (f *fakeCredentials) ListActive(_ context.Context) ([]credential.Credential, error) {
	if f.cred == nil || !f.cred.IsActive {
		return nil, nil
	}
	return []credential.Credential{*f.cred}, nil
}

func (f *fakeCredentials) Deactivate(_ context.Context, _ string) error { return nil }

func activeTestCredentials(restaurantID string) *fakeCredentials {
	return &fakeCredentials{
		cred: &credential.Credential{
			RestaurantID:          restaurantID,
			EncryptedClientID:     "enc-id",
			EncryptedClientSecret: "enc-secret",
			LocationID:            "loc-guid",
			IsActive:              true,
		},
		decrypted: &credential.DecryptedCredentials{
			ClientID:     "client",
			ClientSecret: "secret",
			LocationGUID: "loc-guid",
		},
	}
}

// fakeFetcher replays canned pages. fetchErr fails every page, or only
// failPage when set; delay simulates a slow provider.
type fakeFetcher struct {
	mu         stdsync.Mutex
	authErr    error
	fetchErr   error
	failPage   int
	delay      time.Duration
	pages      []*pos.Page
	authCalls  int
	fetchCalls int
}

func (f *fakeFetcher) Authenticate(_ context.Context, _ *credential.DecryptedCredentials) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authCalls++
	if f.authErr != nil {
		return "", f.authErr
	}
	return "test-token", nil
}

func (f *fakeFetcher) FetchPage(_ context.Context, _, _ string, _ pos.FetchWindow, page int) (*pos.Page, error) {
	f.mu.Lock()
	f.fetchCalls++
	fetchErr := f.fetchErr
	failPage := f.failPage
	delay := f.delay
	pages := f.pages
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if fetchErr != nil && (failPage == 0 || page == failPage) {
		return nil, fetchErr
	}
	if page < 1 || page > len(pages) {
		return &pos.Page{PageNumber: page}, nil
	}
	return pages[page-1], nil
}

// fakeImporter imports every well-formed record.
type fakeImporter struct {
	mu       stdsync.Mutex
	batches  [][]pos.ProviderTransaction
	imported int
}

func (f *fakeImporter) ImportBatch(_ context.Context, _ string, records []pos.ProviderTransaction) (transaction.BatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, records)
	f.imported += len(records)
	return transaction.BatchResult{Imported: len(records)}, nil
}

// fakeNotifier records delivered payloads.
type fakeNotifier struct {
	mu   stdsync.Mutex
	sent []notification.SyncNotification
}

func (f *fakeNotifier) NotifySyncFinished(_ context.Context, n *notification.SyncNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, *n)
	return nil
}

func (f *fakeNotifier) ListByRestaurant(_ context.Context, _ string, _ int64) ([]notification.SyncNotification, error) {
	return nil, nil
}

func newTestOrchestrator(repo *fakeJobRepo, creds *fakeCredentials, fetcher *fakeFetcher) (*Orchestrator, *syncjob.MemoryJobQueue, *fakeImporter, *fakeNotifier) {
	queue := syncjob.NewMemoryJobQueue(repo)
	importer := &fakeImporter{}
	notifier := &fakeNotifier{}
	orch := NewOrchestrator(queue, repo, creds, fetcher, importer, notifier,
		NewProgressHub(zap.NewNop()), testConfig(), zap.NewNop())
	return orch, queue, importer, notifier
}
