package sync

import (
	"context"
	"testing"
	"time"

	"go-pos-sync/internal/features/credential"
	"go-pos-sync/internal/features/pos"
	"go-pos-sync/internal/features/syncjob"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSyncService(repo *fakeJobRepo, creds *fakeCredentials) (*SyncServiceImpl, *syncjob.MemoryJobQueue) {
	queue := syncjob.NewMemoryJobQueue(repo)
	svc := &SyncServiceImpl{
		JobRepo:     repo,
		Queue:       queue,
		Credentials: creds,
		Config:      testConfig(),
		Logger:      zap.NewNop(),
	}
	return svc, queue
}

func TestEnqueueSyncNoCredentials(t *testing.T) {
	svc, _ := newTestSyncService(newFakeJobRepo(), &fakeCredentials{})

	_, _, err := svc.EnqueueSync(context.Background(), "rest-1", "")
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestEnqueueSyncInactiveCredentials(t *testing.T) {
	creds := activeTestCredentials("rest-1")
	creds.cred.IsActive = false
	svc, _ := newTestSyncService(newFakeJobRepo(), creds)

	_, _, err := svc.EnqueueSync(context.Background(), "rest-1", "")
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestEnqueueSyncCreatesAndQueuesJob(t *testing.T) {
	repo := newFakeJobRepo()
	svc, queue := newTestSyncService(repo, activeTestCredentials("rest-1"))
	ctx := context.Background()

	job, window, err := svc.EnqueueSync(ctx, "rest-1", "owner@example.com")
	require.NoError(t, err)
	require.NotNil(t, job)

	assert.Equal(t, syncjob.StatusPending, job.Status)
	assert.Equal(t, 3, job.MaxAttempts)
	assert.Equal(t, "owner@example.com", job.NotificationEmail)
	assert.True(t, window.FullSync, "first sync covers the full lookback")

	queued, err := queue.Dequeue(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, job.JobID, queued)
}

func TestEnqueueSyncRejectsSecondActiveJob(t *testing.T) {
	repo := newFakeJobRepo()
	svc, _ := newTestSyncService(repo, activeTestCredentials("rest-1"))
	ctx := context.Background()

	first, _, err := svc.EnqueueSync(ctx, "rest-1", "")
	require.NoError(t, err)

	second, _, err := svc.EnqueueSync(ctx, "rest-1", "")

	var inProgress *syncjob.SyncAlreadyInProgressError
	require.ErrorAs(t, err, &inProgress)
	assert.Equal(t, first.JobID, inProgress.ExistingJobID, "caller gets the existing job id to poll")
	require.NotNil(t, second)
	assert.Equal(t, first.JobID, second.JobID)
}

func TestEnqueueSyncIncrementalWindow(t *testing.T) {
	creds := activeTestCredentials("rest-1")
	lastSync := time.Now().UTC().Add(-48 * time.Hour)
	creds.cred.LastSyncAt = &lastSync

	svc, _ := newTestSyncService(newFakeJobRepo(), creds)

	_, window, err := svc.EnqueueSync(context.Background(), "rest-1", "")
	require.NoError(t, err)

	assert.False(t, window.FullSync)
	assert.True(t, window.StartDate.Equal(lastSync))
}

func TestGetStatusIdleWithoutJobs(t *testing.T) {
	svc, _ := newTestSyncService(newFakeJobRepo(), activeTestCredentials("rest-1"))

	view, err := svc.GetStatus(context.Background(), "rest-1")
	require.NoError(t, err)
	assert.Equal(t, "idle", view.Status)
}

func TestGetStatusActiveJob(t *testing.T) {
	repo := newFakeJobRepo()
	svc, _ := newTestSyncService(repo, activeTestCredentials("rest-1"))
	ctx := context.Background()

	job, _, err := svc.EnqueueSync(ctx, "rest-1", "")
	require.NoError(t, err)

	view, err := svc.GetStatus(ctx, "rest-1")
	require.NoError(t, err)
	assert.Equal(t, "pending", view.Status)
	assert.Equal(t, job.JobID, view.JobID)
	assert.Equal(t, "Sync queued", view.Message)
}

func TestGetStatusSurfacesMostRecentTerminalJob(t *testing.T) {
	repo := newFakeJobRepo()
	svc, _ := newTestSyncService(repo, activeTestCredentials("rest-1"))
	ctx := context.Background()

	job, _, err := svc.EnqueueSync(ctx, "rest-1", "")
	require.NoError(t, err)

	_, err = repo.Claim(ctx, job.JobID)
	require.NoError(t, err)
	require.NoError(t, repo.Complete(ctx, job.JobID, syncjob.Result{OrdersImported: 42}))

	view, err := svc.GetStatus(ctx, "rest-1")
	require.NoError(t, err)
	assert.Equal(t, "completed", view.Status)
	assert.Equal(t, float64(100), view.PercentComplete)
	assert.Equal(t, 42, view.TransactionsImported)
}

func TestBuildProgressView(t *testing.T) {
	t.Run("processing percent from pages", func(t *testing.T) {
		job := &syncjob.SyncJob{
			JobID:    "j1",
			Status:   syncjob.StatusProcessing,
			Progress: syncjob.Progress{CurrentPage: 3, TotalPages: 12, OrdersProcessed: 300},
		}
		view := BuildProgressView(job)
		assert.Equal(t, "processing", view.Status)
		assert.Equal(t, 3, view.CurrentChunk)
		assert.Equal(t, 12, view.TotalChunks)
		assert.InDelta(t, 25.0, view.PercentComplete, 0.01)
		assert.Equal(t, "Importing page 3", view.Message)
	})

	t.Run("unknown total pages yields zero percent", func(t *testing.T) {
		job := &syncjob.SyncJob{
			Status:   syncjob.StatusProcessing,
			Progress: syncjob.Progress{CurrentPage: 4},
		}
		view := BuildProgressView(job)
		assert.Equal(t, float64(0), view.PercentComplete)
	})

	t.Run("completed pins percent to 100", func(t *testing.T) {
		job := &syncjob.SyncJob{
			Status:   syncjob.StatusCompleted,
			Progress: syncjob.Progress{CurrentPage: 5, TotalPages: 5},
			Result:   &syncjob.Result{OrdersImported: 512},
		}
		view := BuildProgressView(job)
		assert.Equal(t, float64(100), view.PercentComplete)
		assert.Equal(t, 512, view.TransactionsImported)
		assert.Equal(t, "Imported 512 orders", view.Message)
	})

	t.Run("failed carries the recorded error", func(t *testing.T) {
		job := &syncjob.SyncJob{
			Status: syncjob.StatusFailed,
			Error:  &syncjob.JobError{Message: "provider down", Code: CodeTransientNetwork},
		}
		view := BuildProgressView(job)
		assert.Equal(t, "failed", view.Status)
		assert.Equal(t, "provider down", view.Error)
	})
}

func TestEstimateTimeRemaining(t *testing.T) {
	total := 1000
	started := time.Now().Add(-10 * time.Second)

	t.Run("derived from throughput", func(t *testing.T) {
		job := &syncjob.SyncJob{
			StartedAt: &started,
			Progress:  syncjob.Progress{OrdersProcessed: 500, EstimatedTotal: &total},
		}
		remaining := estimateTimeRemaining(job)
		require.NotNil(t, remaining)
		// 500 in ~10s -> ~50/s -> ~500 remaining -> ~10s
		assert.InDelta(t, 10, *remaining, 2)
	})

	t.Run("nil without estimated total", func(t *testing.T) {
		job := &syncjob.SyncJob{
			StartedAt: &started,
			Progress:  syncjob.Progress{OrdersProcessed: 500},
		}
		assert.Nil(t, estimateTimeRemaining(job))
	})

	t.Run("nil before any throughput", func(t *testing.T) {
		job := &syncjob.SyncJob{
			StartedAt: &started,
			Progress:  syncjob.Progress{EstimatedTotal: &total},
		}
		assert.Nil(t, estimateTimeRemaining(job))
	})

	t.Run("zero once past the estimate", func(t *testing.T) {
		job := &syncjob.SyncJob{
			StartedAt: &started,
			Progress:  syncjob.Progress{OrdersProcessed: 1200, EstimatedTotal: &total},
		}
		remaining := estimateTimeRemaining(job)
		require.NotNil(t, remaining)
		assert.Equal(t, 0, *remaining)
	})
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"missing fields", &credential.MissingCredentialFieldsError{Missing: []string{"clientId"}}, CodeConfiguration},
		{"malformed ciphertext", credential.ErrMalformedCiphertext, CodeConfiguration},
		{"no credentials", ErrNoCredentials, CodeConfiguration},
		{"upstream auth", &pos.UpstreamAuthError{StatusCode: 401}, CodeUpstreamAuth},
		{"timeout", context.DeadlineExceeded, CodeTimeout},
		{"transient", &pos.TransientNetworkError{Err: assert.AnError}, CodeTransientNetwork},
		{"storage", wrapStorage(assert.AnError), CodeStorage},
		{"unknown defaults to transient", assert.AnError, CodeTransientNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyError(tt.err))
		})
	}
}
