package sync

import (
	"context"
	"errors"
	"time"

	"go-pos-sync/internal/config"
	"go-pos-sync/internal/features/credential"
	"go-pos-sync/internal/features/syncjob"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler enqueues incremental syncs for every connected tenant on a cron
// schedule. Tenants with a sync already in flight are skipped silently.
type Scheduler struct {
	SyncService SyncService
	Credentials credential.CredentialService
	Config      *config.Config
	Logger      *zap.Logger

	cron *cron.Cron
}

func NewScheduler(syncService SyncService, credentials credential.CredentialService, cfg *config.Config, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		SyncService: syncService,
		Credentials: credentials,
		Config:      cfg,
		Logger:      logger,
	}
}

// Start registers the schedule and launches the cron runner. A blank
// schedule disables scheduled syncs.
func (s *Scheduler) Start() error {
	if s.Config.SyncSchedule == "" {
		s.Logger.Info("scheduled sync disabled (no SYNC_SCHEDULE configured)")
		return nil
	}

	if _, err := cron.ParseStandard(s.Config.SyncSchedule); err != nil {
		return err
	}

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.Config.SyncSchedule, s.runScheduledSyncs); err != nil {
		return err
	}
	s.cron.Start()

	s.Logger.Info("scheduled sync enabled", zap.String("schedule", s.Config.SyncSchedule))
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

func (s *Scheduler) runScheduledSyncs() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	creds, err := s.Credentials.ListActive(ctx)
	if err != nil {
		s.Logger.Error("scheduled sync: failed to list connected tenants", zap.Error(err))
		return
	}

	for _, cred := range creds {
		_, _, err := s.SyncService.EnqueueSync(ctx, cred.RestaurantID, "")
		if err != nil {
			var inProgress *syncjob.SyncAlreadyInProgressError
			if errors.As(err, &inProgress) {
				continue
			}
			s.Logger.Error("scheduled sync: enqueue failed",
				zap.String("restaurant_id", cred.RestaurantID), zap.Error(err))
		}
	}
}
