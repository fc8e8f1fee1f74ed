package sync

import (
	"time"

	"go-pos-sync/internal/features/credential"
)

// ComputeWindow derives the sync window for a tenant: incremental from
// lastSyncAt when the tenant has synced before, otherwise a full sync over
// the fixed lookback.
func ComputeWindow(cred *credential.Credential, lookback time.Duration) Window {
	now := time.Now().UTC()
	if cred != nil && cred.LastSyncAt != nil && !cred.LastSyncAt.IsZero() {
		return Window{
			StartDate: cred.LastSyncAt.UTC(),
			EndDate:   now,
			FullSync:  false,
		}
	}
	return Window{
		StartDate: now.Add(-lookback),
		EndDate:   now,
		FullSync:  true,
	}
}
