package sync

import "time"

// Window is the date range a sync job fetches. Incremental when the tenant
// has synced before, otherwise a fixed-lookback full sync.
type Window struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	FullSync  bool      `json:"full_sync"`
}

// ProgressView is the client polling projection. It is always returnable,
// even mid-failure.
type ProgressView struct {
	Status                 string  `json:"status"`
	JobID                  string  `json:"job_id,omitempty"`
	CurrentChunk           int     `json:"current_chunk"`
	TotalChunks            int     `json:"total_chunks"`
	PercentComplete        float64 `json:"percent_complete"`
	TransactionsImported   int     `json:"transactions_imported"`
	EstimatedTimeRemaining *int    `json:"estimated_time_remaining,omitempty"` // seconds
	Message                string  `json:"message,omitempty"`
	Error                  string  `json:"error,omitempty"`
}
