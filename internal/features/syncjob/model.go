package syncjob

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Progress is updated after every imported page so polling clients see
// monotonic page counts.
type Progress struct {
	CurrentPage     int  `json:"current_page" bson:"current_page"`
	TotalPages      int  `json:"total_pages" bson:"total_pages"`
	OrdersProcessed int  `json:"orders_processed" bson:"orders_processed"`
	EstimatedTotal  *int `json:"estimated_total,omitempty" bson:"estimated_total,omitempty"`
}

// Result is written once, when a job completes.
type Result struct {
	OrdersImported int       `json:"orders_imported" bson:"orders_imported"`
	OrdersFailed   int       `json:"orders_failed" bson:"orders_failed"`
	TotalPages     int       `json:"total_pages" bson:"total_pages"`
	DurationMs     int64     `json:"duration_ms" bson:"duration_ms"`
	StartDate      time.Time `json:"start_date" bson:"start_date"`
	EndDate        time.Time `json:"end_date" bson:"end_date"`
	FullSync       bool      `json:"full_sync" bson:"full_sync"`
}

type JobError struct {
	Message   string    `json:"message" bson:"message"`
	Code      string    `json:"code" bson:"code"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// SyncJob is the durable record of one sync attempt. Once terminal it is
// immutable except for NotificationSent.
type SyncJob struct {
	ID                primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	JobID             string             `json:"job_id" bson:"job_id"` // externally visible
	RestaurantID      string             `json:"restaurant_id" bson:"restaurant_id"`
	Status            JobStatus          `json:"status" bson:"status"`
	Progress          Progress           `json:"progress" bson:"progress"`
	Result            *Result            `json:"result,omitempty" bson:"result,omitempty"`
	Error             *JobError          `json:"error,omitempty" bson:"error,omitempty"`
	Attempts          int                `json:"attempts" bson:"attempts"`
	MaxAttempts       int                `json:"max_attempts" bson:"max_attempts"`
	StartedAt         *time.Time         `json:"started_at,omitempty" bson:"started_at,omitempty"`
	CompletedAt       *time.Time         `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	HeartbeatAt       *time.Time         `json:"-" bson:"heartbeat_at,omitempty"`
	NotificationEmail string             `json:"notification_email,omitempty" bson:"notification_email,omitempty"`
	NotificationSent  bool               `json:"notification_sent" bson:"notification_sent"`
	CreatedAt         time.Time          `json:"created_at" bson:"created_at"`
}

// IsActive reports whether the job still blocks a new sync for its tenant.
func (j *SyncJob) IsActive() bool {
	return j.Status == StatusPending || j.Status == StatusProcessing
}
