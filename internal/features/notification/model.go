package notification

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SyncNotification is the downstream payload delivered after a job reaches a
// terminal state, persisted so analytics and notification consumers can
// replay it.
type SyncNotification struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	RestaurantID   string             `json:"restaurant_id" bson:"restaurant_id"`
	JobID          string             `json:"job_id" bson:"job_id"`
	OrdersImported int                `json:"orders_imported" bson:"orders_imported"`
	OrdersFailed   int                `json:"orders_failed" bson:"orders_failed"`
	DurationMs     int64              `json:"duration_ms" bson:"duration_ms"`
	Success        bool               `json:"success" bson:"success"`
	ErrorMessage   string             `json:"error_message,omitempty" bson:"error_message,omitempty"`
	Email          string             `json:"-" bson:"email,omitempty"`
	EmailSent      bool               `json:"email_sent" bson:"email_sent"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
}
