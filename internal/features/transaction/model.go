package transaction

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Transaction is the canonical imported entity, uniquely identified by the
// provider-issued external id scoped to its restaurant.
type Transaction struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	RestaurantID string             `json:"restaurant_id" bson:"restaurant_id"`
	ExternalID   string             `json:"external_id" bson:"external_id"`
	TotalAmount  float64            `json:"total_amount" bson:"total_amount"`
	TipAmount    float64            `json:"tip_amount" bson:"tip_amount"`
	Currency     string             `json:"currency" bson:"currency"`
	ItemCount    int                `json:"item_count" bson:"item_count"`
	PaymentType  string             `json:"payment_type" bson:"payment_type"`

	// ClosedAt is normalized to UTC once, at import time. HourOfDay and
	// DayOfWeek are derived from the UTC value here and never recomputed
	// downstream.
	ClosedAt  time.Time `json:"closed_at" bson:"closed_at"`
	HourOfDay int       `json:"hour_of_day" bson:"hour_of_day"`
	DayOfWeek string    `json:"day_of_week" bson:"day_of_week"`

	ImportedAt time.Time `json:"imported_at" bson:"imported_at"`
}

// BatchResult tallies one ImportBatch call.
type BatchResult struct {
	Imported          int `json:"imported"`
	SkippedDuplicates int `json:"skipped_duplicates"`
	Failed            int `json:"failed"`
}
