package transaction

import (
	"context"
	"time"

	"go-pos-sync/internal/features/pos"

	"go.uber.org/zap"
)

// Importer transforms provider records into canonical transactions,
// suppresses duplicates, and persists the remainder.
type Importer interface {
	ImportBatch(ctx context.Context, restaurantID string, records []pos.ProviderTransaction) (BatchResult, error)
}

type ImporterImpl struct {
	Repo   TransactionRepository
	Logger *zap.Logger
}

func NewImporter(repo TransactionRepository, logger *zap.Logger) Importer {
	return &ImporterImpl{
		Repo:   repo,
		Logger: logger,
	}
}

// ImportBatch is idempotent: records whose external id already exists for the
// tenant are counted as duplicates and skipped, so re-running an overlapping
// window is safe. Malformed records are counted failed and do not abort the
// batch.
func (s *ImporterImpl) ImportBatch(ctx context.Context, restaurantID string, records []pos.ProviderTransaction) (BatchResult, error) {
	var result BatchResult
	if len(records) == 0 {
		return result, nil
	}

	externalIDs := make([]string, 0, len(records))
	for _, rec := range records {
		if rec.TransactionID != "" {
			externalIDs = append(externalIDs, rec.TransactionID)
		}
	}

	existing, err := s.Repo.ExistingExternalIDs(ctx, restaurantID, externalIDs)
	if err != nil {
		return result, err
	}

	seen := make(map[string]bool, len(records))
	toInsert := make([]Transaction, 0, len(records))
	now := time.Now().UTC()

	for _, rec := range records {
		txn, ok := s.normalize(restaurantID, rec, now)
		if !ok {
			result.Failed++
			continue
		}
		if existing[txn.ExternalID] || seen[txn.ExternalID] {
			result.SkippedDuplicates++
			continue
		}
		seen[txn.ExternalID] = true
		toInsert = append(toInsert, txn)
	}

	inserted, err := s.Repo.InsertMany(ctx, toInsert)
	result.Imported = inserted
	// Concurrent-writer losers already counted by InsertMany
	result.SkippedDuplicates += len(toInsert) - inserted
	if err != nil {
		return result, err
	}

	return result, nil
}

// normalize maps a provider record to the canonical shape. Everything
// time-derived is computed from the UTC timestamp exactly once, here.
func (s *ImporterImpl) normalize(restaurantID string, rec pos.ProviderTransaction, importedAt time.Time) (Transaction, bool) {
	if rec.TransactionID == "" || rec.TotalAmount == nil || rec.ClosedAt == "" {
		return Transaction{}, false
	}

	closedAt, err := time.Parse(time.RFC3339, rec.ClosedAt)
	if err != nil {
		s.Logger.Warn("skipping transaction with unparsable timestamp",
			zap.String("restaurant_id", restaurantID),
			zap.String("external_id", rec.TransactionID),
			zap.String("closed_at", rec.ClosedAt))
		return Transaction{}, false
	}

	closedAtUTC := closedAt.UTC()

	return Transaction{
		RestaurantID: restaurantID,
		ExternalID:   rec.TransactionID,
		TotalAmount:  *rec.TotalAmount,
		TipAmount:    rec.TipAmount,
		Currency:     rec.Currency,
		ItemCount:    rec.ItemCount,
		PaymentType:  rec.PaymentType,
		ClosedAt:     closedAtUTC,
		HourOfDay:    closedAtUTC.Hour(),
		DayOfWeek:    closedAtUTC.Weekday().String(),
		ImportedAt:   importedAt,
	}, true
}
