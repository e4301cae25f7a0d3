package db

import (
	"context"

	"github.com/google/uuid"

	"neuraslide/internal/types"
)

// UsageRecordRepo manages per-feature usage counters keyed by
// (user_id, feature, period) where period is "YYYY-MM".
//
// Upsert semantics: the first write for a key creates the row with a
// plan-derived limit; subsequent writes increment usage without altering the
// limit, unless the limit is explicitly resynced at subscription-created or
// checkout-completed time.
type UsageRecordRepo struct {
	db DBTX
}

// NewUsageRecordRepo creates a repo backed by the given connection.
func NewUsageRecordRepo(db DBTX) *UsageRecordRepo {
	return &UsageRecordRepo{db: db}
}

// InitForPlan seeds a usage row per feature for the period with the plan's
// limits, resetting the limit (but not the used counter) when the row
// already exists. Called at subscription creation and checkout completion.
func (r *UsageRecordRepo) InitForPlan(ctx context.Context, userID, period string, limits map[string]int64) error {
	for feature, limit := range limits {
		_, err := r.db.Exec(ctx,
			`INSERT INTO usage_records (id, user_id, feature, period, used, usage_limit)
			 VALUES ($1, $2, $3, $4, 0, $5)
			 ON CONFLICT (user_id, feature, period) DO UPDATE SET
			   usage_limit = EXCLUDED.usage_limit`,
			uuid.NewString(), userID, feature, period, limit,
		)
		if err != nil {
			return types.NewAppError(types.ErrCodeInternalDB, "failed to init usage record for "+feature, err)
		}
	}
	return nil
}

// Increment adds one use of the feature in the period. When no row exists
// yet the row is created with a zero limit; the limit is corrected by the
// next InitForPlan resync.
func (r *UsageRecordRepo) Increment(ctx context.Context, userID, feature, period string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO usage_records (id, user_id, feature, period, used, usage_limit)
		 VALUES ($1, $2, $3, $4, 1, 0)
		 ON CONFLICT (user_id, feature, period) DO UPDATE SET
		   used = usage_records.used + 1`,
		uuid.NewString(), userID, feature, period,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to increment usage record", err)
	}
	return nil
}
