package db

import (
	"context"
	"log/slog"

	"neuraslide/internal/types"
)

// AutomationRepo provides data access for tenant automations and their
// denormalized performance aggregates.
type AutomationRepo struct {
	db     DBTX
	logger *slog.Logger
}

// NewAutomationRepo creates a repo backed by the given connection.
func NewAutomationRepo(db DBTX, logger *slog.Logger) *AutomationRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &AutomationRepo{db: db, logger: logger}
}

// ListActive returns the automations eligible for matching: status ACTIVE
// and is_active true. Both gates are enforced in SQL so callers never see
// ineligible rows.
func (r *AutomationRepo) ListActive(ctx context.Context, userID string) ([]types.Automation, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, name, status, is_active, trigger_config, response_config,
		        total_triggers, successful_responses, failed_responses,
		        avg_response_time_ms, success_rate, created_at, updated_at
		 FROM automations
		 WHERE user_id = $1
		   AND status = $2
		   AND is_active = TRUE
		 ORDER BY created_at ASC`,
		userID, types.AutomationActive,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query automations", err)
	}
	defer rows.Close()

	var automations []types.Automation
	for rows.Next() {
		var a types.Automation
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.Name, &a.Status, &a.IsActive,
			&a.Trigger, &a.Response,
			&a.Performance.TotalTriggers, &a.Performance.SuccessfulResponses,
			&a.Performance.FailedResponses, &a.Performance.AvgResponseTimeMS,
			&a.Performance.SuccessRate, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan automation row", err)
		}
		automations = append(automations, a)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating automation rows", err)
	}

	return automations, nil
}

// RecordExecution folds one execution attempt into the performance aggregate
// with a single UPDATE so concurrent executions cannot lose increments.
// Column references on the right-hand side read the pre-update values, which
// is exactly what the running-average formula needs:
//
//	newAvg = (oldAvg * oldTotal + sample) / (oldTotal + 1)
//	successRate = newSuccessful / newTotal * 100
func (r *AutomationRepo) RecordExecution(ctx context.Context, automationID string, success bool, responseTimeMS float64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE automations SET
		   total_triggers       = total_triggers + 1,
		   successful_responses = successful_responses + CASE WHEN $2 THEN 1 ELSE 0 END,
		   failed_responses     = failed_responses + CASE WHEN $2 THEN 0 ELSE 1 END,
		   avg_response_time_ms = (avg_response_time_ms * total_triggers + $3) / (total_triggers + 1),
		   success_rate         = (successful_responses + CASE WHEN $2 THEN 1 ELSE 0 END)::float
		                          / (total_triggers + 1) * 100,
		   updated_at           = NOW()
		 WHERE id = $1`,
		automationID, success, responseTimeMS,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record automation execution", err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Warn("execution recorded for missing automation",
			slog.String("automation_id", automationID),
		)
	}
	return nil
}
