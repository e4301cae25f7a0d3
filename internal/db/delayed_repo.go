package db

import (
	"context"
	"time"

	"github.com/google/uuid"

	"neuraslide/internal/types"
)

// DelayedResponseRepo queues delay-type automation responses. Rows are
// accepted-but-not-fulfilled: no scheduler drains this table yet, and
// callers must report the outcome as queued, never as sent.
type DelayedResponseRepo struct {
	db DBTX
}

// NewDelayedResponseRepo creates a repo backed by the given connection.
func NewDelayedResponseRepo(db DBTX) *DelayedResponseRepo {
	return &DelayedResponseRepo{db: db}
}

// Queue records that a delayed send was requested for the conversation,
// scheduled delayMinutes from now. Returns the queued row id.
func (r *DelayedResponseRepo) Queue(ctx context.Context, automationID, conversationID, commentID string, delayMinutes int) (string, error) {
	id := uuid.NewString()
	scheduledFor := time.Now().UTC().Add(time.Duration(delayMinutes) * time.Minute)
	_, err := r.db.Exec(ctx,
		`INSERT INTO delayed_responses
		   (id, automation_id, conversation_id, comment_id, status, scheduled_for, created_at)
		 VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), 'queued', $5, NOW())`,
		id, automationID, conversationID, commentID, scheduledFor,
	)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalDB, "failed to queue delayed response", err)
	}
	return id, nil
}
