package db

import (
	"context"
	"time"

	"github.com/google/uuid"

	"neuraslide/internal/types"
)

// MessageRepo manages message rows. Messages are immutable once created
// except for status: delivery and read receipts map to status transitions,
// not new rows.
type MessageRepo struct {
	db DBTX
}

// NewMessageRepo creates a repo backed by the given connection.
func NewMessageRepo(db DBTX) *MessageRepo {
	return &MessageRepo{db: db}
}

// Insert stores a message. The unique constraint on external_id makes the
// insert idempotent against duplicate deliveries of the same mid; a
// duplicate reports inserted=false and writes nothing.
func (r *MessageRepo) Insert(ctx context.Context, msg *types.Message) (inserted bool, err error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	tag, err := r.db.Exec(ctx,
		`INSERT INTO messages
		   (id, conversation_id, external_id, direction, text, status, timestamp, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		 ON CONFLICT (external_id) DO NOTHING`,
		msg.ID, msg.ConversationID, msg.ExternalID, msg.Direction,
		msg.Text, msg.Status, msg.Timestamp,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to insert message", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkDelivered applies a delivery receipt. When the receipt carries
// explicit mids those rows transition to delivered; otherwise every outbound
// message at or before the watermark does. Already-read messages are not
// demoted.
func (r *MessageRepo) MarkDelivered(ctx context.Context, conversationID string, mids []string, watermark time.Time) error {
	var err error
	if len(mids) > 0 {
		_, err = r.db.Exec(ctx,
			`UPDATE messages SET status = $1
			 WHERE conversation_id = $2
			   AND external_id = ANY($3)
			   AND status NOT IN ($1, $4)`,
			types.MessageStatusDelivered, conversationID, mids, types.MessageStatusRead,
		)
	} else {
		_, err = r.db.Exec(ctx,
			`UPDATE messages SET status = $1
			 WHERE conversation_id = $2
			   AND direction = $3
			   AND timestamp <= $4
			   AND status NOT IN ($1, $5)`,
			types.MessageStatusDelivered, conversationID, types.DirectionOutbound,
			watermark, types.MessageStatusRead,
		)
	}
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark messages delivered", err)
	}
	return nil
}

// MarkRead applies a read receipt: every outbound message at or before the
// watermark transitions to read.
func (r *MessageRepo) MarkRead(ctx context.Context, conversationID string, watermark time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE messages SET status = $1
		 WHERE conversation_id = $2
		   AND direction = $3
		   AND timestamp <= $4
		   AND status != $1`,
		types.MessageStatusRead, conversationID, types.DirectionOutbound, watermark,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark messages read", err)
	}
	return nil
}
