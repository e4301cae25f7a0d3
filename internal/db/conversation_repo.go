package db

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"neuraslide/internal/types"
)

// ConversationRepo manages conversation rows.
//
// Key invariant: (user_id, instagram_account_id, external_conversation_id)
// is unique. Creation goes through a single INSERT ... ON CONFLICT upsert so
// that concurrent duplicate webhook deliveries cannot produce duplicate
// conversation rows.
type ConversationRepo struct {
	db     DBTX
	logger *slog.Logger
}

// NewConversationRepo creates a repo backed by the given connection.
func NewConversationRepo(db DBTX, logger *slog.Logger) *ConversationRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConversationRepo{db: db, logger: logger}
}

// UpsertOnInboundMessage finds or creates the conversation for the external
// key and folds the new message into its denormalized fields in the same
// statement: message_count increments, last_message_at/text overwrite.
// Returns the conversation id.
func (r *ConversationRepo) UpsertOnInboundMessage(
	ctx context.Context,
	userID, accountID, externalKey, participantID string,
	text string,
	at time.Time,
) (string, error) {
	var id string
	err := r.db.QueryRow(ctx,
		`INSERT INTO conversations
		   (id, user_id, instagram_account_id, external_conversation_id,
		    participant_id, status, message_count, last_message_text, last_message_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $8, NOW())
		 ON CONFLICT (user_id, instagram_account_id, external_conversation_id)
		 DO UPDATE SET
		   message_count     = conversations.message_count + 1,
		   last_message_text = EXCLUDED.last_message_text,
		   last_message_at   = GREATEST(conversations.last_message_at, EXCLUDED.last_message_at)
		 RETURNING id`,
		uuid.NewString(), userID, accountID, externalKey,
		participantID, types.ConversationActive, text, at,
	).Scan(&id)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalDB, "failed to upsert conversation", err)
	}
	return id, nil
}

// FindByExternalKey returns the conversation id for the external key, or an
// ErrCodeNotFoundConversation AppError when none exists.
func (r *ConversationRepo) FindByExternalKey(ctx context.Context, userID, accountID, externalKey string) (string, error) {
	var id string
	err := r.db.QueryRow(ctx,
		`SELECT id FROM conversations
		 WHERE user_id = $1
		   AND instagram_account_id = $2
		   AND external_conversation_id = $3`,
		userID, accountID, externalKey,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", types.NewAppError(types.ErrCodeNotFoundConversation, "conversation not found for key "+externalKey, nil)
	}
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalDB, "failed to look up conversation", err)
	}
	return id, nil
}

// CountMessagesSince returns the number of inbound messages recorded for the
// conversation with a timestamp at or after the cutoff. Used by the
// message_count trigger predicate.
func (r *ConversationRepo) CountMessagesSince(ctx context.Context, conversationID string, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages
		 WHERE conversation_id = $1
		   AND direction = $2
		   AND timestamp >= $3`,
		conversationID, types.DirectionInbound, since,
	).Scan(&n)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count conversation messages", err)
	}
	return n, nil
}
