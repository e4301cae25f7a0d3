// Package messaging turns normalized Instagram events into conversation and
// message state, and drives the automation pipeline for inbound messages.
package messaging

import (
	"context"
	"log/slog"
	"time"

	"neuraslide/internal/types"
)

// ConversationKey builds the deterministic external-conversation identifier
// from the two participant ids, in sender-then-recipient order exactly as
// the webhook delivers them. The order is load-bearing: changing it would
// fragment every existing conversation into two. Pinned by a regression
// test.
func ConversationKey(senderID, recipientID string) string {
	return senderID + "_" + recipientID
}

// AccountStore is the account lookup the resolver needs.
type AccountStore interface {
	GetByExternalID(ctx context.Context, externalID string) (*types.InstagramAccount, error)
}

// ConversationStore is the conversation persistence surface the resolver
// needs.
type ConversationStore interface {
	UpsertOnInboundMessage(ctx context.Context, userID, accountID, externalKey, participantID, text string, at time.Time) (string, error)
	FindByExternalKey(ctx context.Context, userID, accountID, externalKey string) (string, error)
	CountMessagesSince(ctx context.Context, conversationID string, since time.Time) (int, error)
}

// Resolution is the outcome of mapping a messaging event onto internal
// entities.
type Resolution struct {
	Account        *types.InstagramAccount
	ConversationID string
	ExternalKey    string
}

// ConversationResolver maps a messaging event to its account, tenant user,
// and conversation. It creates the conversation on first inbound message.
type ConversationResolver struct {
	accounts      AccountStore
	conversations ConversationStore
	logger        *slog.Logger
}

// NewConversationResolver wires the resolver to its stores.
func NewConversationResolver(accounts AccountStore, conversations ConversationStore, logger *slog.Logger) *ConversationResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConversationResolver{
		accounts:      accounts,
		conversations: conversations,
		logger:        logger,
	}
}

// ResolveInbound resolves (and creates if needed) the conversation for an
// inbound message, folding the message into the conversation's denormalized
// counters in the same statement.
//
// Fails with a not-found AppError when no internal account matches the
// entry's external id or when the account has no associated tenant user.
func (r *ConversationResolver) ResolveInbound(ctx context.Context, ev *types.MessagingEvent, at time.Time) (*Resolution, error) {
	acct, err := r.accounts.GetByExternalID(ctx, ev.AccountExternalID)
	if err != nil {
		return nil, err
	}

	key := ConversationKey(ev.SenderID, ev.RecipientID)
	convID, err := r.conversations.UpsertOnInboundMessage(
		ctx, acct.UserID, acct.ID, key, ev.SenderID, ev.Text, at,
	)
	if err != nil {
		return nil, err
	}

	return &Resolution{Account: acct, ConversationID: convID, ExternalKey: key}, nil
}

// ResolveExisting resolves the conversation for a receipt event without
// creating one. Receipts for unknown conversations surface a not-found
// AppError.
//
// Delivery and read receipts arrive with sender and recipient in the same
// orientation as the original inbound messages (the external participant is
// the sender), so the same key construction applies.
func (r *ConversationResolver) ResolveExisting(ctx context.Context, ev *types.MessagingEvent) (*Resolution, error) {
	acct, err := r.accounts.GetByExternalID(ctx, ev.AccountExternalID)
	if err != nil {
		return nil, err
	}

	key := ConversationKey(ev.SenderID, ev.RecipientID)
	convID, err := r.conversations.FindByExternalKey(ctx, acct.UserID, acct.ID, key)
	if err != nil {
		return nil, err
	}

	return &Resolution{Account: acct, ConversationID: convID, ExternalKey: key}, nil
}
