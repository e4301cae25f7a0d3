package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"neuraslide/internal/automations"
	"neuraslide/internal/types"
	"neuraslide/internal/webhook"
)

// Ledger processing actions for Instagram events.
const (
	ActionMessageReceived  = "message_received"
	ActionMessageDelivered = "message_delivered"
	ActionMessageRead      = "message_read"
	ActionCommentReply     = "comment_reply"
	ActionEventRecorded    = "recorded"
)

// MessageStore is the message persistence surface the processor needs.
type MessageStore interface {
	Insert(ctx context.Context, msg *types.Message) (inserted bool, err error)
	MarkDelivered(ctx context.Context, conversationID string, mids []string, watermark time.Time) error
	MarkRead(ctx context.Context, conversationID string, watermark time.Time) error
}

// ResultRecorder appends processing outcomes to the processed-event ledger.
type ResultRecorder interface {
	Record(ctx context.Context, provider types.Provider, eventID string, eventType types.EventKind, result types.ProcessingResult) string
}

// UsageCounter increments per-feature usage for the user's current period.
type UsageCounter interface {
	Increment(ctx context.Context, userID, feature, period string) error
}

// Usage features counted per delivered automation response.
const (
	usageFeatureResponses   = "responses"
	usageFeatureAIResponses = "ai_responses"
)

// Processor handles normalized Instagram events end to end: deduplication,
// conversation and message state, trigger matching, and response execution.
//
// Failure isolation is per sub-event: one bad entry produces one failed
// result and its siblings keep processing.
type Processor struct {
	dedup     webhook.Deduper
	resolver  *ConversationResolver
	messages  MessageStore
	matcher   *automations.Matcher
	responder *automations.Responder
	usage     UsageCounter
	ledger    ResultRecorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewProcessor wires the processor to its collaborators.
func NewProcessor(
	dedup webhook.Deduper,
	resolver *ConversationResolver,
	messages MessageStore,
	matcher *automations.Matcher,
	responder *automations.Responder,
	usage UsageCounter,
	ledger ResultRecorder,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		dedup:     dedup,
		resolver:  resolver,
		messages:  messages,
		matcher:   matcher,
		responder: responder,
		usage:     usage,
		ledger:    ledger,
		logger:    logger,
		now:       time.Now,
	}
}

// ProcessAll handles the events of one delivery sequentially in array order
// and records each outcome in the ledger. It never returns an error: every
// failure is captured in its event's result.
func (p *Processor) ProcessAll(ctx context.Context, events []types.NormalizedEvent) []types.ProcessingResult {
	results := make([]types.ProcessingResult, 0, len(events))
	for i := range events {
		ev := &events[i]
		result := p.processOne(ctx, ev)
		p.ledger.Record(ctx, types.ProviderInstagram, ev.EventID, ev.Kind, result)
		results = append(results, result)
	}
	return results
}

func (p *Processor) processOne(ctx context.Context, ev *types.NormalizedEvent) types.ProcessingResult {
	seen, err := p.dedup.MarkSeen(ctx, types.ProviderInstagram, ev.EventID)
	if err != nil {
		// A degraded dedup guard must not drop events; downstream unique
		// constraints still hold the line against double writes.
		p.logger.Warn("dedup guard unavailable; continuing",
			slog.String("event_id", ev.EventID),
			slog.String("error", err.Error()),
		)
	} else if seen {
		return types.DuplicateResult(ev.EventID)
	}

	switch ev.Kind {
	case types.EventMessageReceived:
		return p.handleMessageReceived(ctx, ev)
	case types.EventMessageDelivered:
		return p.handleReceipt(ctx, ev, ActionMessageDelivered)
	case types.EventMessageRead:
		return p.handleReceipt(ctx, ev, ActionMessageRead)
	case types.EventCommentCreated:
		return p.handleComment(ctx, ev)
	case types.EventMentionCreated, types.EventStoryMention, types.EventMediaPublished:
		// Recorded for visibility; no automation pipeline runs for these yet.
		return types.ProcessingResult{Success: true, Action: ActionEventRecorded}
	case types.EventUnknown:
		return types.IgnoredResult()
	default:
		return types.IgnoredResult()
	}
}

// handleMessageReceived persists an inbound direct message and runs the
// automation pipeline for it.
func (p *Processor) handleMessageReceived(ctx context.Context, ev *types.NormalizedEvent) types.ProcessingResult {
	msg := ev.Messaging
	if msg.IsEcho {
		// Echoes are our own outbound messages reflected back; running
		// automations on them would loop.
		return types.IgnoredResult()
	}

	res, err := p.resolver.ResolveInbound(ctx, msg, ev.Timestamp)
	if err != nil {
		return types.FailedResult(ActionMessageReceived, err)
	}

	inserted, err := p.messages.Insert(ctx, &types.Message{
		ConversationID: res.ConversationID,
		ExternalID:     msg.MessageID,
		Direction:      types.DirectionInbound,
		Text:           msg.Text,
		Status:         types.MessageStatusReceived,
		Timestamp:      ev.Timestamp,
	})
	if err != nil {
		return types.FailedResult(ActionMessageReceived, err)
	}
	if !inserted {
		return types.DuplicateResult(ev.EventID)
	}

	details := p.runAutomations(ctx, res.Account, msg.Text, nil, automations.Target{
		Kind:           automations.TargetMessage,
		RecipientID:    msg.SenderID,
		ConversationID: res.ConversationID,
		AccessToken:    res.Account.AccessToken,
	})
	return types.ProcessingResult{Success: true, Action: ActionMessageReceived, Details: details}
}

// handleReceipt applies a delivery or read receipt to the conversation's
// outbound messages.
func (p *Processor) handleReceipt(ctx context.Context, ev *types.NormalizedEvent, action string) types.ProcessingResult {
	msg := ev.Messaging
	res, err := p.resolver.ResolveExisting(ctx, msg)
	if err != nil {
		return types.FailedResult(action, err)
	}

	watermark := time.UnixMilli(msg.Watermark).UTC()
	if action == ActionMessageRead {
		err = p.messages.MarkRead(ctx, res.ConversationID, watermark)
	} else {
		err = p.messages.MarkDelivered(ctx, res.ConversationID, msg.MessageIDs, watermark)
	}
	if err != nil {
		return types.FailedResult(action, err)
	}
	return types.ProcessingResult{Success: true, Action: action}
}

// handleComment runs the automation pipeline for a new comment and posts
// replies through the Graph API.
func (p *Processor) handleComment(ctx context.Context, ev *types.NormalizedEvent) types.ProcessingResult {
	change := ev.Change

	acct, err := p.resolver.accounts.GetByExternalID(ctx, change.AccountExternalID)
	if err != nil {
		return types.FailedResult(ActionCommentReply, err)
	}

	if change.FromUserID == acct.ExternalID {
		// The account commenting on its own media; replying would loop.
		return types.IgnoredResult()
	}

	var vars map[string]string
	if change.FromUsername != "" {
		vars = map[string]string{"username": change.FromUsername}
	}
	details := p.runAutomations(ctx, acct, change.Text, vars, automations.Target{
		Kind:        automations.TargetComment,
		CommentID:   change.CommentID,
		AccessToken: acct.AccessToken,
	})
	return types.ProcessingResult{Success: true, Action: ActionCommentReply, Details: details}
}

// runAutomations matches and executes every applicable automation. A single
// automation's failure is isolated: siblings still run, and the event itself
// stays successful with the failure visible in the details.
func (p *Processor) runAutomations(ctx context.Context, acct *types.InstagramAccount, text string, vars map[string]string, target automations.Target) map[string]any {
	details := map[string]any{
		"automationTriggered": false,
		"responseGenerated":   false,
	}

	matched, err := p.matcher.Match(ctx, acct.UserID, automations.MatchContext{
		Text:           text,
		ConversationID: target.ConversationID,
		Now:            p.now().UTC(),
	})
	if err != nil {
		p.logger.Error("automation matching failed",
			slog.String("user_id", acct.UserID),
			slog.String("error", err.Error()),
		)
		details["matchError"] = err.Error()
		return details
	}
	if len(matched) == 0 {
		return details
	}

	details["automationTriggered"] = true
	details["automationsMatched"] = len(matched)

	anyGenerated := false
	var executions []map[string]any
	for i := range matched {
		outcome := p.responder.Execute(ctx, &matched[i], text, vars, target)
		exec := map[string]any{
			"automationId":      outcome.AutomationID,
			"responseGenerated": outcome.ResponseGenerated,
		}
		if outcome.Queued {
			exec["queued"] = true
		}
		if outcome.Err != nil {
			exec["error"] = outcome.Err.Error()
		}
		executions = append(executions, exec)

		if outcome.ResponseGenerated {
			anyGenerated = true
			p.persistOutboundReply(ctx, target, outcome.ResponseText)
			p.countResponseUsage(ctx, acct.UserID, matched[i].Response.Type)
		}
	}
	details["responseGenerated"] = anyGenerated
	details["executions"] = executions
	return details
}

// countResponseUsage increments the user's response usage for the current
// "YYYY-MM" period. Counter failures never affect the outcome already
// delivered.
func (p *Processor) countResponseUsage(ctx context.Context, userID string, responseType types.ResponseType) {
	feature := usageFeatureResponses
	if responseType == types.ResponseAIGenerated {
		feature = usageFeatureAIResponses
	}
	period := p.now().UTC().Format("2006-01")
	if err := p.usage.Increment(ctx, userID, feature, period); err != nil {
		p.logger.Error("failed to increment response usage",
			slog.String("user_id", userID),
			slog.String("feature", feature),
			slog.String("error", err.Error()),
		)
	}
}

// persistOutboundReply stores a sent direct-message reply so receipts can
// later transition its status. Comment replies live on the media, not in a
// conversation, and are not stored as messages.
func (p *Processor) persistOutboundReply(ctx context.Context, target automations.Target, text string) {
	if target.Kind != automations.TargetMessage || target.ConversationID == "" {
		return
	}
	_, err := p.messages.Insert(ctx, &types.Message{
		ConversationID: target.ConversationID,
		ExternalID:     "out_" + uuid.NewString(),
		Direction:      types.DirectionOutbound,
		Text:           text,
		Status:         types.MessageStatusSent,
		Timestamp:      p.now().UTC(),
	})
	if err != nil {
		p.logger.Error("failed to persist outbound reply",
			slog.String("conversation_id", target.ConversationID),
			slog.String("error", err.Error()),
		)
	}
}
