package automations

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"neuraslide/internal/external"
	"neuraslide/internal/types"
)

// TargetKind distinguishes what a matched automation replies to.
type TargetKind string

const (
	TargetComment TargetKind = "comment"
	TargetMessage TargetKind = "message"
)

// Target identifies where a generated response should be delivered.
type Target struct {
	Kind           TargetKind
	CommentID      string // set when Kind == TargetComment
	RecipientID    string // set when Kind == TargetMessage
	ConversationID string
	AccessToken    types.SecretString
}

// Outcome reports one automation execution. ResponseGenerated is false when
// generation or delivery failed; Queued marks a delay-type response that was
// accepted but not sent.
type Outcome struct {
	AutomationID      string
	AutomationName    string
	ResponseText      string
	ResponseGenerated bool
	Queued            bool
	Err               error
}

// DelayQueue accepts delay-type responses for later fulfillment.
type DelayQueue interface {
	Queue(ctx context.Context, automationID, conversationID, commentID string, delayMinutes int) (string, error)
}

// PerformanceRecorder folds execution attempts into the automation's
// performance aggregate.
type PerformanceRecorder interface {
	RecordExecution(ctx context.Context, automationID string, success bool, responseTimeMS float64) error
}

// Responder executes the response side of a matched automation: generating
// text, delivering it, and recording performance.
type Responder struct {
	generator external.TextGenerator
	instagram external.InstagramAPI
	delays    DelayQueue
	recorder  PerformanceRecorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewResponder wires the responder to its collaborators.
func NewResponder(
	generator external.TextGenerator,
	instagram external.InstagramAPI,
	delays DelayQueue,
	recorder PerformanceRecorder,
	logger *slog.Logger,
) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{
		generator: generator,
		instagram: instagram,
		delays:    delays,
		recorder:  recorder,
		logger:    logger,
		now:       time.Now,
	}
}

// Execute runs one matched automation against the incoming text. Delivery
// failures are caught here and reported in the Outcome, never propagated:
// the webhook response to the provider must not depend on downstream sends.
// Every attempt, success or failure, updates the performance aggregate.
func (r *Responder) Execute(ctx context.Context, a *types.Automation, incomingText string, vars map[string]string, target Target) Outcome {
	started := r.now()
	outcome := Outcome{AutomationID: a.ID, AutomationName: a.Name}

	switch a.Response.Type {
	case types.ResponseDelay:
		r.executeDelay(ctx, a, target, &outcome)
	default:
		r.executeImmediate(ctx, a, incomingText, vars, target, &outcome)
	}

	elapsed := float64(r.now().Sub(started).Milliseconds())
	success := outcome.Err == nil && (outcome.ResponseGenerated || outcome.Queued)
	if err := r.recorder.RecordExecution(ctx, a.ID, success, elapsed); err != nil {
		// Counter failures never affect the outcome already delivered.
		r.logger.Error("failed to record automation execution",
			slog.String("automation_id", a.ID),
			slog.String("error", err.Error()),
		)
	}
	return outcome
}

func (r *Responder) executeDelay(ctx context.Context, a *types.Automation, target Target, outcome *Outcome) {
	_, err := r.delays.Queue(ctx, a.ID, target.ConversationID, target.CommentID, a.Response.DelayMinutes)
	if err != nil {
		outcome.Err = err
		return
	}
	// Queued only. No text is produced and nothing is sent now.
	outcome.Queued = true
}

func (r *Responder) executeImmediate(ctx context.Context, a *types.Automation, incomingText string, vars map[string]string, target Target, outcome *Outcome) {
	text, err := r.generateText(ctx, a, incomingText, vars)
	if err != nil {
		outcome.Err = err
		return
	}
	outcome.ResponseText = text

	if err := r.deliver(ctx, text, target); err != nil {
		r.logger.Error("failed to deliver automation response",
			slog.String("automation_id", a.ID),
			slog.String("target_kind", string(target.Kind)),
			slog.String("error", err.Error()),
		)
		outcome.Err = err
		return
	}
	outcome.ResponseGenerated = true
}

func (r *Responder) generateText(ctx context.Context, a *types.Automation, incomingText string, vars map[string]string) (string, error) {
	switch a.Response.Type {
	case types.ResponseAIGenerated:
		return r.generator.GenerateText(ctx, a.Response.Prompt, incomingText, a.Response.MaxLength)
	case types.ResponseTemplate:
		return substitute(a.Response.Template, a.Response.Variables), nil
	case types.ResponseCustom:
		return substitute(a.Response.Template, mergeVars(a.Response.Variables, vars)), nil
	default:
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			fmt.Sprintf("unrecognized response type %q", a.Response.Type),
			nil,
		)
	}
}

func (r *Responder) deliver(ctx context.Context, text string, target Target) error {
	switch target.Kind {
	case TargetComment:
		return r.instagram.ReplyToComment(ctx, target.AccessToken.Unmask(), target.CommentID, text)
	case TargetMessage:
		return r.instagram.SendMessage(ctx, target.AccessToken.Unmask(), target.RecipientID, text)
	default:
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			fmt.Sprintf("unrecognized response target %q", target.Kind),
			nil,
		)
	}
}

// mergeVars layers the event-derived context over the automation's
// configured variables. Context values win on key collisions.
func mergeVars(configured, contextVars map[string]string) map[string]string {
	if len(contextVars) == 0 {
		return configured
	}
	merged := make(map[string]string, len(configured)+len(contextVars))
	for key, value := range configured {
		merged[key] = value
	}
	for key, value := range contextVars {
		merged[key] = value
	}
	return merged
}

// substitute replaces {key} placeholders with their mapped values. Tokens
// without a mapping stay as literal text.
func substitute(template string, vars map[string]string) string {
	out := template
	for key, value := range vars {
		out = strings.ReplaceAll(out, "{"+key+"}", value)
	}
	return out
}
