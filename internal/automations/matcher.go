// Package automations evaluates trigger predicates against inbound events
// and executes the configured responses for every matching automation.
package automations

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"neuraslide/internal/types"
)

// MatchContext carries the per-event inputs the trigger predicates read.
type MatchContext struct {
	// Text is the inbound message or comment text.
	Text string
	// ConversationID is set for messaging events; empty for comments.
	ConversationID string
	// UserType is supplied by upstream enrichment; defaults to "unknown".
	UserType string
	// Now is the evaluation instant for time triggers.
	Now time.Time
}

// AutomationStore lists the automations eligible for matching.
type AutomationStore interface {
	ListActive(ctx context.Context, userID string) ([]types.Automation, error)
}

// MessageCounter counts inbound messages for the message_count predicate.
type MessageCounter interface {
	CountMessagesSince(ctx context.Context, conversationID string, since time.Time) (int, error)
}

// Matcher selects the automations whose trigger predicate is satisfied by an
// event. All matches are returned; the execution policy is run-all-matches,
// not first-match-wins.
type Matcher struct {
	automations AutomationStore
	counter     MessageCounter
	logger      *slog.Logger
}

// NewMatcher wires the matcher to its stores.
func NewMatcher(automations AutomationStore, counter MessageCounter, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{automations: automations, counter: counter, logger: logger}
}

// Match returns every active automation of the user whose trigger fires for
// the event. No match is not an error; it yields an empty slice. A predicate
// that fails to evaluate (e.g. a broken timezone name) skips that automation
// and continues with its siblings.
func (m *Matcher) Match(ctx context.Context, userID string, mc MatchContext) ([]types.Automation, error) {
	candidates, err := m.automations.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	if mc.UserType == "" {
		mc.UserType = "unknown"
	}
	if mc.Now.IsZero() {
		mc.Now = time.Now().UTC()
	}

	var matched []types.Automation
	for _, a := range candidates {
		ok, err := m.evaluate(ctx, &a.Trigger, mc)
		if err != nil {
			m.logger.Warn("trigger evaluation failed; skipping automation",
				slog.String("automation_id", a.ID),
				slog.String("trigger_type", string(a.Trigger.Type)),
				slog.String("error", err.Error()),
			)
			continue
		}
		if ok {
			matched = append(matched, a)
		}
	}
	return matched, nil
}

func (m *Matcher) evaluate(ctx context.Context, trigger *types.TriggerConfig, mc MatchContext) (bool, error) {
	switch trigger.Type {
	case types.TriggerKeyword:
		return matchKeyword(trigger, mc.Text), nil
	case types.TriggerIntent:
		return matchIntent(trigger, mc.Text), nil
	case types.TriggerTime:
		return matchTime(trigger, mc.Now)
	case types.TriggerUserType:
		return matchUserType(trigger, mc.UserType), nil
	case types.TriggerMessageCount:
		return m.matchMessageCount(ctx, trigger, mc)
	default:
		return false, nil
	}
}

// matchKeyword compares the text against each configured keyword; any single
// keyword matching triggers the automation.
func matchKeyword(trigger *types.TriggerConfig, text string) bool {
	subject := text
	if !trigger.CaseSensitive {
		subject = strings.ToLower(subject)
	}

	for _, keyword := range trigger.Keywords {
		k := keyword
		if !trigger.CaseSensitive {
			k = strings.ToLower(k)
		}

		var hit bool
		switch trigger.MatchType {
		case types.MatchExact:
			hit = subject == k
		case types.MatchStartsWith:
			hit = strings.HasPrefix(subject, k)
		case types.MatchEndsWith:
			hit = strings.HasSuffix(subject, k)
		default: // contains is the default match type
			hit = strings.Contains(subject, k)
		}
		if hit {
			return true
		}
	}
	return false
}

// matchIntent is a simplified substring match of intent phrases against the
// message. Real intent classification is a known simplification left to a
// future collaborator.
func matchIntent(trigger *types.TriggerConfig, text string) bool {
	subject := strings.ToLower(text)
	for _, intent := range trigger.Intents {
		if strings.Contains(subject, strings.ToLower(intent)) {
			return true
		}
	}
	return false
}

// matchTime checks that now, in the trigger's timezone, falls within
// [start, end] inclusive and on an allowed weekday. Weekdays are 1=Monday
// through 7=Sunday; Go's Sunday=0 is remapped to 7.
func matchTime(trigger *types.TriggerConfig, now time.Time) (bool, error) {
	loc := time.UTC
	if trigger.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(trigger.Timezone)
		if err != nil {
			return false, err
		}
	}
	local := now.In(loc)

	if len(trigger.DaysOfWeek) > 0 {
		weekday := int(local.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		dayAllowed := false
		for _, d := range trigger.DaysOfWeek {
			if d == weekday {
				dayAllowed = true
				break
			}
		}
		if !dayAllowed {
			return false, nil
		}
	}

	if trigger.TimeStart == "" || trigger.TimeEnd == "" {
		return true, nil
	}
	start, err := time.Parse("15:04", trigger.TimeStart)
	if err != nil {
		return false, err
	}
	end, err := time.Parse("15:04", trigger.TimeEnd)
	if err != nil {
		return false, err
	}

	minutes := local.Hour()*60 + local.Minute()
	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()
	return minutes >= startMin && minutes <= endMin, nil
}

func matchUserType(trigger *types.TriggerConfig, userType string) bool {
	for _, t := range trigger.UserTypes {
		if t == userType {
			return true
		}
	}
	return false
}

// matchMessageCount fires when the conversation has accumulated at least
// Count inbound messages within the trailing time window.
func (m *Matcher) matchMessageCount(ctx context.Context, trigger *types.TriggerConfig, mc MatchContext) (bool, error) {
	if mc.ConversationID == "" || trigger.Count <= 0 {
		return false, nil
	}
	window := time.Duration(trigger.TimeWindowMinutes) * time.Minute
	if window <= 0 {
		window = 24 * time.Hour
	}
	n, err := m.counter.CountMessagesSince(ctx, mc.ConversationID, mc.Now.Add(-window))
	if err != nil {
		return false, err
	}
	return n >= trigger.Count, nil
}
