package automations

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neuraslide/internal/types"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeGenerator struct {
	text string
	err  error
}

func (f *fakeGenerator) GenerateText(_ context.Context, _, _ string, _ int) (string, error) {
	return f.text, f.err
}

type fakeInstagram struct {
	commentID string
	recipient string
	text      string
	calls     int
	err       error
}

func (f *fakeInstagram) ReplyToComment(_ context.Context, _, commentID, text string) error {
	f.calls++
	f.commentID = commentID
	f.text = text
	return f.err
}

func (f *fakeInstagram) SendMessage(_ context.Context, _, recipientID, text string) error {
	f.calls++
	f.recipient = recipientID
	f.text = text
	return f.err
}

type fakeDelayQueue struct {
	automationID string
	delayMinutes int
	calls        int
	err          error
}

func (f *fakeDelayQueue) Queue(_ context.Context, automationID, _, _ string, delayMinutes int) (string, error) {
	f.calls++
	f.automationID = automationID
	f.delayMinutes = delayMinutes
	return "queued-1", f.err
}

type fakeRecorder struct {
	automationID string
	success      bool
	calls        int
}

func (f *fakeRecorder) RecordExecution(_ context.Context, automationID string, success bool, _ float64) error {
	f.calls++
	f.automationID = automationID
	f.success = success
	return nil
}

func newTestResponder(gen *fakeGenerator, ig *fakeInstagram, delays *fakeDelayQueue, rec *fakeRecorder) *Responder {
	return NewResponder(gen, ig, delays, rec, nil)
}

func templateAutomation(template string, vars map[string]string) *types.Automation {
	return &types.Automation{
		ID: "auto-1", Name: "pricing",
		Status: types.AutomationActive, IsActive: true,
		Response: types.ResponseConfig{Type: types.ResponseTemplate, Template: template, Variables: vars},
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestResponder_TemplateSubstitution(t *testing.T) {
	ig := &fakeInstagram{}
	rec := &fakeRecorder{}
	r := newTestResponder(&fakeGenerator{}, ig, &fakeDelayQueue{}, rec)

	a := templateAutomation("Price is {price}, ships in {days} days", map[string]string{
		"price": "$20", "days": "3",
	})
	outcome := r.Execute(context.Background(), a, "how much?", nil, Target{
		Kind: TargetComment, CommentID: "c1",
	})

	require.NoError(t, outcome.Err)
	assert.True(t, outcome.ResponseGenerated)
	assert.Equal(t, "Price is $20, ships in 3 days", outcome.ResponseText)
	assert.Equal(t, "c1", ig.commentID)
	assert.Equal(t, 1, rec.calls)
	assert.True(t, rec.success)
}

func TestResponder_CustomUsesConfiguredVariables(t *testing.T) {
	ig := &fakeInstagram{}
	r := newTestResponder(&fakeGenerator{}, ig, &fakeDelayQueue{}, &fakeRecorder{})

	a := &types.Automation{
		ID: "auto-1", Status: types.AutomationActive, IsActive: true,
		Response: types.ResponseConfig{
			Type:      types.ResponseCustom,
			Template:  "Price is {price}",
			Variables: map[string]string{"price": "$20"},
		},
	}
	// No request context at all: the automation's own variables apply.
	outcome := r.Execute(context.Background(), a, "how much?", nil, Target{
		Kind: TargetComment, CommentID: "c1",
	})

	require.NoError(t, outcome.Err)
	assert.Equal(t, "Price is $20", outcome.ResponseText)
	assert.Equal(t, "Price is $20", ig.text)
}

func TestResponder_CustomContextOverridesConfigured(t *testing.T) {
	ig := &fakeInstagram{}
	r := newTestResponder(&fakeGenerator{}, ig, &fakeDelayQueue{}, &fakeRecorder{})

	a := &types.Automation{
		ID: "auto-1", Status: types.AutomationActive, IsActive: true,
		Response: types.ResponseConfig{
			Type:      types.ResponseCustom,
			Template:  "Thanks {username}! Price is {price}",
			Variables: map[string]string{"username": "there", "price": "$20"},
		},
	}
	outcome := r.Execute(context.Background(), a, "how much?",
		map[string]string{"username": "jane"}, Target{Kind: TargetComment, CommentID: "c1"})

	require.NoError(t, outcome.Err)
	// Event-derived context wins on collisions, configured values fill the rest.
	assert.Equal(t, "Thanks jane! Price is $20", outcome.ResponseText)
}

func TestResponder_CustomFallsBackToLiteralToken(t *testing.T) {
	ig := &fakeInstagram{}
	r := newTestResponder(&fakeGenerator{}, ig, &fakeDelayQueue{}, &fakeRecorder{})

	a := &types.Automation{
		ID: "auto-1", Status: types.AutomationActive, IsActive: true,
		Response: types.ResponseConfig{Type: types.ResponseCustom, Template: "Hi {name}, order {orderId}"},
	}
	outcome := r.Execute(context.Background(), a, "hello", map[string]string{"name": "Niko"}, Target{
		Kind: TargetMessage, RecipientID: "user-9", ConversationID: "conv-1",
	})

	require.NoError(t, outcome.Err)
	// Missing context keys stay as literal tokens.
	assert.Equal(t, "Hi Niko, order {orderId}", outcome.ResponseText)
	assert.Equal(t, "user-9", ig.recipient)
}

func TestResponder_AIGenerated(t *testing.T) {
	ig := &fakeInstagram{}
	r := newTestResponder(&fakeGenerator{text: "Thanks for asking!"}, ig, &fakeDelayQueue{}, &fakeRecorder{})

	a := &types.Automation{
		ID: "auto-1", Status: types.AutomationActive, IsActive: true,
		Response: types.ResponseConfig{Type: types.ResponseAIGenerated, Prompt: "be nice", MaxLength: 100},
	}
	outcome := r.Execute(context.Background(), a, "question", nil, Target{Kind: TargetComment, CommentID: "c1"})

	require.NoError(t, outcome.Err)
	assert.True(t, outcome.ResponseGenerated)
	assert.Equal(t, "Thanks for asking!", ig.text)
}

func TestResponder_DelayIsQueuedOnly(t *testing.T) {
	ig := &fakeInstagram{}
	delays := &fakeDelayQueue{}
	rec := &fakeRecorder{}
	r := newTestResponder(&fakeGenerator{}, ig, delays, rec)

	a := &types.Automation{
		ID: "auto-1", Status: types.AutomationActive, IsActive: true,
		Response: types.ResponseConfig{Type: types.ResponseDelay, DelayMinutes: 30},
	}
	outcome := r.Execute(context.Background(), a, "hi", nil, Target{
		Kind: TargetMessage, RecipientID: "user-9", ConversationID: "conv-1",
	})

	require.NoError(t, outcome.Err)
	// Accepted but not fulfilled: queued, nothing sent, no text produced.
	assert.True(t, outcome.Queued)
	assert.False(t, outcome.ResponseGenerated)
	assert.Empty(t, outcome.ResponseText)
	assert.Equal(t, 1, delays.calls)
	assert.Equal(t, 30, delays.delayMinutes)
	assert.Equal(t, 0, ig.calls)
	assert.True(t, rec.success)
}

func TestResponder_DeliveryFailureIsCaught(t *testing.T) {
	ig := &fakeInstagram{err: errors.New("graph api 500")}
	rec := &fakeRecorder{}
	r := newTestResponder(&fakeGenerator{}, ig, &fakeDelayQueue{}, rec)

	a := templateAutomation("hello", nil)
	outcome := r.Execute(context.Background(), a, "hi", nil, Target{Kind: TargetComment, CommentID: "c1"})

	require.Error(t, outcome.Err)
	assert.False(t, outcome.ResponseGenerated)
	// The attempt still lands in the performance aggregate, as a failure.
	assert.Equal(t, 1, rec.calls)
	assert.False(t, rec.success)
}

func TestResponder_GenerationFailureRecordsFailure(t *testing.T) {
	ig := &fakeInstagram{}
	rec := &fakeRecorder{}
	r := newTestResponder(&fakeGenerator{err: errors.New("ai down")}, ig, &fakeDelayQueue{}, rec)

	a := &types.Automation{
		ID: "auto-1", Status: types.AutomationActive, IsActive: true,
		Response: types.ResponseConfig{Type: types.ResponseAIGenerated},
	}
	outcome := r.Execute(context.Background(), a, "hi", nil, Target{Kind: TargetComment, CommentID: "c1"})

	require.Error(t, outcome.Err)
	assert.Equal(t, 0, ig.calls)
	assert.False(t, rec.success)
}
