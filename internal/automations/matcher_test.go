package automations

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neuraslide/internal/types"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeAutomationStore struct {
	automations []types.Automation
	err         error
}

func (f *fakeAutomationStore) ListActive(_ context.Context, _ string) ([]types.Automation, error) {
	return f.automations, f.err
}

type fakeCounter struct {
	count int
	err   error
	since time.Time
}

func (f *fakeCounter) CountMessagesSince(_ context.Context, _ string, since time.Time) (int, error) {
	f.since = since
	return f.count, f.err
}

func keywordAutomation(id string, matchType types.KeywordMatchType, caseSensitive bool, keywords ...string) types.Automation {
	return types.Automation{
		ID:       id,
		Status:   types.AutomationActive,
		IsActive: true,
		Trigger: types.TriggerConfig{
			Type:          types.TriggerKeyword,
			Keywords:      keywords,
			MatchType:     matchType,
			CaseSensitive: caseSensitive,
		},
	}
}

// ---------------------------------------------------------------------------
// Keyword trigger
// ---------------------------------------------------------------------------

func TestMatcher_Keyword(t *testing.T) {
	tests := []struct {
		name       string
		automation types.Automation
		text       string
		want       bool
	}{
		{"exact hit", keywordAutomation("a", types.MatchExact, false, "price"), "Price", true},
		{"exact miss on longer text", keywordAutomation("a", types.MatchExact, false, "price"), "price?", false},
		{"contains hit", keywordAutomation("a", types.MatchContains, false, "price"), "what is the PRICE today", true},
		{"contains miss", keywordAutomation("a", types.MatchContains, false, "price"), "how much", false},
		{"starts_with hit", keywordAutomation("a", types.MatchStartsWith, false, "hello"), "Hello there", true},
		{"starts_with miss", keywordAutomation("a", types.MatchStartsWith, false, "hello"), "oh hello", false},
		{"ends_with hit", keywordAutomation("a", types.MatchEndsWith, false, "thanks"), "ok thanks", true},
		{"ends_with miss", keywordAutomation("a", types.MatchEndsWith, false, "thanks"), "thanks a lot", false},
		{"any keyword triggers", keywordAutomation("a", types.MatchContains, false, "nope", "price"), "the price", true},
		{"case sensitive miss", keywordAutomation("a", types.MatchContains, true, "Price"), "price", false},
		{"case sensitive hit", keywordAutomation("a", types.MatchContains, true, "Price"), "the Price", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMatcher(&fakeAutomationStore{automations: []types.Automation{tt.automation}}, &fakeCounter{}, nil)
			matched, err := m.Match(context.Background(), "user-1", MatchContext{Text: tt.text})
			require.NoError(t, err)
			assert.Equal(t, tt.want, len(matched) == 1)
		})
	}
}

// ---------------------------------------------------------------------------
// Intent trigger
// ---------------------------------------------------------------------------

func TestMatcher_IntentSubstring(t *testing.T) {
	a := types.Automation{
		ID: "a", Status: types.AutomationActive, IsActive: true,
		Trigger: types.TriggerConfig{Type: types.TriggerIntent, Intents: []string{"refund", "cancel order"}},
	}
	m := NewMatcher(&fakeAutomationStore{automations: []types.Automation{a}}, &fakeCounter{}, nil)

	matched, err := m.Match(context.Background(), "user-1", MatchContext{Text: "I want to CANCEL ORDER #12"})
	require.NoError(t, err)
	assert.Len(t, matched, 1)

	matched, err = m.Match(context.Background(), "user-1", MatchContext{Text: "love the product"})
	require.NoError(t, err)
	assert.Empty(t, matched)
}

// ---------------------------------------------------------------------------
// Time trigger
// ---------------------------------------------------------------------------

func businessHours() types.Automation {
	return types.Automation{
		ID: "a", Status: types.AutomationActive, IsActive: true,
		Trigger: types.TriggerConfig{
			Type:       types.TriggerTime,
			TimeStart:  "09:00",
			TimeEnd:    "17:00",
			DaysOfWeek: []int{1, 2, 3, 4, 5},
			Timezone:   "UTC",
		},
	}
}

func TestMatcher_TimeWindow(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		// 2026-01-05 is a Monday.
		{"start boundary inclusive", time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC), true},
		{"just before start", time.Date(2026, 1, 5, 8, 59, 0, 0, time.UTC), false},
		{"end boundary inclusive", time.Date(2026, 1, 5, 17, 0, 0, 0, time.UTC), true},
		{"just after end", time.Date(2026, 1, 5, 17, 1, 0, 0, time.UTC), false},
		{"saturday excluded", time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMatcher(&fakeAutomationStore{automations: []types.Automation{businessHours()}}, &fakeCounter{}, nil)
			matched, err := m.Match(context.Background(), "user-1", MatchContext{Text: "hi", Now: tt.now})
			require.NoError(t, err)
			assert.Equal(t, tt.want, len(matched) == 1)
		})
	}
}

func TestMatcher_TimeSundayRemap(t *testing.T) {
	a := businessHours()
	a.Trigger.DaysOfWeek = []int{7}
	m := NewMatcher(&fakeAutomationStore{automations: []types.Automation{a}}, &fakeCounter{}, nil)

	// 2026-01-04 is a Sunday; Go's weekday 0 remaps to 7.
	matched, err := m.Match(context.Background(), "user-1", MatchContext{
		Text: "hi", Now: time.Date(2026, 1, 4, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Len(t, matched, 1)
}

func TestMatcher_TimezoneConversion(t *testing.T) {
	a := businessHours()
	a.Trigger.Timezone = "America/New_York"
	m := NewMatcher(&fakeAutomationStore{automations: []types.Automation{a}}, &fakeCounter{}, nil)

	// 20:00 UTC on a Monday is 15:00 in New York, inside the window.
	matched, err := m.Match(context.Background(), "user-1", MatchContext{
		Text: "hi", Now: time.Date(2026, 1, 5, 20, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Len(t, matched, 1)
}

func TestMatcher_BrokenTimezoneSkipsAutomation(t *testing.T) {
	broken := businessHours()
	broken.Trigger.Timezone = "Not/AZone"
	ok := keywordAutomation("b", types.MatchContains, false, "hi")
	m := NewMatcher(&fakeAutomationStore{automations: []types.Automation{broken, ok}}, &fakeCounter{}, nil)

	matched, err := m.Match(context.Background(), "user-1", MatchContext{
		Text: "hi", Now: time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "b", matched[0].ID)
}

// ---------------------------------------------------------------------------
// User type trigger
// ---------------------------------------------------------------------------

func TestMatcher_UserType(t *testing.T) {
	a := types.Automation{
		ID: "a", Status: types.AutomationActive, IsActive: true,
		Trigger: types.TriggerConfig{Type: types.TriggerUserType, UserTypes: []string{"new_follower", "unknown"}},
	}
	m := NewMatcher(&fakeAutomationStore{automations: []types.Automation{a}}, &fakeCounter{}, nil)

	// Absent user type defaults to "unknown".
	matched, err := m.Match(context.Background(), "user-1", MatchContext{Text: "hi"})
	require.NoError(t, err)
	assert.Len(t, matched, 1)

	matched, err = m.Match(context.Background(), "user-1", MatchContext{Text: "hi", UserType: "vip"})
	require.NoError(t, err)
	assert.Empty(t, matched)
}

// ---------------------------------------------------------------------------
// Message count trigger
// ---------------------------------------------------------------------------

func TestMatcher_MessageCount(t *testing.T) {
	a := types.Automation{
		ID: "a", Status: types.AutomationActive, IsActive: true,
		Trigger: types.TriggerConfig{Type: types.TriggerMessageCount, Count: 3, TimeWindowMinutes: 60},
	}
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)

	counter := &fakeCounter{count: 3}
	m := NewMatcher(&fakeAutomationStore{automations: []types.Automation{a}}, counter, nil)
	matched, err := m.Match(context.Background(), "user-1", MatchContext{Text: "hi", ConversationID: "conv-1", Now: now})
	require.NoError(t, err)
	assert.Len(t, matched, 1)
	assert.Equal(t, now.Add(-time.Hour), counter.since)

	counter = &fakeCounter{count: 2}
	m = NewMatcher(&fakeAutomationStore{automations: []types.Automation{a}}, counter, nil)
	matched, err = m.Match(context.Background(), "user-1", MatchContext{Text: "hi", ConversationID: "conv-1", Now: now})
	require.NoError(t, err)
	assert.Empty(t, matched)
}

func TestMatcher_MessageCountWithoutConversation(t *testing.T) {
	a := types.Automation{
		ID: "a", Status: types.AutomationActive, IsActive: true,
		Trigger: types.TriggerConfig{Type: types.TriggerMessageCount, Count: 1},
	}
	m := NewMatcher(&fakeAutomationStore{automations: []types.Automation{a}}, &fakeCounter{count: 10}, nil)

	// Comment events have no conversation; the predicate cannot fire.
	matched, err := m.Match(context.Background(), "user-1", MatchContext{Text: "hi"})
	require.NoError(t, err)
	assert.Empty(t, matched)
}

// ---------------------------------------------------------------------------
// Run-all-matches policy
// ---------------------------------------------------------------------------

func TestMatcher_AllMatchesReturned(t *testing.T) {
	m := NewMatcher(&fakeAutomationStore{automations: []types.Automation{
		keywordAutomation("a", types.MatchContains, false, "price"),
		keywordAutomation("b", types.MatchContains, false, "much"),
		keywordAutomation("c", types.MatchContains, false, "nothing"),
	}}, &fakeCounter{}, nil)

	matched, err := m.Match(context.Background(), "user-1", MatchContext{Text: "how much is the price"})
	require.NoError(t, err)
	require.Len(t, matched, 2)
	assert.Equal(t, "a", matched[0].ID)
	assert.Equal(t, "b", matched[1].ID)
}
