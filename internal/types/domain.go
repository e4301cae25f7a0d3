package types

import "time"

// ---------------------------------------------------------------------------
// Instagram side
// ---------------------------------------------------------------------------

// InstagramAccount links a connected Instagram business account to its
// owning tenant user. Lookup by ExternalID is the first step of every
// Instagram sub-event.
type InstagramAccount struct {
	ID          string
	UserID      string
	ExternalID  string // Instagram-assigned account id as it appears in webhooks
	Username    string
	AccessToken SecretString // page access token for outbound Graph API calls
	IsActive    bool
}

// Conversation groups the message history between one Instagram account and
// one external participant.
//
// Uniqueness invariant: (UserID, InstagramAccountID, ExternalConversationID)
// is unique, where ExternalConversationID is the deterministic
// sender_recipient pairing of the two participant ids. Conversations are
// created on first inbound message and never deleted by this core.
type Conversation struct {
	ID                     string
	UserID                 string
	InstagramAccountID     string
	ExternalConversationID string
	ParticipantID          string // external id of the end user
	Status                 ConversationStatus
	MessageCount           int64 // monotonically increasing
	LastMessageText        string
	LastMessageAt          time.Time
	CreatedAt              time.Time
}

// Message is a single message belonging to exactly one Conversation.
// Immutable once created except for Status.
type Message struct {
	ID             string
	ConversationID string
	ExternalID     string // provider mid; dedup key for inbound messages
	Direction      MessageDirection
	Text           string
	Status         MessageStatus
	Timestamp      time.Time
	CreatedAt      time.Time
}

// ---------------------------------------------------------------------------
// Automations
// ---------------------------------------------------------------------------

// TriggerConfig is the tagged-union trigger predicate of an automation.
// Type selects which field group applies.
type TriggerConfig struct {
	Type TriggerType `json:"type"`

	// keyword
	Keywords      []string         `json:"keywords,omitempty"`
	MatchType     KeywordMatchType `json:"matchType,omitempty"`
	CaseSensitive bool             `json:"caseSensitive,omitempty"`

	// intent (simplified substring matching; real classification is stubbed)
	Intents []string `json:"intents,omitempty"`

	// time
	TimeStart  string `json:"timeStart,omitempty"` // "HH:MM"
	TimeEnd    string `json:"timeEnd,omitempty"`   // "HH:MM", inclusive
	DaysOfWeek []int  `json:"daysOfWeek,omitempty"` // 1=Monday .. 7=Sunday
	Timezone   string `json:"timezone,omitempty"`

	// user_type
	UserTypes []string `json:"userTypes,omitempty"`

	// message_count
	Count             int `json:"count,omitempty"`
	TimeWindowMinutes int `json:"timeWindowMinutes,omitempty"`
}

// ResponseConfig is the tagged-union response definition of an automation.
type ResponseConfig struct {
	Type ResponseType `json:"type"`

	// template / custom
	Template  string            `json:"template,omitempty"`
	Variables map[string]string `json:"variables,omitempty"`

	// ai_generated
	Prompt    string `json:"prompt,omitempty"`
	MaxLength int    `json:"maxLength,omitempty"`

	// delay
	DelayMinutes int `json:"delayMinutes,omitempty"`
}

// AutomationPerformance is the denormalized running aggregate mutated after
// every execution attempt. Updates go through a single atomic SQL statement;
// never read-modify-write in application code.
type AutomationPerformance struct {
	TotalTriggers       int64   `json:"totalTriggers"`
	SuccessfulResponses int64   `json:"successfulResponses"`
	FailedResponses     int64   `json:"failedResponses"`
	AvgResponseTimeMS   float64 `json:"avgResponseTimeMs"`
	SuccessRate         float64 `json:"successRate"` // percentage
}

// Automation is a tenant-configured rule pairing a trigger predicate with a
// response generator. Eligible for matching only when Status==ACTIVE and
// IsActive==true.
type Automation struct {
	ID          string
	UserID      string
	Name        string
	Status      AutomationStatus
	IsActive    bool
	Trigger     TriggerConfig
	Response    ResponseConfig
	Performance AutomationPerformance
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Eligible reports whether the automation may be evaluated at all.
func (a *Automation) Eligible() bool {
	return a.Status == AutomationActive && a.IsActive
}

// ---------------------------------------------------------------------------
// Billing side
// ---------------------------------------------------------------------------

// Plan is the local catalog entry a Stripe price maps onto. Feature limits
// seed per-period usage records at subscription creation.
type Plan struct {
	ID            string
	Name          string
	StripePriceID string
	FeatureLimits map[string]int64 // feature name -> limit for the period
}

// Subscription bridges an internal user to exactly one Stripe subscription.
type Subscription struct {
	ID                   string
	UserID               string
	PlanID               string
	StripeSubscriptionID string
	StripeCustomerID     string
	Status               SubscriptionStatus
	CurrentPeriodStart   time.Time
	CurrentPeriodEnd     time.Time
	CanceledAt           *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Invoice mirrors a Stripe invoice, keyed by StripeInvoiceID.
type Invoice struct {
	ID              string
	UserID          string
	StripeInvoiceID string
	StripeCustomerID string
	Status          InvoiceStatus
	AmountDueCents  int64
	PeriodStart     time.Time
	PeriodEnd       time.Time
	PaidAt          *time.Time
	CreatedAt       time.Time
}

// UsageRecord tracks consumption of one feature for one user in one billing
// period ("YYYY-MM"). First write creates the row with a plan-derived limit;
// subsequent writes increment usage without touching the limit.
type UsageRecord struct {
	ID      string
	UserID  string
	Feature string
	Period  string // "YYYY-MM"
	Used    int64
	Limit   int64
}

// ---------------------------------------------------------------------------
// Ledger
// ---------------------------------------------------------------------------

// ProcessedEvent is the append-only ledger row recording that a webhook
// sub-event was handled and with what outcome. Write-once per processing
// attempt.
type ProcessedEvent struct {
	ID        string
	EventID   string
	EventType EventKind
	Provider  Provider
	Success   bool
	Action    string
	Details   map[string]any
	Error     string
	CreatedAt time.Time
}
