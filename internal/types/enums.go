package types

// Provider identifies the external system that delivered a webhook.
type Provider string

const (
	ProviderInstagram Provider = "instagram"
	ProviderStripe    Provider = "stripe"
)

// EventKind classifies a normalized webhook sub-event.
type EventKind string

const (
	// Instagram messaging events
	EventMessageReceived  EventKind = "MESSAGE_RECEIVED"
	EventMessageDelivered EventKind = "MESSAGE_DELIVERED"
	EventMessageRead      EventKind = "MESSAGE_READ"

	// Instagram change events
	EventCommentCreated EventKind = "COMMENT_CREATED"
	EventMentionCreated EventKind = "MENTION_CREATED"
	EventStoryMention   EventKind = "STORY_MENTION"
	EventMediaPublished EventKind = "MEDIA_PUBLISHED"

	// Stripe billing events
	EventSubscriptionCreated EventKind = "SUBSCRIPTION_CREATED"
	EventSubscriptionUpdated EventKind = "SUBSCRIPTION_UPDATED"
	EventSubscriptionDeleted EventKind = "SUBSCRIPTION_DELETED"
	EventInvoiceCreated      EventKind = "INVOICE_CREATED"
	EventInvoicePaid         EventKind = "INVOICE_PAID"
	EventInvoiceFailed       EventKind = "INVOICE_PAYMENT_FAILED"
	EventCheckoutCompleted   EventKind = "CHECKOUT_COMPLETED"

	// EventUnknown is the explicit fallback for unrecognized or malformed
	// sub-events. Unknown events are recorded, never dropped silently.
	EventUnknown EventKind = "UNKNOWN"
)

// ConversationStatus represents the lifecycle state of a conversation.
type ConversationStatus string

const (
	ConversationActive   ConversationStatus = "active"
	ConversationArchived ConversationStatus = "archived"
)

// MessageStatus tracks delivery acknowledgements for a stored message.
// Delivery and read receipts map to status transitions, not new rows.
type MessageStatus string

const (
	MessageStatusReceived  MessageStatus = "received"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
)

// MessageDirection distinguishes inbound end-user messages from outbound
// automation replies.
type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

// AutomationStatus represents the configured lifecycle state of an automation.
// Only ACTIVE automations with IsActive=true are eligible for matching.
type AutomationStatus string

const (
	AutomationDraft    AutomationStatus = "DRAFT"
	AutomationActive   AutomationStatus = "ACTIVE"
	AutomationInactive AutomationStatus = "INACTIVE"
)

// TriggerType identifies the predicate kind gating an automation.
type TriggerType string

const (
	TriggerKeyword      TriggerType = "keyword"
	TriggerIntent       TriggerType = "intent"
	TriggerTime         TriggerType = "time"
	TriggerUserType     TriggerType = "user_type"
	TriggerMessageCount TriggerType = "message_count"
)

// KeywordMatchType defines how keyword triggers compare against message text.
type KeywordMatchType string

const (
	MatchExact      KeywordMatchType = "exact"
	MatchContains   KeywordMatchType = "contains"
	MatchStartsWith KeywordMatchType = "starts_with"
	MatchEndsWith   KeywordMatchType = "ends_with"
)

// ResponseType identifies how a matched automation produces its reply.
type ResponseType string

const (
	ResponseAIGenerated ResponseType = "ai_generated"
	ResponseTemplate    ResponseType = "template"
	ResponseCustom      ResponseType = "custom"
	ResponseDelay       ResponseType = "delay"
)

// SubscriptionStatus represents the state of a billing subscription.
// Values mirror Stripe's own status strings.
type SubscriptionStatus string

const (
	SubStatusActive            SubscriptionStatus = "active"
	SubStatusTrialing          SubscriptionStatus = "trialing"
	SubStatusPastDue           SubscriptionStatus = "past_due"
	SubStatusCanceled          SubscriptionStatus = "canceled"
	SubStatusIncomplete        SubscriptionStatus = "incomplete"
	SubStatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubStatusUnpaid            SubscriptionStatus = "unpaid"
)

// InvoiceStatus represents the state of a billing invoice.
// A payment failure leaves the invoice OPEN: Stripe's own dunning retries it.
type InvoiceStatus string

const (
	InvoiceOpen InvoiceStatus = "open"
	InvoicePaid InvoiceStatus = "paid"
	InvoiceVoid InvoiceStatus = "void"
)
