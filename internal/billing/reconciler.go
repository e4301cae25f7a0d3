package billing

import (
	"context"
	"log/slog"
	"time"

	"neuraslide/internal/types"
	"neuraslide/internal/webhook"
)

// Ledger processing actions for Stripe events.
const (
	ActionSubscriptionCreated = "subscription_created"
	ActionSubscriptionUpdated = "subscription_updated"
	ActionSubscriptionDeleted = "subscription_deleted"
	ActionCheckoutCompleted   = "checkout_completed"
	ActionInvoiceCreated      = "invoice_created"
	ActionInvoicePaid         = "invoice_paid"
	ActionInvoiceFailed       = "invoice_payment_failed"
)

// SubscriptionStore is the subscription persistence surface reconciliation
// needs, including the customer and plan linkage lookups.
type SubscriptionStore interface {
	FindUserByCustomerID(ctx context.Context, customerID string) (string, error)
	FindPlanByPriceID(ctx context.Context, priceID string) (*types.Plan, error)
	GetPlanByID(ctx context.Context, planID string) (*types.Plan, error)
	GetByStripeID(ctx context.Context, stripeSubID string) (*types.Subscription, error)
	Create(ctx context.Context, s *types.Subscription) error
	UpdateStatusPeriod(ctx context.Context, stripeSubID string, status types.SubscriptionStatus, periodStart, periodEnd time.Time, canceledAt *time.Time) error
}

// InvoiceStore is the invoice persistence surface reconciliation needs.
type InvoiceStore interface {
	Upsert(ctx context.Context, inv *types.Invoice) error
	MarkPaid(ctx context.Context, stripeInvoiceID string, paidAt time.Time) error
}

// UsageStore seeds per-feature usage rows from plan limits.
type UsageStore interface {
	InitForPlan(ctx context.Context, userID, period string, limits map[string]int64) error
}

// ResultRecorder appends processing outcomes to the processed-event ledger.
type ResultRecorder interface {
	Record(ctx context.Context, provider types.Provider, eventID string, eventType types.EventKind, result types.ProcessingResult) string
}

// Reconciler applies normalized Stripe billing events to local state.
//
// Missing user or plan linkage is reported as a failed reconciliation, not
// silently skipped: it indicates configuration drift between Stripe and the
// local catalog. The webhook handler still answers 200 so Stripe does not
// retry a permanently unreconcilable event forever.
type Reconciler struct {
	subs     SubscriptionStore
	invoices InvoiceStore
	usage    UsageStore
	dedup    webhook.Deduper
	ledger   ResultRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewReconciler wires the reconciler to its stores.
func NewReconciler(
	subs SubscriptionStore,
	invoices InvoiceStore,
	usage UsageStore,
	dedup webhook.Deduper,
	ledger ResultRecorder,
	logger *slog.Logger,
) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		subs:     subs,
		invoices: invoices,
		usage:    usage,
		dedup:    dedup,
		ledger:   ledger,
		logger:   logger,
		now:      time.Now,
	}
}

// Process applies one normalized Stripe event and records the outcome in
// the ledger. It never returns an error: every failure is captured in the
// result.
func (r *Reconciler) Process(ctx context.Context, ev *types.NormalizedEvent) types.ProcessingResult {
	result := r.processOne(ctx, ev)
	r.ledger.Record(ctx, types.ProviderStripe, ev.EventID, ev.Kind, result)
	return result
}

func (r *Reconciler) processOne(ctx context.Context, ev *types.NormalizedEvent) types.ProcessingResult {
	seen, err := r.dedup.MarkSeen(ctx, types.ProviderStripe, ev.EventID)
	if err != nil {
		r.logger.Warn("dedup guard unavailable; continuing",
			slog.String("event_id", ev.EventID),
			slog.String("error", err.Error()),
		)
	} else if seen {
		return types.DuplicateResult(ev.EventID)
	}

	switch ev.Kind {
	case types.EventSubscriptionCreated:
		return r.handleSubscriptionCreated(ctx, ev)
	case types.EventSubscriptionUpdated:
		return r.handleSubscriptionChanged(ctx, ev, ActionSubscriptionUpdated)
	case types.EventSubscriptionDeleted:
		return r.handleSubscriptionChanged(ctx, ev, ActionSubscriptionDeleted)
	case types.EventCheckoutCompleted:
		return r.handleCheckoutCompleted(ctx, ev)
	case types.EventInvoiceCreated:
		return r.handleInvoiceCreated(ctx, ev)
	case types.EventInvoicePaid:
		return r.handleInvoicePaid(ctx, ev)
	case types.EventInvoiceFailed:
		return r.handleInvoiceFailed(ctx, ev)
	default:
		return types.IgnoredResult()
	}
}

// handleSubscriptionCreated requires both the customer and price linkages to
// exist locally. On success it also seeds per-feature usage rows for the
// current period from the plan's limits.
func (r *Reconciler) handleSubscriptionCreated(ctx context.Context, ev *types.NormalizedEvent) types.ProcessingResult {
	b := ev.Billing

	userID, err := r.subs.FindUserByCustomerID(ctx, b.CustomerID)
	if err != nil {
		return types.FailedResult(ActionSubscriptionCreated, err)
	}
	plan, err := r.subs.FindPlanByPriceID(ctx, b.PriceID)
	if err != nil {
		return types.FailedResult(ActionSubscriptionCreated, err)
	}

	status := types.SubscriptionStatus(b.Status)
	if !KnownStatus(b.Status) {
		r.logger.Warn("unrecognized subscription status; storing as-is",
			slog.String("subscription_id", b.ObjectID),
			slog.String("status", b.Status),
		)
	}

	sub := &types.Subscription{
		UserID:               userID,
		PlanID:               plan.ID,
		StripeSubscriptionID: b.ObjectID,
		StripeCustomerID:     b.CustomerID,
		Status:               status,
		CurrentPeriodStart:   time.Unix(b.PeriodStart, 0).UTC(),
		CurrentPeriodEnd:     time.Unix(b.PeriodEnd, 0).UTC(),
	}
	if err := r.subs.Create(ctx, sub); err != nil {
		return types.FailedResult(ActionSubscriptionCreated, err)
	}

	period := r.now().UTC().Format("2006-01")
	if err := r.usage.InitForPlan(ctx, userID, period, plan.FeatureLimits); err != nil {
		return types.FailedResult(ActionSubscriptionCreated, err)
	}

	return types.ProcessingResult{
		Success: true,
		Action:  ActionSubscriptionCreated,
		Details: map[string]any{"userId": userID, "planId": plan.ID},
	}
}

// handleSubscriptionChanged applies updated/deleted events as a full
// overwrite of status and period. Re-applying the same values is a no-op, so
// redeliveries are naturally idempotent. Invalid lifecycle transitions are
// flagged in the details but still applied: Stripe is the source of truth.
func (r *Reconciler) handleSubscriptionChanged(ctx context.Context, ev *types.NormalizedEvent, action string) types.ProcessingResult {
	b := ev.Billing

	current, err := r.subs.GetByStripeID(ctx, b.ObjectID)
	if err != nil {
		return types.FailedResult(action, err)
	}

	newStatus := types.SubscriptionStatus(b.Status)
	if action == ActionSubscriptionDeleted {
		newStatus = types.SubStatusCanceled
	}

	details := map[string]any{
		"from": string(current.Status),
		"to":   string(newStatus),
	}
	if !ValidTransition(current.Status, newStatus) {
		r.logger.Warn("invalid subscription transition; applying anyway",
			slog.String("subscription_id", b.ObjectID),
			slog.String("from", string(current.Status)),
			slog.String("to", string(newStatus)),
		)
		details["invalid_transition"] = true
	}

	var canceledAt *time.Time
	if newStatus == types.SubStatusCanceled {
		if current.CanceledAt != nil {
			canceledAt = current.CanceledAt
		} else {
			at := r.now().UTC()
			canceledAt = &at
		}
	}

	periodStart := time.Unix(b.PeriodStart, 0).UTC()
	periodEnd := time.Unix(b.PeriodEnd, 0).UTC()
	if b.PeriodStart == 0 {
		periodStart = current.CurrentPeriodStart
	}
	if b.PeriodEnd == 0 {
		periodEnd = current.CurrentPeriodEnd
	}

	if err := r.subs.UpdateStatusPeriod(ctx, b.ObjectID, newStatus, periodStart, periodEnd, canceledAt); err != nil {
		return types.FailedResult(action, err)
	}
	return types.ProcessingResult{Success: true, Action: action, Details: details}
}

// handleCheckoutCompleted activates the subscription the checkout session
// paid for. The subscription.created event is expected to have arrived at or
// before checkout completion; a missing row is a failed reconciliation.
func (r *Reconciler) handleCheckoutCompleted(ctx context.Context, ev *types.NormalizedEvent) types.ProcessingResult {
	b := ev.Billing

	current, err := r.subs.GetByStripeID(ctx, b.SubscriptionID)
	if err != nil {
		return types.FailedResult(ActionCheckoutCompleted, err)
	}

	periodStart := time.Unix(b.PeriodStart, 0).UTC()
	periodEnd := time.Unix(b.PeriodEnd, 0).UTC()
	if b.PeriodStart == 0 {
		periodStart = current.CurrentPeriodStart
	}
	if b.PeriodEnd == 0 {
		periodEnd = current.CurrentPeriodEnd
	}

	if err := r.subs.UpdateStatusPeriod(ctx, b.SubscriptionID, types.SubStatusActive, periodStart, periodEnd, nil); err != nil {
		return types.FailedResult(ActionCheckoutCompleted, err)
	}

	// Checkout completion resyncs usage limits from the plan, same as
	// subscription creation. Used counters are preserved.
	plan, err := r.subs.GetPlanByID(ctx, current.PlanID)
	if err != nil {
		return types.FailedResult(ActionCheckoutCompleted, err)
	}
	period := r.now().UTC().Format("2006-01")
	if err := r.usage.InitForPlan(ctx, current.UserID, period, plan.FeatureLimits); err != nil {
		return types.FailedResult(ActionCheckoutCompleted, err)
	}

	return types.ProcessingResult{
		Success: true,
		Action:  ActionCheckoutCompleted,
		Details: map[string]any{"subscriptionId": b.SubscriptionID},
	}
}

func (r *Reconciler) handleInvoiceCreated(ctx context.Context, ev *types.NormalizedEvent) types.ProcessingResult {
	b := ev.Billing

	userID, err := r.subs.FindUserByCustomerID(ctx, b.CustomerID)
	if err != nil {
		return types.FailedResult(ActionInvoiceCreated, err)
	}

	inv := &types.Invoice{
		UserID:           userID,
		StripeInvoiceID:  b.ObjectID,
		StripeCustomerID: b.CustomerID,
		Status:           types.InvoiceOpen,
		AmountDueCents:   b.AmountDue,
		PeriodStart:      time.Unix(b.PeriodStart, 0).UTC(),
		PeriodEnd:        time.Unix(b.PeriodEnd, 0).UTC(),
	}
	if err := r.invoices.Upsert(ctx, inv); err != nil {
		return types.FailedResult(ActionInvoiceCreated, err)
	}
	return types.ProcessingResult{Success: true, Action: ActionInvoiceCreated}
}

func (r *Reconciler) handleInvoicePaid(ctx context.Context, ev *types.NormalizedEvent) types.ProcessingResult {
	b := ev.Billing

	paidAt := time.Unix(b.PaidAt, 0).UTC()
	if b.PaidAt == 0 {
		paidAt = r.now().UTC()
	}
	if err := r.invoices.MarkPaid(ctx, b.ObjectID, paidAt); err != nil {
		return types.FailedResult(ActionInvoicePaid, err)
	}
	return types.ProcessingResult{Success: true, Action: ActionInvoicePaid}
}

// handleInvoiceFailed leaves the invoice OPEN. Stripe's own dunning retries
// the charge; a local status change would fight it.
func (r *Reconciler) handleInvoiceFailed(ctx context.Context, ev *types.NormalizedEvent) types.ProcessingResult {
	b := ev.Billing
	r.logger.Warn("invoice payment failed",
		slog.String("invoice_id", b.ObjectID),
		slog.String("customer_id", b.CustomerID),
	)
	return types.ProcessingResult{
		Success: true,
		Action:  ActionInvoiceFailed,
		Details: map[string]any{"invoiceId": b.ObjectID},
	}
}
