package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"neuraslide/internal/types"
)

// SubscriptionRepo manages local subscription state synchronized from Stripe
// webhook events, plus the customer/plan linkage lookups reconciliation
// depends on.
type SubscriptionRepo struct {
	db DBTX
}

// NewSubscriptionRepo creates a repo backed by the given connection.
func NewSubscriptionRepo(db DBTX) *SubscriptionRepo {
	return &SubscriptionRepo{db: db}
}

// FindUserByCustomerID resolves the internal user linked to a Stripe
// customer id. A missing linkage indicates configuration drift between
// Stripe and the local catalog; callers report it as a failed
// reconciliation.
func (r *SubscriptionRepo) FindUserByCustomerID(ctx context.Context, customerID string) (string, error) {
	var userID string
	err := r.db.QueryRow(ctx,
		`SELECT id FROM users WHERE stripe_customer_id = $1`,
		customerID,
	).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", types.NewAppError(
			types.ErrCodeNotFoundUser,
			fmt.Sprintf("no user linked to Stripe customer %s", customerID),
			nil,
		)
	}
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalDB, "failed to look up user by customer id", err)
	}
	return userID, nil
}

// FindPlanByPriceID resolves the local plan linked to a Stripe price id,
// including its feature limits used to seed usage records.
func (r *SubscriptionRepo) FindPlanByPriceID(ctx context.Context, priceID string) (*types.Plan, error) {
	var plan types.Plan
	var limits types.DetailsMap
	err := r.db.QueryRow(ctx,
		`SELECT id, name, stripe_price_id, feature_limits
		 FROM plans WHERE stripe_price_id = $1`,
		priceID,
	).Scan(&plan.ID, &plan.Name, &plan.StripePriceID, &limits)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(
			types.ErrCodeNotFoundPlan,
			fmt.Sprintf("no plan linked to Stripe price %s", priceID),
			nil,
		)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to look up plan by price id", err)
	}

	plan.FeatureLimits = make(map[string]int64, len(limits))
	for feature, v := range limits {
		switch n := v.(type) {
		case float64:
			plan.FeatureLimits[feature] = int64(n)
		case int64:
			plan.FeatureLimits[feature] = n
		}
	}
	return &plan, nil
}

// GetPlanByID returns the plan row by its internal id, including the
// feature limits used for usage resyncs.
func (r *SubscriptionRepo) GetPlanByID(ctx context.Context, planID string) (*types.Plan, error) {
	var plan types.Plan
	var limits types.DetailsMap
	err := r.db.QueryRow(ctx,
		`SELECT id, name, stripe_price_id, feature_limits
		 FROM plans WHERE id = $1`,
		planID,
	).Scan(&plan.ID, &plan.Name, &plan.StripePriceID, &limits)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(
			types.ErrCodeNotFoundPlan,
			fmt.Sprintf("no plan row %s", planID),
			nil,
		)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to look up plan", err)
	}

	plan.FeatureLimits = make(map[string]int64, len(limits))
	for feature, v := range limits {
		switch n := v.(type) {
		case float64:
			plan.FeatureLimits[feature] = int64(n)
		case int64:
			plan.FeatureLimits[feature] = n
		}
	}
	return &plan, nil
}

// GetByStripeID returns the subscription row keyed by the Stripe
// subscription id.
func (r *SubscriptionRepo) GetByStripeID(ctx context.Context, stripeSubID string) (*types.Subscription, error) {
	var s types.Subscription
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, plan_id, stripe_subscription_id, stripe_customer_id,
		        status, current_period_start, current_period_end, canceled_at,
		        created_at, updated_at
		 FROM subscriptions WHERE stripe_subscription_id = $1`,
		stripeSubID,
	).Scan(&s.ID, &s.UserID, &s.PlanID, &s.StripeSubscriptionID, &s.StripeCustomerID,
		&s.Status, &s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.CanceledAt,
		&s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(
			types.ErrCodeNotFoundSubscription,
			fmt.Sprintf("no subscription row for Stripe subscription %s", stripeSubID),
			nil,
		)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to look up subscription", err)
	}
	return &s, nil
}

// Create inserts a subscription row. The unique constraint on
// stripe_subscription_id makes redelivered subscription.created events
// idempotent: the conflict path overwrites status and period, which is a
// full overwrite of the same values.
func (r *SubscriptionRepo) Create(ctx context.Context, s *types.Subscription) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO subscriptions
		   (id, user_id, plan_id, stripe_subscription_id, stripe_customer_id,
		    status, current_period_start, current_period_end, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		 ON CONFLICT (stripe_subscription_id) DO UPDATE SET
		   status               = EXCLUDED.status,
		   current_period_start = EXCLUDED.current_period_start,
		   current_period_end   = EXCLUDED.current_period_end,
		   updated_at           = NOW()`,
		s.ID, s.UserID, s.PlanID, s.StripeSubscriptionID, s.StripeCustomerID,
		s.Status, s.CurrentPeriodStart, s.CurrentPeriodEnd,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create subscription", err)
	}
	return nil
}

// UpdateStatusPeriod overwrites status and period boundaries for the
// subscription. The update is a full overwrite of these fields, never an
// increment, so re-applying the same event is naturally idempotent.
func (r *SubscriptionRepo) UpdateStatusPeriod(
	ctx context.Context,
	stripeSubID string,
	status types.SubscriptionStatus,
	periodStart, periodEnd time.Time,
	canceledAt *time.Time,
) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE subscriptions SET
		   status               = $2,
		   current_period_start = $3,
		   current_period_end   = $4,
		   canceled_at          = $5,
		   updated_at           = NOW()
		 WHERE stripe_subscription_id = $1`,
		stripeSubID, status, periodStart, periodEnd, canceledAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update subscription", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(
			types.ErrCodeNotFoundSubscription,
			fmt.Sprintf("no subscription row for Stripe subscription %s", stripeSubID),
			nil,
		)
	}
	return nil
}
