package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"neuraslide/internal/types"
)

// InvoiceRepo manages invoice rows keyed by the Stripe invoice id.
type InvoiceRepo struct {
	db DBTX
}

// NewInvoiceRepo creates a repo backed by the given connection.
func NewInvoiceRepo(db DBTX) *InvoiceRepo {
	return &InvoiceRepo{db: db}
}

// Upsert creates or refreshes the invoice row. Redelivered invoice.created
// events overwrite the same values, so the upsert is idempotent.
func (r *InvoiceRepo) Upsert(ctx context.Context, inv *types.Invoice) error {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO invoices
		   (id, user_id, stripe_invoice_id, stripe_customer_id, status,
		    amount_due_cents, period_start, period_end, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		 ON CONFLICT (stripe_invoice_id) DO UPDATE SET
		   status           = EXCLUDED.status,
		   amount_due_cents = EXCLUDED.amount_due_cents,
		   period_start     = EXCLUDED.period_start,
		   period_end       = EXCLUDED.period_end`,
		inv.ID, inv.UserID, inv.StripeInvoiceID, inv.StripeCustomerID,
		inv.Status, inv.AmountDueCents, inv.PeriodStart, inv.PeriodEnd,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert invoice", err)
	}
	return nil
}

// MarkPaid transitions the invoice to PAID and stamps paid_at.
func (r *InvoiceRepo) MarkPaid(ctx context.Context, stripeInvoiceID string, paidAt time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE invoices SET status = $2, paid_at = $3
		 WHERE stripe_invoice_id = $1`,
		stripeInvoiceID, types.InvoicePaid, paidAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark invoice paid", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(
			types.ErrCodeNotFoundInvoice,
			fmt.Sprintf("no invoice row for Stripe invoice %s", stripeInvoiceID),
			nil,
		)
	}
	return nil
}
