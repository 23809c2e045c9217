package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/pkg/money"
	"github.com/angelmondragon/marketplace-backend/pkg/types"
)

const reconcileSQL = `SELECT order_group_id, applied, orders_updated
FROM reconcile_order_group_payment(?, ?, ?, ?, ?, ?, ?, ?::jsonb)`

// ReconcileParams are the processor facts recorded for one webhook event.
type ReconcileParams struct {
	OrderGroupID    uuid.UUID
	PaymentIntentID *string
	WebhookEventID  string
	EventCreatedAt  time.Time
	AmountTotal     money.Amount
	CurrencyCode    string
	EventType       string
	Metadata        types.JSONMap
}

// ReconcileResult mirrors the row returned by reconcile_order_group_payment.
// Applied is false when the event id had already been recorded.
type ReconcileResult struct {
	OrderGroupID  uuid.UUID `gorm:"column:order_group_id"`
	Applied       bool      `gorm:"column:applied"`
	OrdersUpdated int       `gorm:"column:orders_updated"`
}

// ReconcilePayment runs the payment ledger insert and status transition in one database call.
func (r *repository) ReconcilePayment(ctx context.Context, params ReconcileParams) (*ReconcileResult, error) {
	if params.OrderGroupID == uuid.Nil {
		return nil, errors.New("order group id required")
	}
	if params.WebhookEventID == "" {
		return nil, errors.New("webhook event id required")
	}
	metadata := params.Metadata
	if metadata == nil {
		metadata = types.JSONMap{}
	}

	var rows []ReconcileResult
	err := r.db.WithContext(ctx).
		Raw(reconcileSQL,
			params.OrderGroupID,
			params.PaymentIntentID,
			params.WebhookEventID,
			params.EventCreatedAt.UTC(),
			params.AmountTotal,
			params.CurrencyCode,
			params.EventType,
			metadata,
		).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("reconcile_order_group_payment returned no rows")
	}
	return &rows[0], nil
}
