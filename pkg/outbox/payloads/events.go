package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/pkg/money"
)

// OrderGroupAwaitingPaymentEvent is emitted once the hosted payment session exists.
type OrderGroupAwaitingPaymentEvent struct {
	OrderGroupID    uuid.UUID    `json:"order_group_id"`
	OrderIDs        []uuid.UUID  `json:"order_ids"`
	BuyerUserID     uuid.UUID    `json:"buyer_user_id"`
	CheckoutSession string       `json:"checkout_session_id"`
	TotalAmount     money.Amount `json:"total_amount"`
	CurrencyCode    string       `json:"currency_code"`
	SellerCount     int          `json:"seller_count"`
	ItemsCount      int          `json:"items_count"`
}

// OrderGroupPaidEvent is emitted when a processor event is newly applied to a group.
type OrderGroupPaidEvent struct {
	OrderGroupID    uuid.UUID    `json:"order_group_id"`
	WebhookEventID  string       `json:"webhook_event_id"`
	PaymentIntentID string       `json:"payment_intent_id,omitempty"`
	AmountPaid      money.Amount `json:"amount_paid"`
	CurrencyCode    string       `json:"currency_code"`
	OrdersUpdated   int          `json:"orders_updated"`
	PaidAt          time.Time    `json:"paid_at"`
}

// OrderShippedEvent is emitted when a seller records tracking for an order.
type OrderShippedEvent struct {
	OrderID        uuid.UUID `json:"order_id"`
	OrderGroupID   uuid.UUID `json:"order_group_id"`
	TenantID       uuid.UUID `json:"tenant_id"`
	BuyerUserID    uuid.UUID `json:"buyer_user_id"`
	Carrier        string    `json:"carrier"`
	TrackingNumber string    `json:"tracking_number"`
	TrackingURL    string    `json:"tracking_url,omitempty"`
	ShippedAt      time.Time `json:"shipped_at"`
}

// OrderGroupCancelledEvent is emitted when a failed checkout attempt is compensated.
type OrderGroupCancelledEvent struct {
	OrderGroupID uuid.UUID   `json:"order_group_id"`
	OrderIDs     []uuid.UUID `json:"order_ids,omitempty"`
	Reason       string      `json:"reason"`
	CancelledAt  time.Time   `json:"cancelled_at"`
}

// AggregateKey returns the id every payload must share with its outbox row.
func (e OrderGroupAwaitingPaymentEvent) AggregateKey() uuid.UUID { return e.OrderGroupID }

func (e OrderGroupPaidEvent) AggregateKey() uuid.UUID { return e.OrderGroupID }

func (e OrderGroupCancelledEvent) AggregateKey() uuid.UUID { return e.OrderGroupID }

func (e OrderShippedEvent) AggregateKey() uuid.UUID { return e.OrderID }
