package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/pkg/money"
	"github.com/angelmondragon/marketplace-backend/pkg/types"
)

// PaymentEvent records each processor event applied to an order group.
// WebhookEventID is unique; a second insert for the same event is a no-op.
type PaymentEvent struct {
	ID              uuid.UUID     `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WebhookEventID  string        `gorm:"column:webhook_event_id;not null;uniqueIndex"`
	OrderGroupID    uuid.UUID     `gorm:"column:order_group_id;type:uuid;not null"`
	PaymentIntentID *string       `gorm:"column:payment_intent_id"`
	EventType       string        `gorm:"column:event_type;not null"`
	Amount          money.Amount  `gorm:"column:amount;type:numeric(12,2);not null"`
	CurrencyCode    string        `gorm:"column:currency_code;type:char(3);not null"`
	EventCreatedAt  time.Time     `gorm:"column:event_created_at;not null"`
	Metadata        types.JSONMap `gorm:"column:metadata;type:jsonb"`
	AppliedAt       time.Time     `gorm:"column:applied_at;autoCreateTime"`
}
