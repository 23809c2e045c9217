package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/money"
	"github.com/angelmondragon/marketplace-backend/pkg/types"
)

// OrderGroup is the buyer-level aggregate of one checkout attempt.
type OrderGroup struct {
	ID                      uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerUserID             uuid.UUID              `gorm:"column:buyer_user_id;type:uuid;not null"`
	BuyerEmail              string                 `gorm:"column:buyer_email;not null"`
	BuyerFullName           *string                `gorm:"column:buyer_full_name"`
	CurrencyCode            string                 `gorm:"column:currency_code;type:char(3);not null"`
	BillingAddress          types.Address          `gorm:"column:billing_address;type:jsonb"`
	ShippingAddress         types.Address          `gorm:"column:shipping_address;type:jsonb"`
	ContactPhone            *string                `gorm:"column:contact_phone"`
	Notes                   types.JSONMap          `gorm:"column:notes;type:jsonb"`
	Metadata                types.JSONMap          `gorm:"column:metadata;type:jsonb"`
	CartSnapshot            types.JSONMap          `gorm:"column:cart_snapshot;type:jsonb"`
	ItemsSubtotalAmount     money.Amount           `gorm:"column:items_subtotal_amount;type:numeric(12,2);not null"`
	ItemsTaxAmount          money.Amount           `gorm:"column:items_tax_amount;type:numeric(12,2);not null"`
	ShippingAmount          money.Amount           `gorm:"column:shipping_amount;type:numeric(12,2);not null"`
	DiscountAmount          money.Amount           `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	TotalAmount             money.Amount           `gorm:"column:total_amount;type:numeric(12,2);not null"`
	AmountPaid              money.Amount           `gorm:"column:amount_paid;type:numeric(12,2);not null"`
	ItemsCount              int                    `gorm:"column:items_count;not null"`
	SellerCount             int                    `gorm:"column:seller_count;not null"`
	Status                  enums.OrderGroupStatus `gorm:"column:status;type:order_group_status;not null;default:'pending'"`
	StripeCheckoutSessionID *string                `gorm:"column:stripe_checkout_session_id"`
	StripePaymentIntentID   *string                `gorm:"column:stripe_payment_intent_id"`
	Orders                  []Order                `gorm:"foreignKey:OrderGroupID;constraint:OnDelete:CASCADE"`
	PlacedAt                *time.Time             `gorm:"column:placed_at"`
	PaidAt                  *time.Time             `gorm:"column:paid_at"`
	CancelledAt             *time.Time             `gorm:"column:cancelled_at"`
	CreatedAt               time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
