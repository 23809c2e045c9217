package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/money"
	"github.com/angelmondragon/marketplace-backend/pkg/types"
)

// Order is one seller's slice of an OrderGroup.
type Order struct {
	ID                  uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderGroupID        uuid.UUID         `gorm:"column:order_group_id;type:uuid;not null"`
	TenantID            uuid.UUID         `gorm:"column:tenant_id;type:uuid;not null"`
	BuyerUserID         uuid.UUID         `gorm:"column:buyer_user_id;type:uuid;not null"`
	BuyerEmail          string            `gorm:"column:buyer_email;not null"`
	BuyerFullName       *string           `gorm:"column:buyer_full_name"`
	CurrencyCode        string            `gorm:"column:currency_code;type:char(3);not null"`
	BillingAddress      types.Address     `gorm:"column:billing_address;type:jsonb"`
	ShippingAddress     types.Address     `gorm:"column:shipping_address;type:jsonb"`
	ContactPhone        *string           `gorm:"column:contact_phone"`
	BuyerNote           *string           `gorm:"column:buyer_note"`
	SellerNote          *string           `gorm:"column:seller_note"`
	Metadata            types.JSONMap     `gorm:"column:metadata;type:jsonb"`
	ItemsSubtotalAmount money.Amount      `gorm:"column:items_subtotal_amount;type:numeric(12,2);not null"`
	ItemsTaxAmount      money.Amount      `gorm:"column:items_tax_amount;type:numeric(12,2);not null"`
	ShippingAmount      money.Amount      `gorm:"column:shipping_amount;type:numeric(12,2);not null"`
	DiscountAmount      money.Amount      `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	TotalAmount         money.Amount      `gorm:"column:total_amount;type:numeric(12,2);not null"`
	ItemsCount          int               `gorm:"column:items_count;not null"`
	Status              enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	ShippingMethod      *string           `gorm:"column:shipping_method"`
	TrackingNumber      *string           `gorm:"column:tracking_number"`
	TrackingURL         *string           `gorm:"column:tracking_url"`
	Items               []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	PaidAt              *time.Time        `gorm:"column:paid_at"`
	ShippedAt           *time.Time        `gorm:"column:shipped_at"`
	CreatedAt           time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem is an immutable snapshot of one purchased cart line.
type OrderItem struct {
	ID             uuid.UUID     `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID     `gorm:"column:order_id;type:uuid;not null"`
	TenantID       uuid.UUID     `gorm:"column:tenant_id;type:uuid;not null"`
	ProductID      uuid.UUID     `gorm:"column:product_id;type:uuid;not null"`
	ProductName    string        `gorm:"column:product_name;not null"`
	ProductSlug    *string       `gorm:"column:product_slug"`
	ProductSKU     *string       `gorm:"column:product_sku"`
	Quantity       int           `gorm:"column:quantity;not null"`
	UnitPrice      money.Amount  `gorm:"column:unit_price;type:numeric(12,2);not null"`
	VatRate        string        `gorm:"column:vat_rate;type:numeric(5,2);not null"`
	SubtotalAmount money.Amount  `gorm:"column:subtotal_amount;type:numeric(12,2);not null"`
	TaxAmount      money.Amount  `gorm:"column:tax_amount;type:numeric(12,2);not null"`
	TotalAmount    money.Amount  `gorm:"column:total_amount;type:numeric(12,2);not null"`
	CurrencyCode   string        `gorm:"column:currency_code;type:char(3);not null"`
	Metadata       types.JSONMap `gorm:"column:metadata;type:jsonb"`
	CreatedAt      time.Time     `gorm:"column:created_at;autoCreateTime"`
}
