package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/types"
)

// Cart is the buyer's single active basket.
type Cart struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID        `gorm:"column:user_id;type:uuid;not null"`
	CurrencyCode string           `gorm:"column:currency_code;type:char(3);not null;default:'PLN'"`
	Status       enums.CartStatus `gorm:"column:status;type:text;not null;default:'active'"`
	Metadata     types.JSONMap    `gorm:"column:metadata;type:jsonb"`
	Items        []CartItem       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// CartItem is one product line. TenantID, UnitPrice and CurrencyCode are
// captured when the line is added; Product is the joined catalog snapshot.
// UnitPrice stays raw numeric text so checkout can reject malformed rows.
type CartItem struct {
	ID           uuid.UUID     `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID       uuid.UUID     `gorm:"column:cart_id;type:uuid;not null"`
	TenantID     *uuid.UUID    `gorm:"column:tenant_id;type:uuid"`
	ProductID    uuid.UUID     `gorm:"column:product_id;type:uuid;not null"`
	Quantity     int           `gorm:"column:quantity;not null"`
	UnitPrice    *string       `gorm:"column:unit_price;type:numeric(12,2)"`
	CurrencyCode string        `gorm:"column:currency_code;type:char(3);not null;default:'PLN'"`
	Metadata     types.JSONMap `gorm:"column:metadata;type:jsonb"`
	Product      *Product      `gorm:"foreignKey:ProductID;references:ID"`
	CreatedAt    time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

// Product is the catalog entry a cart line points at.
type Product struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID     uuid.UUID `gorm:"column:tenant_id;type:uuid;not null"`
	Name         string    `gorm:"column:name;not null"`
	Slug         *string   `gorm:"column:slug"`
	SKU          *string   `gorm:"column:sku"`
	Price        string    `gorm:"column:price;type:numeric(12,2);not null"`
	VatRate      *string   `gorm:"column:vat_rate;type:numeric(5,2)"`
	CurrencyCode string    `gorm:"column:currency_code;type:char(3);not null;default:'PLN'"`
	IsActive     bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
