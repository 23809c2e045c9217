package helpers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/money"
	"github.com/angelmondragon/marketplace-backend/pkg/types"
)

// ErrInvalidCartLine is returned when a cart line cannot be priced.
var ErrInvalidCartLine = errors.New("invalid cart line")

// NormalizedItem is a cart line with every monetary figure resolved to two decimals.
type NormalizedItem struct {
	CartItemID   uuid.UUID
	TenantID     uuid.UUID
	ProductID    uuid.UUID
	ProductName  string
	ProductSlug  *string
	ProductSKU   *string
	Quantity     int
	CurrencyCode string
	VatRate      decimal.Decimal
	UnitNet      money.Amount
	UnitTax      money.Amount
	UnitGross    money.Amount
	SubtotalNet  money.Amount
	TaxAmount    money.Amount
	TotalGross   money.Amount
	Metadata     types.JSONMap
}

// VatRateString renders the rate the way order_items stores it.
func (n NormalizedItem) VatRateString() string {
	return n.VatRate.StringFixed(2)
}

func invalidLine(item models.CartItem, reason string) error {
	return fmt.Errorf("%w: cart item %s %s", ErrInvalidCartLine, item.ID, reason)
}

// NormalizeCartItems prices every line; the first bad line fails the whole cart.
func NormalizeCartItems(items []models.CartItem) ([]NormalizedItem, error) {
	out := make([]NormalizedItem, 0, len(items))
	for _, item := range items {
		normalized, err := normalizeCartItem(item)
		if err != nil {
			return nil, err
		}
		out = append(out, normalized)
	}
	return out, nil
}

func normalizeCartItem(item models.CartItem) (NormalizedItem, error) {
	if item.TenantID == nil || *item.TenantID == uuid.Nil {
		return NormalizedItem{}, invalidLine(item, "is missing tenant context")
	}
	if item.ProductID == uuid.Nil {
		return NormalizedItem{}, invalidLine(item, "is missing product reference")
	}
	if item.Product == nil {
		return NormalizedItem{}, invalidLine(item, "product snapshot is unavailable")
	}
	if item.Quantity <= 0 {
		return NormalizedItem{}, invalidLine(item, "quantity is invalid")
	}
	price, ok := positiveDecimal(item.UnitPrice)
	if !ok {
		return NormalizedItem{}, invalidLine(item, "price is invalid")
	}

	vat := vatRate(item.Product.VatRate)
	unitNet := money.Round(price)
	unitTax := unitNet.Percent(vat)
	unitGross := unitNet.Add(unitTax)
	subtotalNet := unitNet.MulInt(item.Quantity)
	taxAmount := unitTax.MulInt(item.Quantity)

	// Codes are compared as stored; a lower-case line never matches its cart.
	currency := item.CurrencyCode
	if currency == "" {
		currency = item.Product.CurrencyCode
	}

	return NormalizedItem{
		CartItemID:   item.ID,
		TenantID:     *item.TenantID,
		ProductID:    item.ProductID,
		ProductName:  item.Product.Name,
		ProductSlug:  item.Product.Slug,
		ProductSKU:   item.Product.SKU,
		Quantity:     item.Quantity,
		CurrencyCode: currency,
		VatRate:      vat,
		UnitNet:      unitNet,
		UnitTax:      unitTax,
		UnitGross:    unitGross,
		SubtotalNet:  subtotalNet,
		TaxAmount:    taxAmount,
		TotalGross:   subtotalNet.Add(taxAmount),
		Metadata:     item.Metadata.Clone(),
	}, nil
}

func positiveDecimal(raw *string) (decimal.Decimal, bool) {
	if raw == nil {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.TrimSpace(*raw))
	if err != nil || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}

// vatRate falls back to zero for absent, malformed or negative rates.
func vatRate(raw *string) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.TrimSpace(*raw))
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}
