package helpers

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/marketplace-backend/pkg/money"
)

// ErrEmptySellerSet is returned when items were supplied but no seller came out of them.
var ErrEmptySellerSet = errors.New("cart produced no sellers")

// SellerAggregation is one seller's share of a checkout.
type SellerAggregation struct {
	TenantID    uuid.UUID
	Items       []NormalizedItem
	SubtotalNet money.Amount
	TaxAmount   money.Amount
	TotalGross  money.Amount
	ItemsCount  int
}

// CartItemIDs lists the cart lines that belong to the seller.
func (s SellerAggregation) CartItemIDs() []string {
	ids := make([]string, 0, len(s.Items))
	for _, item := range s.Items {
		ids = append(ids, item.CartItemID.String())
	}
	return ids
}

// GroupAggregation is the buyer-level view across sellers.
type GroupAggregation struct {
	Sellers     []SellerAggregation
	SubtotalNet money.Amount
	TaxAmount   money.Amount
	TotalGross  money.Amount
	ItemsCount  int
}

// SellerCount is the number of orders the group will split into.
func (g GroupAggregation) SellerCount() int {
	return len(g.Sellers)
}

type sellerAccumulator struct {
	tenantID uuid.UUID
	items    []NormalizedItem
	subtotal decimal.Decimal
	tax      decimal.Decimal
	total    decimal.Decimal
	quantity int
}

// AggregateBySeller partitions items per tenant in first-seen order.
// Seller sums are rounded once; group totals are the rounded sum of seller totals.
func AggregateBySeller(items []NormalizedItem) (GroupAggregation, error) {
	order := make([]uuid.UUID, 0)
	byTenant := make(map[uuid.UUID]*sellerAccumulator)
	for _, item := range items {
		acc, ok := byTenant[item.TenantID]
		if !ok {
			acc = &sellerAccumulator{tenantID: item.TenantID}
			byTenant[item.TenantID] = acc
			order = append(order, item.TenantID)
		}
		acc.items = append(acc.items, item)
		acc.subtotal = acc.subtotal.Add(item.SubtotalNet.Decimal())
		acc.tax = acc.tax.Add(item.TaxAmount.Decimal())
		acc.total = acc.total.Add(item.TotalGross.Decimal())
		acc.quantity += item.Quantity
	}

	if len(items) > 0 && len(order) == 0 {
		return GroupAggregation{}, ErrEmptySellerSet
	}

	group := GroupAggregation{Sellers: make([]SellerAggregation, 0, len(order))}
	subtotals := make([]money.Amount, 0, len(order))
	taxes := make([]money.Amount, 0, len(order))
	totals := make([]money.Amount, 0, len(order))
	for _, tenantID := range order {
		acc := byTenant[tenantID]
		seller := SellerAggregation{
			TenantID:    tenantID,
			Items:       acc.items,
			SubtotalNet: money.Round(acc.subtotal),
			TaxAmount:   money.Round(acc.tax),
			TotalGross:  money.Round(acc.total),
			ItemsCount:  acc.quantity,
		}
		group.Sellers = append(group.Sellers, seller)
		subtotals = append(subtotals, seller.SubtotalNet)
		taxes = append(taxes, seller.TaxAmount)
		totals = append(totals, seller.TotalGross)
		group.ItemsCount += seller.ItemsCount
	}
	group.SubtotalNet = money.Sum(subtotals...)
	group.TaxAmount = money.Sum(taxes...)
	group.TotalGross = money.Sum(totals...)
	return group, nil
}
