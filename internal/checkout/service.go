package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/internal/checkout/helpers"
	"github.com/angelmondragon/marketplace-backend/internal/orders"
	"github.com/angelmondragon/marketplace-backend/internal/payments"
	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/metrics"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/marketplace-backend/pkg/types"
)

const checkoutSource = "stripe_checkout_session"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartLoader interface {
	FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
}

type sessionInitiator interface {
	Create(ctx context.Context, req payments.SessionRequest) (*payments.Session, error)
}

// Service executes checkout orchestration.
type Service interface {
	Execute(ctx context.Context, input CheckoutInput) (*CheckoutResult, error)
}

// Buyer is the authenticated identity behind a checkout attempt.
type Buyer struct {
	UserID        uuid.UUID
	Email         string
	FullName      *string
	DefaultLocale *string
}

// CheckoutInput captures the buyer and the optional contact data sent with the request.
type CheckoutInput struct {
	Buyer           *Buyer
	Locale          *string
	ShippingAddress map[string]any
	BillingAddress  map[string]any
	ContactPhone    *string
	BuyerNote       *string
}

// CheckoutResult points the buyer at the hosted payment page.
type CheckoutResult struct {
	SessionID    string    `json:"sessionId"`
	URL          string    `json:"url"`
	OrderGroupID uuid.UUID `json:"orderGroupId"`
}

// ServiceParams wires the checkout dependencies.
type ServiceParams struct {
	TransactionRunner txRunner
	Carts             cartLoader
	Orders            orders.Repository
	Payments          sessionInitiator
	Outbox            outbox.Emitter
	Checkout          config.CheckoutConfig
	Metrics           *metrics.MarketMetrics
	Logger            *logger.Logger
}

type service struct {
	tx        txRunner
	carts     cartLoader
	orders    orders.Repository
	payments  sessionInitiator
	outbox    outbox.Emitter
	currency  string
	locale    string
	supported []string
	metrics   *metrics.MarketMetrics
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart loader required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment session initiator required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	currency := params.Checkout.SettlementCurrency()
	if currency == "" {
		currency = config.DefaultCheckoutCurrency
	}
	locale := strings.TrimSpace(params.Checkout.DefaultLocale)
	if locale == "" {
		locale = config.DefaultCheckoutLocale
	}
	supported := params.Checkout.SupportedLocales
	if len(supported) == 0 {
		supported = []string{locale}
	}
	return &service{
		tx:        params.TransactionRunner,
		carts:     params.Carts,
		orders:    params.Orders,
		payments:  params.Payments,
		outbox:    params.Outbox,
		currency:  currency,
		locale:    locale,
		supported: supported,
		metrics:   params.Metrics,
		logg:      logg,
		now:       time.Now,
	}, nil
}

// attempt carries the state of one checkout across its sequential writes.
type attempt struct {
	id       uuid.UUID
	buyer    *Buyer
	cart     *models.Cart
	items    []helpers.NormalizedItem
	agg      helpers.GroupAggregation
	locale   string
	metadata types.JSONMap
	group    *models.OrderGroup
	orders   []models.Order
}

// Execute validates the buyer's cart, writes one order group with a child
// order per seller, and opens a single hosted payment session for the group.
// Writes after the group insert are compensated by cancelling the group.
func (s *service) Execute(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	started := s.now()
	result, err := s.execute(ctx, input)
	outcome, reason := metrics.OutcomeSuccess, "ok"
	if err != nil {
		outcome, reason = classify(err)
	}
	s.metrics.ObserveCheckout(outcome, reason, s.now().Sub(started))
	return result, err
}

func (s *service) execute(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	if input.Buyer == nil || input.Buyer.UserID == uuid.Nil {
		return nil, fail(pkgerrors.CodeUnauthorized, ErrUnauthenticated, nil, msgAuthRequired)
	}
	at := &attempt{id: uuid.New(), buyer: input.Buyer}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"user_id":    at.buyer.UserID.String(),
		"attempt_id": at.id.String(),
	})

	if err := s.loadCart(ctx, at); err != nil {
		return nil, err
	}
	if err := s.priceCart(ctx, at); err != nil {
		return nil, err
	}
	at.locale = helpers.ResolveLocale(s.supported, s.locale, input.Locale, at.buyer.DefaultLocale)

	if err := s.insertGroup(ctx, at, input); err != nil {
		return nil, err
	}
	ctx = s.logg.WithOrderGroupID(ctx, at.group.ID.String())

	if err := s.insertOrders(ctx, at); err != nil {
		return nil, err
	}
	if err := s.insertItems(ctx, at); err != nil {
		return nil, err
	}

	session, err := s.payments.Create(ctx, payments.SessionRequest{
		OrderGroupID:  at.group.ID,
		Items:         at.items,
		SellerCount:   at.agg.SellerCount(),
		ItemsCount:    at.agg.ItemsCount,
		CurrencyCode:  at.cart.CurrencyCode,
		Locale:        at.locale,
		CustomerEmail: at.buyer.Email,
	})
	if err != nil {
		s.logg.Error(ctx, "checkout.stripe_session_failed", err)
		s.compensate(ctx, at, reasonStripeSession, err)
		return nil, fail(pkgerrors.CodeUpstream, ErrPaymentSession, err, msgPaymentSession)
	}

	s.markAwaitingPayment(ctx, at, session)

	return &CheckoutResult{
		SessionID:    session.ID,
		URL:          session.URL,
		OrderGroupID: at.group.ID,
	}, nil
}

func (s *service) loadCart(ctx context.Context, at *attempt) error {
	cart, err := s.carts.FindActiveByUser(ctx, at.buyer.UserID)
	if err != nil {
		if db.IsNotFound(err) {
			return fail(pkgerrors.CodeValidation, ErrEmptyCart, nil, msgEmptyCart)
		}
		s.logg.Error(ctx, "checkout.load_cart_failed", err)
		return fail(pkgerrors.CodeInternal, ErrPersistence, err, msgLoadCart)
	}
	if cart.CurrencyCode != s.currency {
		return fail(pkgerrors.CodeValidation, ErrUnsupportedCurrency, nil, msgUnsupportedCurrency).
			WithDetails(map[string]any{"currency": cart.CurrencyCode})
	}
	if len(cart.Items) == 0 {
		return fail(pkgerrors.CodeValidation, ErrEmptyCart, nil, msgNoItems)
	}
	at.cart = cart
	return nil
}

func (s *service) priceCart(ctx context.Context, at *attempt) error {
	items, err := helpers.NormalizeCartItems(at.cart.Items)
	if err == nil {
		err = helpers.EnsureSingleCurrency(items, at.cart.CurrencyCode)
	}
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "reason", err.Error()), "checkout.cart_validation_failed")
		return fail(pkgerrors.CodeValidation, ErrInvalidCart, err, msgInvalidCart)
	}
	agg, err := helpers.AggregateBySeller(items)
	if err != nil || agg.SellerCount() == 0 {
		return fail(pkgerrors.CodeValidation, ErrInvalidCart, err, msgNoSellers)
	}
	at.items = items
	at.agg = agg
	return nil
}

func (s *service) insertGroup(ctx context.Context, at *attempt, input CheckoutInput) error {
	shipping := helpers.SanitizeAddress(input.ShippingAddress)
	billing := helpers.SanitizeAddress(input.BillingAddress)
	phone := helpers.SanitizePhone(input.ContactPhone)
	note := helpers.SanitizeNote(input.BuyerNote)

	notes := types.JSONMap{}
	if note != nil {
		notes["buyer_note"] = *note
	}
	at.metadata = types.JSONMap{
		"locale":        at.locale,
		"seller_count":  at.agg.SellerCount(),
		"item_count":    at.agg.ItemsCount,
		"currency_code": at.cart.CurrencyCode,
		"source":        checkoutSource,
		"attempt_id":    at.id.String(),
	}

	group := &models.OrderGroup{
		BuyerUserID:         at.buyer.UserID,
		BuyerEmail:          at.buyer.Email,
		BuyerFullName:       at.buyer.FullName,
		CurrencyCode:        at.cart.CurrencyCode,
		BillingAddress:      billing,
		ShippingAddress:     shipping,
		ContactPhone:        phone,
		Notes:               notes,
		Metadata:            at.metadata.Clone(),
		CartSnapshot:        cartSnapshot(at.cart, at.items),
		ItemsSubtotalAmount: at.agg.SubtotalNet,
		ItemsTaxAmount:      at.agg.TaxAmount,
		TotalAmount:         at.agg.TotalGross,
		ItemsCount:          at.agg.ItemsCount,
		SellerCount:         at.agg.SellerCount(),
		Status:              enums.OrderGroupStatusPending,
	}
	if err := s.orders.CreateOrderGroup(ctx, group); err != nil {
		s.logg.Error(ctx, "checkout.order_group_insert_failed", err)
		return fail(pkgerrors.CodeInternal, ErrPersistence, err, msgGroupInsert)
	}
	at.group = group

	at.orders = make([]models.Order, 0, len(at.agg.Sellers))
	for _, seller := range at.agg.Sellers {
		at.orders = append(at.orders, models.Order{
			ID:                  uuid.New(),
			OrderGroupID:        group.ID,
			TenantID:            seller.TenantID,
			BuyerUserID:         group.BuyerUserID,
			BuyerEmail:          group.BuyerEmail,
			BuyerFullName:       group.BuyerFullName,
			BuyerNote:           note,
			ContactPhone:        phone,
			CurrencyCode:        group.CurrencyCode,
			BillingAddress:      billing,
			ShippingAddress:     shipping,
			Metadata:            types.JSONMap{"cart_item_ids": seller.CartItemIDs()},
			ItemsSubtotalAmount: seller.SubtotalNet,
			ItemsTaxAmount:      seller.TaxAmount,
			TotalAmount:         seller.TotalGross,
			ItemsCount:          seller.ItemsCount,
			Status:              enums.OrderStatusPending,
		})
	}
	return nil
}

func (s *service) insertOrders(ctx context.Context, at *attempt) error {
	if err := s.orders.CreateOrders(ctx, at.orders); err != nil {
		s.logg.Error(ctx, "checkout.orders_insert_failed", err)
		s.compensate(ctx, at, reasonOrdersInsert, err)
		return fail(pkgerrors.CodeInternal, ErrPersistence, err, msgOrdersInsert)
	}
	return nil
}

func (s *service) insertItems(ctx context.Context, at *attempt) error {
	orderByTenant := make(map[uuid.UUID]uuid.UUID, len(at.orders))
	for _, order := range at.orders {
		orderByTenant[order.TenantID] = order.ID
	}

	rows := make([]models.OrderItem, 0, len(at.items))
	var err error
	for _, item := range at.items {
		orderID, ok := orderByTenant[item.TenantID]
		if !ok {
			err = fmt.Errorf("missing order reference for tenant %s", item.TenantID)
			break
		}
		rows = append(rows, orderItem(orderID, item))
	}
	if err == nil {
		err = s.orders.CreateOrderItems(ctx, rows)
	}
	if err != nil {
		s.logg.Error(ctx, "checkout.order_items_insert_failed", err)
		s.compensate(ctx, at, reasonItemsInsert, err)
		return fail(pkgerrors.CodeInternal, ErrPersistence, err, msgItemsInsert)
	}
	return nil
}

// compensate cancels every row the attempt wrote. Each write runs on its own
// so one failing cancel does not stop the other; the combined error is logged.
func (s *service) compensate(ctx context.Context, at *attempt, reason string, cause error) {
	metadata := at.metadata.Clone()
	metadata["error"] = reason

	var errs error
	if reason != reasonOrdersInsert {
		if _, err := s.orders.CancelOrders(ctx, at.group.ID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("cancel orders: %w", err))
		}
	}
	if err := s.orders.CancelOrderGroup(ctx, at.group.ID, metadata); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("cancel order group: %w", err))
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"reason": reason, "cause": cause.Error()})
	if errs != nil {
		s.logg.Error(ctx, "checkout.compensation_failed", errs)
		return
	}

	orderIDs := make([]uuid.UUID, 0, len(at.orders))
	if reason != reasonOrdersInsert {
		for _, order := range at.orders {
			orderIDs = append(orderIDs, order.ID)
		}
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderGroupCancelled,
			AggregateType: enums.AggregateOrderGroup,
			AggregateID:   at.group.ID,
			Actor:         buyerActor(at.buyer),
			Data: payloads.OrderGroupCancelledEvent{
				OrderGroupID: at.group.ID,
				OrderIDs:     orderIDs,
				Reason:       reason,
				CancelledAt:  s.now().UTC(),
			},
		})
	})
	if err != nil {
		s.logg.Error(ctx, "checkout.cancel_event_failed", err)
		return
	}
	s.logg.Warn(ctx, "checkout.compensated")
}

// markAwaitingPayment is best-effort: the session already exists, so a
// failure here is logged and the buyer is still redirected to pay.
func (s *service) markAwaitingPayment(ctx context.Context, at *attempt, session *payments.Session) {
	metadata := at.metadata.Clone()
	metadata["stripe_session_id"] = session.ID
	metadata["stripe_checkout_url"] = nullable(session.URL)
	if session.PaymentIntentID != nil {
		metadata["stripe_payment_intent"] = *session.PaymentIntentID
	} else {
		metadata["stripe_payment_intent"] = nil
	}

	orderIDs := make([]uuid.UUID, 0, len(at.orders))
	for _, order := range at.orders {
		orderIDs = append(orderIDs, order.ID)
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.orders.WithTx(tx).MarkAwaitingPayment(ctx, at.group.ID, orders.SessionUpdate{
			SessionID:       session.ID,
			PaymentIntentID: session.PaymentIntentID,
			Metadata:        metadata,
		}); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderGroupAwaitingPayment,
			AggregateType: enums.AggregateOrderGroup,
			AggregateID:   at.group.ID,
			Actor:         buyerActor(at.buyer),
			Data: payloads.OrderGroupAwaitingPaymentEvent{
				OrderGroupID:    at.group.ID,
				OrderIDs:        orderIDs,
				BuyerUserID:     at.buyer.UserID,
				CheckoutSession: session.ID,
				TotalAmount:     at.agg.TotalGross,
				CurrencyCode:    at.cart.CurrencyCode,
				SellerCount:     at.agg.SellerCount(),
				ItemsCount:      at.agg.ItemsCount,
			},
		})
	})
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "checkout.mark_awaiting_payment_failed")
		return
	}
	s.logg.Info(s.logg.WithField(ctx, "stripe_session_id", session.ID), "checkout.session_ready")
}

func cartSnapshot(cart *models.Cart, items []helpers.NormalizedItem) types.JSONMap {
	lines := make([]map[string]any, 0, len(items))
	for _, item := range items {
		lines = append(lines, map[string]any{
			"cart_item_id": item.CartItemID.String(),
			"tenant_id":    item.TenantID.String(),
			"product_id":   item.ProductID.String(),
			"quantity":     item.Quantity,
			"unit_net":     item.UnitNet,
			"vat_rate":     item.VatRateString(),
			"subtotal_net": item.SubtotalNet,
			"tax_amount":   item.TaxAmount,
			"total_gross":  item.TotalGross,
		})
	}
	metadata := cart.Metadata
	if metadata == nil {
		metadata = types.JSONMap{}
	}
	return types.JSONMap{
		"cart_id":       cart.ID.String(),
		"currency_code": cart.CurrencyCode,
		"metadata":      metadata,
		"items":         lines,
	}
}

func orderItem(orderID uuid.UUID, item helpers.NormalizedItem) models.OrderItem {
	metadata := types.JSONMap{"cart_item_id": item.CartItemID.String()}
	if len(item.Metadata) > 0 {
		metadata["original_metadata"] = item.Metadata
	}
	return models.OrderItem{
		ID:             uuid.New(),
		OrderID:        orderID,
		TenantID:       item.TenantID,
		ProductID:      item.ProductID,
		ProductName:    item.ProductName,
		ProductSlug:    item.ProductSlug,
		ProductSKU:     item.ProductSKU,
		Quantity:       item.Quantity,
		UnitPrice:      item.UnitNet,
		VatRate:        item.VatRateString(),
		SubtotalAmount: item.SubtotalNet,
		TaxAmount:      item.TaxAmount,
		TotalAmount:    item.TotalGross,
		CurrencyCode:   item.CurrencyCode,
		Metadata:       metadata,
	}
}

func buyerActor(buyer *Buyer) *outbox.ActorRef {
	return outbox.BuyerActor(buyer.UserID)
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func classify(err error) (string, string) {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return metrics.OutcomeRejected, "unauthenticated"
	case errors.Is(err, ErrEmptyCart):
		return metrics.OutcomeRejected, "empty_cart"
	case errors.Is(err, ErrUnsupportedCurrency):
		return metrics.OutcomeRejected, "unsupported_currency"
	case errors.Is(err, ErrInvalidCart):
		return metrics.OutcomeRejected, "invalid_cart"
	case errors.Is(err, ErrPaymentSession):
		return metrics.OutcomeFailed, "payment_session"
	case errors.Is(err, ErrPersistence):
		return metrics.OutcomeFailed, "persistence"
	default:
		return metrics.OutcomeFailed, "unknown"
	}
}
