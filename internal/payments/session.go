// Package payments opens hosted Stripe checkout sessions for order groups.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/marketplace-backend/internal/checkout/helpers"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

// ErrPaymentSession wraps every failure to open a hosted session.
var ErrPaymentSession = errors.New("payment session creation failed")

var paymentMethodTypes = []string{"card", "blik", "p24"}

// SessionCreator is the subset of the Stripe API the initiator calls.
type SessionCreator interface {
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionCreateParams) (*stripe.CheckoutSession, error)
}

// SessionRequest describes one order group to be paid in a single hosted session.
type SessionRequest struct {
	OrderGroupID  uuid.UUID
	Items         []helpers.NormalizedItem
	SellerCount   int
	ItemsCount    int
	CurrencyCode  string
	Locale        string
	CustomerEmail string
}

// Session is the processor's answer to a session request.
type Session struct {
	ID              string
	URL             string
	PaymentIntentID *string
}

// SessionInitiator turns an order group into a Stripe checkout session.
type SessionInitiator struct {
	creator SessionCreator
	origin  string
	logg    *logger.Logger
}

// NewSessionInitiator binds the initiator to the public site origin used for redirect URLs.
func NewSessionInitiator(creator SessionCreator, siteOrigin string, logg *logger.Logger) (*SessionInitiator, error) {
	if creator == nil {
		return nil, errors.New("stripe session creator required")
	}
	origin := strings.TrimRight(strings.TrimSpace(siteOrigin), "/")
	if origin == "" {
		return nil, errors.New("site origin required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &SessionInitiator{creator: creator, origin: origin, logg: logg}, nil
}

// Create opens the session. There is no retry; the caller compensates on error.
func (s *SessionInitiator) Create(ctx context.Context, req SessionRequest) (*Session, error) {
	if req.OrderGroupID == uuid.Nil {
		return nil, fmt.Errorf("%w: order group id required", ErrPaymentSession)
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: no line items", ErrPaymentSession)
	}

	params := s.buildParams(req)
	cs, err := s.creator.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentSession, err)
	}
	if cs == nil || cs.ID == "" {
		return nil, fmt.Errorf("%w: empty session returned", ErrPaymentSession)
	}

	session := &Session{ID: cs.ID, URL: cs.URL}
	if cs.PaymentIntent != nil && cs.PaymentIntent.ID != "" {
		id := cs.PaymentIntent.ID
		session.PaymentIntentID = &id
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_group_id":    req.OrderGroupID.String(),
		"stripe_session_id": cs.ID,
		"line_items":        len(params.LineItems),
	})
	s.logg.Info(ctx, "checkout.session_created")
	return session, nil
}

// SuccessURL is where the processor returns a buyer after paying.
func (s *SessionInitiator) SuccessURL(locale string, groupID uuid.UUID) string {
	return fmt.Sprintf("%s/%s/checkout/success?order=%s", s.origin, locale, groupID)
}

// CancelURL is where the processor returns a buyer who abandons the session.
func (s *SessionInitiator) CancelURL(locale string, groupID uuid.UUID) string {
	return fmt.Sprintf("%s/%s/checkout/cancel?order=%s", s.origin, locale, groupID)
}

func (s *SessionInitiator) buildParams(req SessionRequest) *stripe.CheckoutSessionCreateParams {
	groupID := req.OrderGroupID.String()
	params := &stripe.CheckoutSessionCreateParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice(paymentMethodTypes),
		LineItems:          buildLineItems(req.Items),
		ClientReferenceID:  stripe.String(groupID),
		SuccessURL:         stripe.String(s.SuccessURL(req.Locale, req.OrderGroupID)),
		CancelURL:          stripe.String(s.CancelURL(req.Locale, req.OrderGroupID)),
		Metadata: map[string]string{
			"order_group_id": groupID,
			"seller_count":   strconv.Itoa(req.SellerCount),
			"item_count":     strconv.Itoa(req.ItemsCount),
			"currency_code":  strings.ToUpper(req.CurrencyCode),
		},
	}
	if req.Locale != "" {
		params.Locale = stripe.String(req.Locale)
	}
	if email := strings.TrimSpace(req.CustomerEmail); email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	return params
}

func buildLineItems(items []helpers.NormalizedItem) []*stripe.CheckoutSessionCreateLineItemParams {
	out := make([]*stripe.CheckoutSessionCreateLineItemParams, 0, len(items))
	for _, item := range items {
		out = append(out, &stripe.CheckoutSessionCreateLineItemParams{
			Quantity: stripe.Int64(int64(item.Quantity)),
			PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(item.CurrencyCode)),
				UnitAmount: stripe.Int64(item.UnitGross.ToMinorUnits()),
				ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
					Name: stripe.String(item.ProductName),
					Metadata: map[string]string{
						"product_id": item.ProductID.String(),
						"tenant_id":  item.TenantID.String(),
						"vat_rate":   item.VatRateString(),
					},
				},
			},
		})
	}
	return out
}
