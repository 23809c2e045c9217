package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/marketplace-backend/internal/checkout/helpers"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/money"
)

type stubCreator struct {
	params *stripe.CheckoutSessionCreateParams
	resp   *stripe.CheckoutSession
	err    error
}

func (s *stubCreator) CreateCheckoutSession(_ context.Context, params *stripe.CheckoutSessionCreateParams) (*stripe.CheckoutSession, error) {
	s.params = params
	return s.resp, s.err
}

func lampItem() helpers.NormalizedItem {
	return helpers.NormalizedItem{
		TenantID:     uuid.New(),
		ProductID:    uuid.New(),
		ProductName:  "Lamp",
		Quantity:     2,
		CurrencyCode: "PLN",
		VatRate:      decimal.NewFromInt(23),
		UnitNet:      money.MustParse("120"),
		UnitTax:      money.MustParse("27.60"),
		UnitGross:    money.MustParse("147.60"),
		SubtotalNet:  money.MustParse("240"),
		TaxAmount:    money.MustParse("55.20"),
		TotalGross:   money.MustParse("295.20"),
	}
}

func TestCreateBuildsOneSessionPerGroup(t *testing.T) {
	creator := &stubCreator{resp: &stripe.CheckoutSession{
		ID:            "cs_test_1",
		URL:           "https://checkout.stripe.com/c/pay/cs_test_1",
		PaymentIntent: &stripe.PaymentIntent{ID: "pi_1"},
	}}
	initiator, err := NewSessionInitiator(creator, "https://shop.example.com/", logger.Nop())
	require.NoError(t, err)

	groupID := uuid.New()
	item := lampItem()
	session, err := initiator.Create(context.Background(), SessionRequest{
		OrderGroupID:  groupID,
		Items:         []helpers.NormalizedItem{item},
		SellerCount:   1,
		ItemsCount:    2,
		CurrencyCode:  "pln",
		Locale:        "pl",
		CustomerEmail: "buyer@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", session.ID)
	require.NotNil(t, session.PaymentIntentID)
	assert.Equal(t, "pi_1", *session.PaymentIntentID)

	params := creator.params
	require.NotNil(t, params)
	assert.Equal(t, "payment", *params.Mode)
	assert.Equal(t, groupID.String(), *params.ClientReferenceID)
	assert.Equal(t, "https://shop.example.com/pl/checkout/success?order="+groupID.String(), *params.SuccessURL)
	assert.Equal(t, "https://shop.example.com/pl/checkout/cancel?order="+groupID.String(), *params.CancelURL)
	assert.Equal(t, "buyer@example.com", *params.CustomerEmail)
	assert.Equal(t, map[string]string{
		"order_group_id": groupID.String(),
		"seller_count":   "1",
		"item_count":     "2",
		"currency_code":  "PLN",
	}, params.Metadata)

	require.Len(t, params.LineItems, 1)
	line := params.LineItems[0]
	assert.Equal(t, int64(2), *line.Quantity)
	assert.Equal(t, "pln", *line.PriceData.Currency)
	assert.Equal(t, int64(14760), *line.PriceData.UnitAmount)
	assert.Equal(t, "Lamp", *line.PriceData.ProductData.Name)
	assert.Equal(t, "23.00", line.PriceData.ProductData.Metadata["vat_rate"])
	assert.Equal(t, item.TenantID.String(), line.PriceData.ProductData.Metadata["tenant_id"])
}

func TestCreateWrapsProcessorFailure(t *testing.T) {
	creator := &stubCreator{err: errors.New("card_declined")}
	initiator, err := NewSessionInitiator(creator, "https://shop.example.com", nil)
	require.NoError(t, err)

	_, err = initiator.Create(context.Background(), SessionRequest{
		OrderGroupID: uuid.New(),
		Items:        []helpers.NormalizedItem{lampItem()},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPaymentSession)
	assert.Contains(t, err.Error(), "card_declined")
}

func TestCreateRejectsEmptySession(t *testing.T) {
	initiator, err := NewSessionInitiator(&stubCreator{resp: &stripe.CheckoutSession{}}, "https://shop.example.com", nil)
	require.NoError(t, err)

	_, err = initiator.Create(context.Background(), SessionRequest{
		OrderGroupID: uuid.New(),
		Items:        []helpers.NormalizedItem{lampItem()},
	})
	assert.ErrorIs(t, err, ErrPaymentSession)

	_, err = initiator.Create(context.Background(), SessionRequest{OrderGroupID: uuid.New()})
	assert.ErrorIs(t, err, ErrPaymentSession)
}

func TestNewSessionInitiatorValidates(t *testing.T) {
	_, err := NewSessionInitiator(nil, "https://shop.example.com", nil)
	assert.Error(t, err)
	_, err = NewSessionInitiator(&stubCreator{}, " ", nil)
	assert.Error(t, err)
}
