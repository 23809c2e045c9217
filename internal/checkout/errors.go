package checkout

import (
	"errors"
	"fmt"

	"github.com/angelmondragon/marketplace-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
)

var (
	ErrUnauthenticated     = errors.New("checkout: unauthenticated")
	ErrEmptyCart           = errors.New("checkout: cart is empty")
	ErrUnsupportedCurrency = errors.New("checkout: unsupported currency")
	ErrInvalidCart         = errors.New("checkout: invalid cart")
	ErrPersistence         = errors.New("checkout: persistence failure")
	ErrPaymentSession      = payments.ErrPaymentSession
)

// Buyer-facing messages.
const (
	msgAuthRequired        = "Authentication required."
	msgLoadCart            = "Unable to load cart."
	msgEmptyCart           = "Cart is empty."
	msgNoItems             = "Cart does not contain any items."
	msgUnsupportedCurrency = "Unsupported currency for checkout."
	msgInvalidCart         = "Cart is invalid or stale."
	msgNoSellers           = "Unable to create order without seller data."
	msgGroupInsert         = "Unable to create order group."
	msgOrdersInsert        = "Unable to create seller orders."
	msgItemsInsert         = "Unable to finalise order items."
	msgPaymentSession      = "Unable to create checkout session."
)

// Compensation tags written to order_groups.metadata.error.
const (
	reasonOrdersInsert  = "orders_insert_failed"
	reasonItemsInsert   = "order_items_insert_failed"
	reasonStripeSession = "stripe_session_failed"
)

func fail(code pkgerrors.Code, sentinel, cause error, message string) *pkgerrors.Error {
	if cause == nil {
		return pkgerrors.Wrap(code, sentinel, message)
	}
	return pkgerrors.Wrap(code, fmt.Errorf("%w: %w", sentinel, cause), message)
}
