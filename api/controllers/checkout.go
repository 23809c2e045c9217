package controllers

import (
	"net/http"

	"github.com/angelmondragon/marketplace-backend/api/middleware"
	"github.com/angelmondragon/marketplace-backend/api/responses"
	"github.com/angelmondragon/marketplace-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/marketplace-backend/internal/checkout"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

// CheckoutSession turns the buyer's active cart into an order group and
// returns the hosted payment session.
func CheckoutSession(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		// Buyer fields are capped and defaulted by the service, never rejected.
		payload, err := validators.DecodeLooseJSONObject(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Execute(r.Context(), checkoutsvc.CheckoutInput{
			Buyer:           buyerFromRequest(r),
			Locale:          stringField(payload, "locale"),
			ShippingAddress: objectField(payload, "shippingAddress"),
			BillingAddress:  objectField(payload, "billingAddress"),
			ContactPhone:    stringField(payload, "contactPhone"),
			BuyerNote:       stringField(payload, "buyerNote"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// buyerFromRequest returns nil when no verified claims are attached; the
// service answers that with UNAUTHORIZED.
func buyerFromRequest(r *http.Request) *checkoutsvc.Buyer {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return nil
	}
	return &checkoutsvc.Buyer{
		UserID:        claims.UserID,
		Email:         claims.Email,
		FullName:      claims.FullName,
		DefaultLocale: claims.Locale,
	}
}

// stringField returns nil for absent or non-string values.
func stringField(payload map[string]any, key string) *string {
	value, ok := payload[key].(string)
	if !ok {
		return nil
	}
	return &value
}

func objectField(payload map[string]any, key string) map[string]any {
	value, _ := payload[key].(map[string]any)
	return value
}
