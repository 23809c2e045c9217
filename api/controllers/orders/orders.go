package orders

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/api/middleware"
	"github.com/angelmondragon/marketplace-backend/api/responses"
	"github.com/angelmondragon/marketplace-backend/api/validators"
	internalorders "github.com/angelmondragon/marketplace-backend/internal/orders"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

type Shipper interface {
	Ship(ctx context.Context, tenantID, orderID uuid.UUID, input internalorders.ShipInput) (*models.Order, error)
}

type shipRequest struct {
	Carrier        string `json:"carrier" validate:"required,max=32"`
	TrackingNumber string `json:"trackingNumber" validate:"required,max=64"`
	TrackingURL    string `json:"trackingUrl,omitempty" validate:"omitempty,max=2048"`
	ShippingMethod string `json:"shippingMethod,omitempty" validate:"omitempty,max=64"`
}

type shipResponse struct {
	OrderID        uuid.UUID  `json:"orderId"`
	Status         string     `json:"status"`
	ShippingMethod *string    `json:"shippingMethod,omitempty"`
	TrackingNumber *string    `json:"trackingNumber,omitempty"`
	TrackingURL    *string    `json:"trackingUrl,omitempty"`
	ShippedAt      *time.Time `json:"shippedAt,omitempty"`
}

// Ship records carrier tracking for one of the seller's orders.
func Ship(svc Shipper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ship service unavailable"))
			return
		}

		claims, ok := middleware.ClaimsFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "Authentication required."))
			return
		}
		if claims.TenantID == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "seller context required"))
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload shipRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Ship(r.Context(), *claims.TenantID, orderID, internalorders.ShipInput{
			ActorUserID:    claims.UserID,
			Carrier:        payload.Carrier,
			TrackingNumber: payload.TrackingNumber,
			TrackingURL:    payload.TrackingURL,
			ShippingMethod: payload.ShippingMethod,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, shipResponse{
			OrderID:        order.ID,
			Status:         string(order.Status),
			ShippingMethod: order.ShippingMethod,
			TrackingNumber: order.TrackingNumber,
			TrackingURL:    order.TrackingURL,
			ShippedAt:      order.ShippedAt,
		})
	}
}
