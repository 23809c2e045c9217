package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/internal/shipping"
	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/payloads"
)

// ShipInput is the seller's shipping update.
type ShipInput struct {
	ActorUserID    uuid.UUID
	Carrier        string
	TrackingNumber string
	TrackingURL    string
	ShippingMethod string
}

// ShipService records carrier tracking on paid orders.
type ShipService struct {
	repo   Repository
	tx     txRunner
	outbox outbox.Emitter
	now    func() time.Time
}

// NewShipService builds the ship flow.
func NewShipService(repo Repository, tx txRunner, emitter outbox.Emitter) (*ShipService, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &ShipService{repo: repo, tx: tx, outbox: emitter, now: time.Now}, nil
}

// Ship validates the carrier data and moves the seller's order to shipped.
func (s *ShipService) Ship(ctx context.Context, tenantID, orderID uuid.UUID, input ShipInput) (*models.Order, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "seller context missing")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order id")
	}

	shipment, err := shipping.ResolveShipment(input.Carrier, input.TrackingNumber, input.TrackingURL, input.ShippingMethod)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, shipmentErrorMessage(err))
	}

	var updated *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrderForTenant(ctx, orderID, tenantID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found or inaccessible")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if !order.Status.CanShip() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order must be paid before it can be marked as shipped").
				WithDetails(map[string]any{"status": order.Status})
		}

		shippedAt := s.now().UTC()
		update := ShipmentUpdate{
			ShippingMethod: shipment.ShippingMethod,
			TrackingNumber: shipment.TrackingNumber,
			TrackingURL:    shipment.TrackingURL,
			ShippedAt:      shippedAt,
		}
		if err := repo.UpdateShipment(ctx, order.ID, update); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to update order")
		}

		order.Status = enums.OrderStatusShipped
		order.ShippingMethod = &update.ShippingMethod
		order.TrackingNumber = &update.TrackingNumber
		order.TrackingURL = &update.TrackingURL
		order.ShippedAt = &shippedAt
		updated = order

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderShipped,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         outbox.SellerActor(input.ActorUserID, tenantID),
			Data: payloads.OrderShippedEvent{
				OrderID:        order.ID,
				OrderGroupID:   order.OrderGroupID,
				TenantID:       order.TenantID,
				BuyerUserID:    order.BuyerUserID,
				Carrier:        shipment.Carrier.ID,
				TrackingNumber: shipment.TrackingNumber,
				TrackingURL:    shipment.TrackingURL,
				ShippedAt:      shippedAt,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func shipmentErrorMessage(err error) string {
	switch {
	case errors.Is(err, shipping.ErrUnknownCarrier):
		return "unsupported carrier"
	case errors.Is(err, shipping.ErrTrackingRequired):
		return "tracking number is required"
	case errors.Is(err, shipping.ErrInsecureTrackingURL):
		return "tracking URL must use HTTPS"
	case errors.Is(err, shipping.ErrManualURLRequired):
		return "carrier requires a manual tracking URL"
	default:
		return "invalid tracking URL"
	}
}
