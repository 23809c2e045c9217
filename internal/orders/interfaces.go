package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/types"
)

// Repository defines persistence operations for order_groups, orders and order_items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrderGroup(ctx context.Context, group *models.OrderGroup) error
	CreateOrders(ctx context.Context, orders []models.Order) error
	CreateOrderItems(ctx context.Context, items []models.OrderItem) error
	FindOrderGroup(ctx context.Context, id uuid.UUID) (*models.OrderGroup, error)
	FindOrderForTenant(ctx context.Context, orderID, tenantID uuid.UUID) (*models.Order, error)
	CancelOrderGroup(ctx context.Context, groupID uuid.UUID, metadata types.JSONMap) error
	CancelOrders(ctx context.Context, groupID uuid.UUID) (int64, error)
	MarkAwaitingPayment(ctx context.Context, groupID uuid.UUID, update SessionUpdate) (int64, error)
	UpdateShipment(ctx context.Context, orderID uuid.UUID, update ShipmentUpdate) error
	ReconcilePayment(ctx context.Context, params ReconcileParams) (*ReconcileResult, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
