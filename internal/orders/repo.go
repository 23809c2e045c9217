package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/types"
)

const insertBatchSize = 100

// SessionUpdate carries the hosted payment session attached to a group.
type SessionUpdate struct {
	SessionID       string
	PaymentIntentID *string
	Metadata        types.JSONMap
}

// ShipmentUpdate is written when a seller hands a parcel to a carrier.
type ShipmentUpdate struct {
	ShippingMethod string
	TrackingNumber string
	TrackingURL    string
	ShippedAt      time.Time
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrderGroup(ctx context.Context, group *models.OrderGroup) error {
	if group.ID == uuid.Nil {
		group.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(group).Error
}

// CreateOrders inserts every seller order atomically.
func (r *repository) CreateOrders(ctx context.Context, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}
	for i := range orders {
		if orders[i].ID == uuid.Nil {
			orders[i].ID = uuid.New()
		}
	}
	return r.insertBatches(ctx, &orders, clause.Associations)
}

func (r *repository) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		if items[i].ID == uuid.Nil {
			items[i].ID = uuid.New()
		}
	}
	return r.insertBatches(ctx, &items)
}

// insertBatches writes every batch or none. Default write transactions are
// off, so CreateInBatches alone would commit each batch separately; inside a
// caller's transaction this becomes a savepoint.
func (r *repository) insertBatches(ctx context.Context, rows any, omit ...string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(omit) > 0 {
			tx = tx.Omit(omit...)
		}
		return tx.CreateInBatches(rows, insertBatchSize).Error
	})
}

func (r *repository) FindOrderGroup(ctx context.Context, id uuid.UUID) (*models.OrderGroup, error) {
	var group models.OrderGroup
	err := r.db.WithContext(ctx).
		Preload("Orders", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Orders.Items").
		Where("id = ?", id).
		First(&group).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *repository) FindOrderForTenant(ctx context.Context, orderID, tenantID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", orderID, tenantID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// CancelOrderGroup marks the group cancelled and replaces its metadata.
func (r *repository) CancelOrderGroup(ctx context.Context, groupID uuid.UUID, metadata types.JSONMap) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.OrderGroup{}).
		Where("id = ?", groupID).
		Updates(map[string]any{
			"status":       enums.OrderGroupStatusCancelled,
			"metadata":     metadata,
			"cancelled_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) CancelOrders(ctx context.Context, groupID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("order_group_id = ?", groupID).
		Updates(map[string]any{
			"status":     enums.OrderStatusCancelled,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

// MarkAwaitingPayment moves the group and its orders to awaiting_payment.
// Only pending rows move, so a webhook that already marked the group paid wins.
func (r *repository) MarkAwaitingPayment(ctx context.Context, groupID uuid.UUID, update SessionUpdate) (int64, error) {
	now := time.Now().UTC()
	values := map[string]any{
		"status":                     enums.OrderGroupStatusAwaitingPayment,
		"stripe_checkout_session_id": update.SessionID,
		"metadata":                   update.Metadata,
		"placed_at":                  now,
		"updated_at":                 now,
	}
	if update.PaymentIntentID != nil {
		values["stripe_payment_intent_id"] = *update.PaymentIntentID
	}
	res := r.db.WithContext(ctx).
		Model(&models.OrderGroup{}).
		Where("id = ? AND status = ?", groupID, enums.OrderGroupStatusPending).
		Updates(values)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, fmt.Errorf("order group %s is no longer pending", groupID)
	}

	res = r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("order_group_id = ? AND status = ?", groupID, enums.OrderStatusPending).
		Updates(map[string]any{
			"status":     enums.OrderStatusAwaitingPayment,
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) UpdateShipment(ctx context.Context, orderID uuid.UUID, update ShipmentUpdate) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{
			"status":          enums.OrderStatusShipped,
			"shipping_method": update.ShippingMethod,
			"tracking_number": update.TrackingNumber,
			"tracking_url":    update.TrackingURL,
			"shipped_at":      update.ShippedAt,
			"updated_at":      update.ShippedAt,
		}).Error
}
