package orders

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/db/dbtest"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/money"
	"github.com/angelmondragon/marketplace-backend/pkg/types"
)

type seededGroup struct {
	group  models.OrderGroup
	orders []models.Order
}

func seedGroup(t *testing.T, client *db.Client, sellers int, status enums.OrderStatus) seededGroup {
	t.Helper()
	ctx := context.Background()
	repo := NewRepository(client.DB())
	buyer := uuid.New()

	group := models.OrderGroup{
		BuyerUserID:         buyer,
		BuyerEmail:          "buyer@example.com",
		CurrencyCode:        "PLN",
		BillingAddress:      types.Address{},
		ShippingAddress:     types.Address{"city": "Kraków"},
		Notes:               types.JSONMap{},
		Metadata:            types.JSONMap{"locale": "pl"},
		CartSnapshot:        types.JSONMap{"cart_id": uuid.NewString()},
		ItemsSubtotalAmount: money.MustParse("240"),
		ItemsTaxAmount:      money.MustParse("55.20"),
		TotalAmount:         money.MustParse("295.20"),
		ItemsCount:          2,
		SellerCount:         sellers,
		Status:              enums.OrderGroupStatusPending,
	}
	require.NoError(t, repo.CreateOrderGroup(ctx, &group))
	require.NotEqual(t, uuid.Nil, group.ID)

	orders := make([]models.Order, 0, sellers)
	for i := 0; i < sellers; i++ {
		orders = append(orders, models.Order{
			OrderGroupID:        group.ID,
			TenantID:            uuid.New(),
			BuyerUserID:         buyer,
			BuyerEmail:          group.BuyerEmail,
			CurrencyCode:        "PLN",
			BillingAddress:      types.Address{},
			ShippingAddress:     group.ShippingAddress,
			Metadata:            types.JSONMap{"cart_item_ids": []string{uuid.NewString()}},
			ItemsSubtotalAmount: money.MustParse("120"),
			ItemsTaxAmount:      money.MustParse("27.60"),
			TotalAmount:         money.MustParse("147.60"),
			ItemsCount:          1,
			Status:              status,
		})
	}
	require.NoError(t, repo.CreateOrders(ctx, orders))

	items := make([]models.OrderItem, 0, sellers)
	for _, order := range orders {
		items = append(items, models.OrderItem{
			OrderID:        order.ID,
			TenantID:       order.TenantID,
			ProductID:      uuid.New(),
			ProductName:    "Lamp",
			Quantity:       1,
			UnitPrice:      money.MustParse("120"),
			VatRate:        "23.00",
			SubtotalAmount: money.MustParse("120"),
			TaxAmount:      money.MustParse("27.60"),
			TotalAmount:    money.MustParse("147.60"),
			CurrencyCode:   "PLN",
			Metadata:       types.JSONMap{"cart_item_id": uuid.NewString()},
		})
	}
	require.NoError(t, repo.CreateOrderItems(ctx, items))
	return seededGroup{group: group, orders: orders}
}

func TestRepositoryCreatesGroupTree(t *testing.T) {
	client := dbtest.Open(t)
	seeded := seedGroup(t, client, 2, enums.OrderStatusPending)

	got, err := NewRepository(client.DB()).FindOrderGroup(context.Background(), seeded.group.ID)
	require.NoError(t, err)
	assert.Equal(t, "295.20", got.TotalAmount.String())
	assert.Equal(t, "Kraków", got.ShippingAddress["city"])
	assert.True(t, got.BillingAddress.IsEmpty())
	require.Len(t, got.Orders, 2)
	for _, order := range got.Orders {
		require.Len(t, order.Items, 1)
		assert.Equal(t, "147.60", order.Items[0].TotalAmount.String())
		assert.Equal(t, order.TenantID, order.Items[0].TenantID)
	}
}

func TestRepositoryBatchInsertIsAllOrNothing(t *testing.T) {
	client := dbtest.Open(t)
	require.True(t, client.DB().Config.SkipDefaultTransaction, "tests must run with the service gorm config")
	ctx := context.Background()
	seeded := seedGroup(t, client, 1, enums.OrderStatusPending)
	order := seeded.orders[0]
	repo := NewRepository(client.DB())

	items := make([]models.OrderItem, 0, 150)
	for i := 0; i < 150; i++ {
		items = append(items, models.OrderItem{
			ID:             uuid.New(),
			OrderID:        order.ID,
			TenantID:       order.TenantID,
			ProductID:      uuid.New(),
			ProductName:    "Bulb",
			Quantity:       1,
			UnitPrice:      money.MustParse("1"),
			VatRate:        "23.00",
			SubtotalAmount: money.MustParse("1"),
			TaxAmount:      money.MustParse("0.23"),
			TotalAmount:    money.MustParse("1.23"),
			CurrencyCode:   "PLN",
			Metadata:       types.JSONMap{},
		})
	}
	// The second batch collides with a row from the first.
	items[120].ID = items[0].ID

	require.Error(t, repo.CreateOrderItems(ctx, items))

	var count int64
	require.NoError(t, client.DB().Model(&models.OrderItem{}).Where("order_id = ?", order.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count, "only the seeded item should remain")
}

func TestRepositoryCancelCompensation(t *testing.T) {
	client := dbtest.Open(t)
	ctx := context.Background()
	seeded := seedGroup(t, client, 3, enums.OrderStatusPending)
	repo := NewRepository(client.DB())

	n, err := repo.CancelOrders(ctx, seeded.group.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, repo.CancelOrderGroup(ctx, seeded.group.ID, types.JSONMap{"error": "stripe_session_failed"}))

	got, err := repo.FindOrderGroup(ctx, seeded.group.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderGroupStatusCancelled, got.Status)
	assert.Equal(t, "stripe_session_failed", got.Metadata["error"])
	assert.NotNil(t, got.CancelledAt)
	for _, order := range got.Orders {
		assert.Equal(t, enums.OrderStatusCancelled, order.Status)
	}

	err = repo.CancelOrderGroup(ctx, uuid.New(), types.JSONMap{})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryMarkAwaitingPayment(t *testing.T) {
	client := dbtest.Open(t)
	ctx := context.Background()
	seeded := seedGroup(t, client, 2, enums.OrderStatusPending)
	repo := NewRepository(client.DB())
	intent := "pi_123"

	n, err := repo.MarkAwaitingPayment(ctx, seeded.group.ID, SessionUpdate{
		SessionID:       "cs_test_1",
		PaymentIntentID: &intent,
		Metadata:        types.JSONMap{"stripe_session_id": "cs_test_1"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := repo.FindOrderGroup(ctx, seeded.group.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderGroupStatusAwaitingPayment, got.Status)
	require.NotNil(t, got.StripeCheckoutSessionID)
	assert.Equal(t, "cs_test_1", *got.StripeCheckoutSessionID)
	require.NotNil(t, got.StripePaymentIntentID)
	assert.Equal(t, "pi_123", *got.StripePaymentIntentID)
	assert.Equal(t, "cs_test_1", got.Metadata["stripe_session_id"])
	for _, order := range got.Orders {
		assert.Equal(t, enums.OrderStatusAwaitingPayment, order.Status)
	}

	_, err = repo.MarkAwaitingPayment(ctx, seeded.group.ID, SessionUpdate{SessionID: "cs_test_2"})
	assert.Error(t, err, "group already left pending")
}

func TestRepositoryUpdateShipment(t *testing.T) {
	client := dbtest.Open(t)
	ctx := context.Background()
	seeded := seedGroup(t, client, 1, enums.OrderStatusPaid)
	repo := NewRepository(client.DB())
	order := seeded.orders[0]

	_, err := repo.FindOrderForTenant(ctx, order.ID, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	shippedAt := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpdateShipment(ctx, order.ID, ShipmentUpdate{
		ShippingMethod: "InPost",
		TrackingNumber: "62001234",
		TrackingURL:    "https://inpost.pl/sledzenie-przesylek?number=62001234",
		ShippedAt:      shippedAt,
	}))

	got, err := repo.FindOrderForTenant(ctx, order.ID, order.TenantID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusShipped, got.Status)
	require.NotNil(t, got.TrackingNumber)
	assert.Equal(t, "62001234", *got.TrackingNumber)
	require.NotNil(t, got.ShippedAt)
	assert.True(t, got.ShippedAt.Equal(shippedAt))
}

func openMockRepository(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	conn, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return NewRepository(conn), mock
}

var reconcileQuery = regexp.QuoteMeta("FROM reconcile_order_group_payment($1, $2, $3, $4, $5, $6, $7, $8::jsonb)")

func TestReconcilePaymentApplied(t *testing.T) {
	repo, mock := openMockRepository(t)
	groupID := uuid.New()
	intent := "pi_123"

	mock.ExpectQuery(reconcileQuery).
		WithArgs(groupID.String(), "pi_123", "evt_1", sqlmock.AnyArg(), "295.20", "PLN", "checkout.session.completed", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"order_group_id", "applied", "orders_updated"}).
			AddRow(groupID.String(), true, 2))

	res, err := repo.ReconcilePayment(context.Background(), ReconcileParams{
		OrderGroupID:    groupID,
		PaymentIntentID: &intent,
		WebhookEventID:  "evt_1",
		EventCreatedAt:  time.Unix(1767225600, 0),
		AmountTotal:     money.FromMinorUnits(29520),
		CurrencyCode:    "PLN",
		EventType:       "checkout.session.completed",
		Metadata:        types.JSONMap{"mode": "payment"},
	})
	require.NoError(t, err)
	assert.Equal(t, groupID, res.OrderGroupID)
	assert.True(t, res.Applied)
	assert.Equal(t, 2, res.OrdersUpdated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcilePaymentDuplicate(t *testing.T) {
	repo, mock := openMockRepository(t)
	groupID := uuid.New()

	mock.ExpectQuery(reconcileQuery).
		WillReturnRows(sqlmock.NewRows([]string{"order_group_id", "applied", "orders_updated"}).
			AddRow(groupID.String(), false, 0))

	res, err := repo.ReconcilePayment(context.Background(), ReconcileParams{
		OrderGroupID:   groupID,
		WebhookEventID: "evt_1",
		EventCreatedAt: time.Now(),
		AmountTotal:    money.MustParse("10"),
		CurrencyCode:   "PLN",
		EventType:      "checkout.session.async_payment_succeeded",
	})
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Zero(t, res.OrdersUpdated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcilePaymentError(t *testing.T) {
	repo, mock := openMockRepository(t)

	mock.ExpectQuery(reconcileQuery).
		WillReturnError(&pgconn.PgError{Code: "P0002", Message: "order group not found"})

	_, err := repo.ReconcilePayment(context.Background(), ReconcileParams{
		OrderGroupID:   uuid.New(),
		WebhookEventID: "evt_missing",
		EventCreatedAt: time.Now(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order group not found")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcilePaymentValidatesInput(t *testing.T) {
	repo, _ := openMockRepository(t)

	_, err := repo.ReconcilePayment(context.Background(), ReconcileParams{WebhookEventID: "evt"})
	assert.Error(t, err)
	_, err = repo.ReconcilePayment(context.Background(), ReconcileParams{OrderGroupID: uuid.New()})
	assert.Error(t, err)
}
