// Package dbtest opens throwaway sqlite databases carrying the checkout schema.
// Amount columns are TEXT so the fixed two-decimal strings round trip unchanged.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/db"
)

var schema = []string{
	`CREATE TABLE products (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		slug TEXT,
		sku TEXT,
		price TEXT NOT NULL,
		vat_rate TEXT,
		currency_code TEXT NOT NULL DEFAULT 'PLN',
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE carts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		currency_code TEXT NOT NULL DEFAULT 'PLN',
		status TEXT NOT NULL DEFAULT 'active',
		metadata TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_carts_user_active ON carts (user_id) WHERE status = 'active'`,
	`CREATE TABLE cart_items (
		id TEXT PRIMARY KEY,
		cart_id TEXT NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
		tenant_id TEXT,
		product_id TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price TEXT,
		currency_code TEXT NOT NULL DEFAULT 'PLN',
		metadata TEXT,
		created_at DATETIME,
		updated_at DATETIME,
		CONSTRAINT ux_cart_items_cart_product UNIQUE (cart_id, product_id)
	)`,
	`CREATE TABLE order_groups (
		id TEXT PRIMARY KEY,
		buyer_user_id TEXT NOT NULL,
		buyer_email TEXT NOT NULL,
		buyer_full_name TEXT,
		currency_code TEXT NOT NULL,
		billing_address TEXT,
		shipping_address TEXT,
		contact_phone TEXT,
		notes TEXT,
		metadata TEXT,
		cart_snapshot TEXT,
		items_subtotal_amount TEXT NOT NULL DEFAULT '0.00',
		items_tax_amount TEXT NOT NULL DEFAULT '0.00',
		shipping_amount TEXT NOT NULL DEFAULT '0.00',
		discount_amount TEXT NOT NULL DEFAULT '0.00',
		total_amount TEXT NOT NULL DEFAULT '0.00',
		amount_paid TEXT NOT NULL DEFAULT '0.00',
		items_count INTEGER NOT NULL DEFAULT 0,
		seller_count INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		stripe_checkout_session_id TEXT,
		stripe_payment_intent_id TEXT,
		placed_at DATETIME,
		paid_at DATETIME,
		cancelled_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		order_group_id TEXT NOT NULL REFERENCES order_groups(id) ON DELETE CASCADE,
		tenant_id TEXT NOT NULL,
		buyer_user_id TEXT NOT NULL,
		buyer_email TEXT NOT NULL,
		buyer_full_name TEXT,
		currency_code TEXT NOT NULL,
		billing_address TEXT,
		shipping_address TEXT,
		contact_phone TEXT,
		buyer_note TEXT,
		seller_note TEXT,
		metadata TEXT,
		items_subtotal_amount TEXT NOT NULL DEFAULT '0.00',
		items_tax_amount TEXT NOT NULL DEFAULT '0.00',
		shipping_amount TEXT NOT NULL DEFAULT '0.00',
		discount_amount TEXT NOT NULL DEFAULT '0.00',
		total_amount TEXT NOT NULL DEFAULT '0.00',
		items_count INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		shipping_method TEXT,
		tracking_number TEXT,
		tracking_url TEXT,
		paid_at DATETIME,
		shipped_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE order_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		tenant_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		product_name TEXT NOT NULL,
		product_slug TEXT,
		product_sku TEXT,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		unit_price TEXT NOT NULL,
		vat_rate TEXT NOT NULL DEFAULT '0.00',
		subtotal_amount TEXT NOT NULL,
		tax_amount TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		currency_code TEXT NOT NULL,
		metadata TEXT,
		created_at DATETIME
	)`,
	`CREATE TABLE payment_events (
		id TEXT PRIMARY KEY,
		webhook_event_id TEXT NOT NULL UNIQUE,
		order_group_id TEXT NOT NULL,
		payment_intent_id TEXT,
		event_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency_code TEXT NOT NULL,
		event_created_at DATETIME NOT NULL,
		metadata TEXT,
		applied_at DATETIME
	)`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
}

// Open returns a client over a fresh in-memory database named after the test.
func Open(t *testing.T) *db.Client {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", name)), db.GormConfig(nil, 0))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return db.Wrap(conn)
}
