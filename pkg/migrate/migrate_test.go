package migrate

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	require.NoError(t, ValidateFS(FS(), embeddedDir))
}

func TestEmbeddedMigrationsDefineReconciliation(t *testing.T) {
	var all strings.Builder
	err := fs.WalkDir(FS(), embeddedDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		b, readErr := fs.ReadFile(FS(), path)
		if readErr != nil {
			return readErr
		}
		all.Write(b)
		return nil
	})
	require.NoError(t, err)

	sql := all.String()
	assert.Contains(t, sql, "CREATE OR REPLACE FUNCTION reconcile_order_group_payment(")
	assert.Contains(t, sql, "payment_events_webhook_event_id_key UNIQUE (webhook_event_id)")
	assert.Contains(t, sql, "CREATE TABLE outbox_events")
	assert.Contains(t, sql, "ux_cart_items_cart_product UNIQUE (cart_id, product_id)")
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	path, err := CreateSQLMigration(dir, "Add Refund Columns!", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20260302100000_add_refund_columns.sql"), path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "-- +goose Up")
	require.NoError(t, ValidateDir(dir))

	_, err = CreateSQLMigration(dir, "Add Refund Columns!", now)
	require.Error(t, err)
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "001_init.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	require.Error(t, ValidateDir(dir))
}

func TestCreateSQLMigrationRejectsVersionReuse(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	_, err := CreateSQLMigration(dir, "payment events index", now)
	require.NoError(t, err)
	_, err = CreateSQLMigration(dir, "another change", now)
	require.ErrorContains(t, err, "20260302100000")

	_, err = CreateSQLMigration(dir, "!!!", now.Add(time.Second))
	require.Error(t, err)
}

func TestValidateBody(t *testing.T) {
	ok := "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose StatementEnd\n-- +goose Down\n"
	require.NoError(t, validateBody("ok.sql", ok))

	unbalanced := "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n"
	require.Error(t, validateBody("unbalanced.sql", unbalanced))

	unguarded := "-- +goose Up\nCREATE FUNCTION f() RETURNS int AS $$ SELECT 1; $$ LANGUAGE sql;\n-- +goose Down\n"
	require.Error(t, validateBody("unguarded.sql", unguarded))

	reversed := "-- +goose Down\n-- +goose Up\n"
	require.Error(t, validateBody("reversed.sql", reversed))
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "add_refund_columns", SanitizeName("  Add Refund-Columns! "))
	assert.Equal(t, "", SanitizeName("***"))
}
