package idempotency_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"decisioncore/internal/coreerr"
	"decisioncore/internal/idempotency"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := t.TempDir() + "/idempotency.sqlite"
	db, err := idempotency.OpenDB(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPutIsInsertOnlyOnceFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store, err := idempotency.Open(ctx, db)
	require.NoError(t, err)

	require.NoError(t, store.PutValue(ctx, "k1", map[string]any{"decision": "A"}))
	require.NoError(t, store.PutValue(ctx, "k1", map[string]any{"decision": "B"}))

	has, err := store.Has(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, has)

	record, ok, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(record), `"A"`)
	assert.NotContains(t, string(record), `"B"`)
}

func TestHasReturnsFalseForAbsentKey(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store, err := idempotency.Open(ctx, db)
	require.NoError(t, err)

	has, err := store.Has(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, has)

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReopeningPreservesSchemaVersion(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/idempotency.sqlite"

	db1, err := idempotency.OpenDB(path)
	require.NoError(t, err)
	_, err = idempotency.Open(ctx, db1)
	require.NoError(t, err)
	require.NoError(t, db1.Close())

	db2, err := idempotency.OpenDB(path)
	require.NoError(t, err)
	defer db2.Close()
	_, err = idempotency.Open(ctx, db2)
	require.NoError(t, err)
}

func TestOpenRejectsMismatchedSchemaVersion(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS idempotency_records").
		WillReturnResult(sqlmock.NewResult(0, 0))
	rows := sqlmock.NewRows([]string{"user_version"}).AddRow(99)
	mock.ExpectQuery("PRAGMA user_version").WillReturnRows(rows)

	_, err = idempotency.Open(ctx, db)
	require.Error(t, err)
	assert.True(t, errors.Is(err, coreerr.ErrSchemaMismatch))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHasSurfacesQueryError(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS idempotency_records").
		WillReturnResult(sqlmock.NewResult(0, 0))
	rows := sqlmock.NewRows([]string{"user_version"}).AddRow(0)
	mock.ExpectQuery("PRAGMA user_version").WillReturnRows(rows)
	mock.ExpectExec("PRAGMA user_version").WillReturnResult(sqlmock.NewResult(0, 0))

	store, err := idempotency.Open(ctx, db)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT 1 FROM idempotency_records").
		WillReturnError(errors.New("disk I/O error"))

	_, err = store.Has(ctx, "k1")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
