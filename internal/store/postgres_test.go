package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockKV(t *testing.T) (*PostgresKV, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresKV(mock), mock
}

func TestPostgresKV_Get(t *testing.T) {
	kv, mock := newMockKV(t)
	mock.ExpectQuery("SELECT value FROM kv_entries").
		WithArgs("activities").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow("[]"))

	value, found, err := kv.Get(context.Background(), "activities")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "[]", value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresKV_GetMissing(t *testing.T) {
	kv, mock := newMockKV(t)
	mock.ExpectQuery("SELECT value FROM kv_entries").
		WithArgs("email-settings").
		WillReturnError(pgx.ErrNoRows)

	_, found, err := kv.Get(context.Background(), "email-settings")
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresKV_Set(t *testing.T) {
	kv, mock := newMockKV(t)
	mock.ExpectExec("INSERT INTO kv_entries").
		WithArgs("activities", "[]").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, kv.Set(context.Background(), "activities", "[]"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresKV_SetErrorThroughAdapter(t *testing.T) {
	kv, mock := newMockKV(t)
	mock.ExpectExec("INSERT INTO kv_entries").
		WithArgs("activities", "[]").
		WillReturnError(errors.New("connection reset"))

	err := NewAdapter(kv).Save(context.Background(), KeyActivities, []int{})
	var serr *StorageError
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, serr.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}
