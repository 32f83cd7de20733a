package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestBulkUpsert_EmptyRows(t *testing.T) {
	mock := newMockPool(t)

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "reports",
		Columns:      []string{"id", "status"},
		ConflictKeys: []string{"id"},
	}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_MissingColumns(t *testing.T) {
	mock := newMockPool(t)

	_, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "reports",
		ConflictKeys: []string{"id"},
	}, [][]any{{"r1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns")
}

func TestBulkUpsert_MissingConflictKeys(t *testing.T) {
	mock := newMockPool(t)

	_, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:   "reports",
		Columns: []string{"id"},
	}, [][]any{{"r1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys")
}

func TestBulkUpsert_TempTableFlow(t *testing.T) {
	mock := newMockPool(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE _tmp_upsert_reports`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_reports"}, []string{"id", "status"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO reports .* ON CONFLICT \(id\) DO UPDATE SET status = EXCLUDED.status`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "reports",
		Columns:      []string{"id", "status"},
		ConflictKeys: []string{"id"},
	}, [][]any{{"r1", "PENDING_REVIEW"}, {"r2", "COMPLETED"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_EmptyRows(t *testing.T) {
	mock := newMockPool(t)

	n, err := CopyFrom(context.Background(), mock, "reports", []string{"id"}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Rows(t *testing.T) {
	mock := newMockPool(t)

	mock.ExpectCopyFrom(pgx.Identifier{"reports"}, []string{"id", "status"}).
		WillReturnResult(1)

	n, err := CopyFrom(context.Background(), mock, "reports", []string{"id", "status"}, [][]any{{"r1", "COMPLETED"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
