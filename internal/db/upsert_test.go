package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "businesses",
		Columns:      []string{"campaign_id", "place_id"},
		ConflictKeys: []string{"campaign_id", "place_id"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "businesses",
		ConflictKeys: []string{"place_id"},
	}, [][]any{{"c-1", "p-1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:   "businesses",
		Columns: []string{"campaign_id", "place_id"},
	}, [][]any{{"c-1", "p-1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cols := []string{"campaign_id", "place_id", "name", "email"}

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_businesses" \(LIKE "businesses" INCLUDING DEFAULTS\) ON COMMIT DROP`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_businesses"}, cols).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "businesses" \("campaign_id", "place_id", "name", "email"\) SELECT .+ FROM "_tmp_upsert_businesses" ON CONFLICT \("campaign_id", "place_id"\) DO UPDATE SET "name" = EXCLUDED\."name", "email" = EXCLUDED\."email"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	rows := [][]any{
		{"c-1", "p-1", "Queen City Plumbing", "info@qcp.example"},
		{"c-1", "p-2", "Apex Plumbing", nil},
	}
	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "businesses",
		Columns:      cols,
		ConflictKeys: []string{"campaign_id", "place_id"},
	}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_RestrictedUpdateCols(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cols := []string{"campaign_id", "place_id", "name", "email"}

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_businesses"}, cols).WillReturnResult(1)
	// Only the listed column appears in the SET clause; email survives reruns.
	mock.ExpectExec(`DO UPDATE SET "name" = EXCLUDED\."name"$`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "businesses",
		Columns:      cols,
		ConflictKeys: []string{"campaign_id", "place_id"},
		UpdateCols:   []string{"name"},
	}, [][]any{{"c-1", "p-1", "Queen City Plumbing", "info@qcp.example"}})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_BeginError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(fmt.Errorf("pool exhausted"))

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "businesses",
		Columns:      []string{"campaign_id", "place_id"},
		ConflictKeys: []string{"campaign_id", "place_id"},
	}, [][]any{{"c-1", "p-1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin tx")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cols := []string{"campaign_id", "place_id"}

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_businesses"}, cols).WillReturnError(fmt.Errorf("bad row"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "businesses",
		Columns:      cols,
		ConflictKeys: []string{"campaign_id", "place_id"},
	}, [][]any{{"c-1", "p-1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into temp table")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuoteAndJoin(t *testing.T) {
	result := quoteAndJoin([]string{"id", "name", "value"})
	assert.Equal(t, `"id", "name", "value"`, result)
}
