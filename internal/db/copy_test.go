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

var warningColumns = []string{"stage_id", "kind", "row_number", "detail"}

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "run_warnings", warningColumns, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"run_warnings"}, warningColumns).WillReturnResult(2)

	rows := [][]any{
		{"stage-1", "bad_year", 3, "year \"n/a\""},
		{"stage-1", "bad_coordinates", 7, "lat \"\""},
	}
	n, err := CopyFrom(context.Background(), mock, "run_warnings", warningColumns, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"run_warnings"}, warningColumns).WillReturnError(fmt.Errorf("copy failed"))

	_, err = CopyFrom(context.Background(), mock, "run_warnings", warningColumns, [][]any{{"s", "k", 1, ""}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO run_warnings")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_SchemaQualified(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"ledger", "run_warnings"}, warningColumns).WillReturnResult(1)

	n, err := CopyFrom(context.Background(), mock, "ledger.run_warnings", warningColumns, [][]any{{"s", "bad_year", 1, ""}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
