package tiger

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords(n int) []TractRecord {
	out := make([]TractRecord, n)
	for i := range out {
		out[i] = TractRecord{
			GEOID:      "48453" + string(rune('0'+i)) + "00100",
			StateFIPS:  "48",
			CountyFIPS: "453",
			TractCE:    string(rune('0'+i)) + "00100",
			Latitude:   30.26,
			Longitude:  -97.74,
			Geom:       []byte("wkb"),
		}
	}
	return out
}

func TestBulkLoad(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(tractTable, tractColumns).WillReturnResult(2)

	n, err := BulkLoad(context.Background(), mock, sampleRecords(2), 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkLoad_EmptyRecords(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	n, err := BulkLoad(context.Background(), mock, nil, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkLoad_BatchSplitting(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// 5 records with batch size 2 = 3 COPY calls (2+2+1).
	mock.ExpectCopyFrom(tractTable, tractColumns).WillReturnResult(2)
	mock.ExpectCopyFrom(tractTable, tractColumns).WillReturnResult(2)
	mock.ExpectCopyFrom(tractTable, tractColumns).WillReturnResult(1)

	n, err := BulkLoad(context.Background(), mock, sampleRecords(5), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkLoad_CopyError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(tractTable, tractColumns).WillReturnResult(2)
	mock.ExpectCopyFrom(tractTable, tractColumns).WillReturnError(assert.AnError)

	n, err := BulkLoad(context.Background(), mock, sampleRecords(3), 2)
	require.Error(t, err)
	assert.Equal(t, int64(2), n)
	assert.Contains(t, err.Error(), "batch 2-3")
}

func TestDeleteState(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM geo.census_tracts WHERE state_fips`).
		WithArgs("48").
		WillReturnResult(pgxmock.NewResult("DELETE", 5265))

	n, err := DeleteState(context.Background(), mock, "48")
	require.NoError(t, err)
	assert.Equal(t, int64(5265), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS geo`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS geo.census_tracts`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS idx_census_tracts_geom`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS idx_census_tracts_county`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS geo.tract_load_status`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, EnsureSchema(context.Background(), mock))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS geo`).WillReturnError(assert.AnError)

	err = EnsureSchema(context.Background(), mock)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tiger: create schema")
}
