package database

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trogers1052/outcome-tracker/internal/models"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewFromConn(conn), mock
}

func rawRecord(symbol, date string, close float64) models.RawPriceRecord {
	d, _ := time.Parse("2006-01-02", date)
	px := decimal.NewFromFloat(close)
	return models.RawPriceRecord{
		Symbol: symbol, Date: d,
		Open: px, High: px, Low: px, Close: px, AdjustedClose: px,
		Volume: 1000, Source: "alpha_vantage",
	}
}

func TestUpsertPriceRecords_CommitsBatch(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO price_records`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO price_records`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	written, err := db.UpsertPriceRecords([]models.RawPriceRecord{
		rawRecord("AAPL", "2024-06-03", 194.35),
		rawRecord("AAPL", "2024-06-04", 196.45),
	}, false)

	require.NoError(t, err)
	assert.Equal(t, 2, written)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertPriceRecords_ConflictRowsNotCounted(t *testing.T) {
	db, mock := newMockDB(t)

	// ON CONFLICT DO NOTHING reports zero rows affected for duplicates
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO price_records`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO price_records`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	written, err := db.UpsertPriceRecords([]models.RawPriceRecord{
		rawRecord("AAPL", "2024-06-03", 194.35),
		rawRecord("AAPL", "2024-06-04", 196.45),
	}, false)

	require.NoError(t, err)
	assert.Equal(t, 1, written)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertPriceRecords_RollsBackOnFailure(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO price_records`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO price_records`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := db.UpsertPriceRecords([]models.RawPriceRecord{
		rawRecord("AAPL", "2024-06-03", 194.35),
		rawRecord("AAPL", "2024-06-04", 196.45),
	}, false)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "2024-06-04")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertPriceRecords_EmptyBatchIsNoop(t *testing.T) {
	db, mock := newMockDB(t)

	written, err := db.UpsertPriceRecords(nil, false)
	require.NoError(t, err)
	assert.Zero(t, written)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertPriceRecords_ForceOverwrites(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`ON CONFLICT \(symbol, date\) DO UPDATE`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	written, err := db.UpsertPriceRecords([]models.RawPriceRecord{
		rawRecord("AAPL", "2024-06-03", 194.35),
	}, true)

	require.NoError(t, err)
	assert.Equal(t, 1, written)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func priceRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "symbol", "date", "open", "high", "low", "close", "volume",
		"adjusted_close", "source", "is_market_open", "last_updated", "created_at",
	})
}

func TestGetPriceRecordOnDate_MissIsNotAnError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`FROM price_records WHERE symbol = \$1 AND date = \$2`).
		WithArgs("AAPL", sqlmock.AnyArg()).
		WillReturnRows(priceRows())

	record, err := db.GetPriceRecordOnDate("AAPL", time.Date(2024, 6, 8, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Nil(t, record)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPriceRecords_ScansDecimals(t *testing.T) {
	db, mock := newMockDB(t)

	now := time.Now()
	mock.ExpectQuery(`FROM price_records`).
		WithArgs("AAPL", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(priceRows().AddRow(
			1, "AAPL", time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
			"193.50", "195.30", "193.00", "194.35", int64(47000000),
			"194.35", "alpha_vantage", true, now, now,
		))

	records, err := db.GetPriceRecords("AAPL",
		time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "194.35", records[0].Close.String())
	assert.Equal(t, int64(47000000), records[0].Volume)
	assert.True(t, records[0].IsMarketOpen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLatestPriceDate(t *testing.T) {
	db, mock := newMockDB(t)

	latest := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT MAX\(date\) FROM price_records`).
		WithArgs("AAPL").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(latest))

	got, err := db.GetLatestPriceDate("AAPL")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, latest, *got)
}

func TestGetLatestPriceDate_NoData(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT MAX\(date\) FROM price_records`).
		WithArgs("ZZZZ").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))

	got, err := db.GetLatestPriceDate("ZZZZ")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetPriceCoverage(t *testing.T) {
	db, mock := newMockDB(t)

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT MIN\(date\), MAX\(date\), COUNT\(\*\) FROM price_records`).
		WithArgs("AAPL").
		WillReturnRows(sqlmock.NewRows([]string{"min", "max", "count"}).AddRow(start, end, 65))

	gotStart, gotEnd, count, err := db.GetPriceCoverage("AAPL")
	require.NoError(t, err)
	assert.Equal(t, 65, count)
	require.NotNil(t, gotStart)
	assert.Equal(t, start, *gotStart)
	require.NotNil(t, gotEnd)
	assert.Equal(t, end, *gotEnd)
}

func TestGetPriceCoverage_Empty(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT MIN\(date\), MAX\(date\), COUNT\(\*\) FROM price_records`).
		WithArgs("ZZZZ").
		WillReturnRows(sqlmock.NewRows([]string{"min", "max", "count"}).AddRow(nil, nil, 0))

	start, end, count, err := db.GetPriceCoverage("ZZZZ")
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Nil(t, start)
	assert.Nil(t, end)
}
