package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/trogers1052/outcome-tracker/internal/models"
)

const priceColumns = `id, symbol, date, open, high, low, close, volume,
	       adjusted_close, source, is_market_open, last_updated, created_at`

// UpsertPriceRecords persists a batch of raw records as a single
// transaction and reports how many rows were written. Without force,
// existing (symbol, date) rows are left untouched; with force they are
// overwritten in place. On any failure the whole batch rolls back.
func (db *DB) UpsertPriceRecords(records []models.RawPriceRecord, force bool) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO price_records (
			symbol, date, open, high, low, close, volume,
			adjusted_close, source, is_market_open, last_updated, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (symbol, date) DO NOTHING
	`
	if force {
		query = `
		INSERT INTO price_records (
			symbol, date, open, high, low, close, volume,
			adjusted_close, source, is_market_open, last_updated, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (symbol, date) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume,
			adjusted_close = EXCLUDED.adjusted_close,
			source = EXCLUDED.source,
			is_market_open = EXCLUDED.is_market_open,
			last_updated = EXCLUDED.last_updated
	`
	}

	now := time.Now()
	written := 0
	for _, r := range records {
		res, err := tx.Exec(query,
			r.Symbol, r.Date, r.Open, r.High, r.Low, r.Close, r.Volume,
			r.AdjustedClose, r.Source, true, now, now,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert price %s/%s: %w",
				r.Symbol, r.Date.Format("2006-01-02"), err)
		}
		affected, _ := res.RowsAffected()
		written += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit price batch: %w", err)
	}
	return written, nil
}

// GetPriceRecords returns persisted records for a symbol in [start, end],
// oldest first.
func (db *DB) GetPriceRecords(symbol string, start, end time.Time) ([]*models.PriceRecord, error) {
	query := `
		SELECT ` + priceColumns + `
		FROM price_records
		WHERE symbol = $1 AND date >= $2 AND date <= $3
		ORDER BY date
	`
	rows, err := db.conn.Query(query, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to get price records for %s: %w", symbol, err)
	}
	defer rows.Close()

	var records []*models.PriceRecord
	for rows.Next() {
		r, err := scanPriceRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetPriceRecordOnDate returns the record for an exact date, or nil when
// none exists. Missing is not an error; the price store walks back across
// market closures itself.
func (db *DB) GetPriceRecordOnDate(symbol string, date time.Time) (*models.PriceRecord, error) {
	query := `SELECT ` + priceColumns + ` FROM price_records WHERE symbol = $1 AND date = $2`

	r, err := scanPriceRecord(db.conn.QueryRow(query, symbol, date))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get price for %s on %s: %w",
			symbol, date.Format("2006-01-02"), err)
	}
	return r, nil
}

// GetLatestPriceRecord returns the most recent record for a symbol, or nil
// when the symbol has no data.
func (db *DB) GetLatestPriceRecord(symbol string) (*models.PriceRecord, error) {
	query := `SELECT ` + priceColumns + ` FROM price_records WHERE symbol = $1 ORDER BY date DESC LIMIT 1`

	r, err := scanPriceRecord(db.conn.QueryRow(query, symbol))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest price for %s: %w", symbol, err)
	}
	return r, nil
}

// GetDistinctPriceSymbols returns every symbol with at least one stored
// price record.
func (db *DB) GetDistinctPriceSymbols() ([]string, error) {
	rows, err := db.conn.Query(`SELECT DISTINCT symbol FROM price_records ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to get distinct symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

// GetLatestPriceDate returns the most recent stored date for a symbol, or
// nil when the symbol has no data.
func (db *DB) GetLatestPriceDate(symbol string) (*time.Time, error) {
	var date sql.NullTime
	err := db.conn.QueryRow(`SELECT MAX(date) FROM price_records WHERE symbol = $1`, symbol).Scan(&date)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest price date for %s: %w", symbol, err)
	}
	if !date.Valid {
		return nil, nil
	}
	return &date.Time, nil
}

// GetPriceCoverage returns the stored date range and row count for a symbol.
func (db *DB) GetPriceCoverage(symbol string) (start, end *time.Time, count int, err error) {
	var minDate, maxDate sql.NullTime
	err = db.conn.QueryRow(
		`SELECT MIN(date), MAX(date), COUNT(*) FROM price_records WHERE symbol = $1`, symbol,
	).Scan(&minDate, &maxDate, &count)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to get price coverage for %s: %w", symbol, err)
	}
	if minDate.Valid {
		start = &minDate.Time
	}
	if maxDate.Valid {
		end = &maxDate.Time
	}
	return start, end, count, nil
}

func scanPriceRecord(s scanner) (*models.PriceRecord, error) {
	var r models.PriceRecord
	err := s.Scan(
		&r.ID, &r.Symbol, &r.Date, &r.Open, &r.High, &r.Low, &r.Close,
		&r.Volume, &r.AdjustedClose, &r.Source, &r.IsMarketOpen,
		&r.LastUpdated, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
