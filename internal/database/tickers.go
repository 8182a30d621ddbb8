package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/trogers1052/outcome-tracker/internal/models"
)

const tickerColumns = `id, symbol, status, status_reason, first_seen_date,
	       source_prediction_id, price_data_start, price_data_end,
	       total_price_records, last_price_update, created_at, updated_at`

// CreateTickersBatch inserts a batch of tickers in a single transaction.
// On any failure the whole batch rolls back and the error is returned;
// callers decide whether a unique violation is benign (see IsUniqueViolation).
func (db *DB) CreateTickersBatch(tickers []*models.Ticker) error {
	if len(tickers) == 0 {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO tickers (
			symbol, status, status_reason, first_seen_date,
			source_prediction_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	now := time.Now()
	for _, t := range tickers {
		var sourceID sql.NullString
		if t.SourcePredictionID != "" {
			sourceID = sql.NullString{String: t.SourcePredictionID, Valid: true}
		}
		err := tx.QueryRow(query,
			t.Symbol, t.Status, t.StatusReason, t.FirstSeenDate, sourceID, now, now,
		).Scan(&t.ID)
		if err != nil {
			return fmt.Errorf("failed to insert ticker %s: %w", t.Symbol, err)
		}
		t.CreatedAt = now
		t.UpdatedAt = now
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ticker batch: %w", err)
	}
	return nil
}

// GetTicker retrieves a ticker by symbol
func (db *DB) GetTicker(symbol string) (*models.Ticker, error) {
	query := `SELECT ` + tickerColumns + ` FROM tickers WHERE symbol = $1`

	t, err := scanTicker(db.conn.QueryRow(query, symbol))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("ticker not found: %s", symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticker %s: %w", symbol, err)
	}
	return t, nil
}

// TickerExists checks if a ticker exists
func (db *DB) TickerExists(symbol string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM tickers WHERE symbol = $1)`
	var exists bool
	if err := db.conn.QueryRow(query, symbol).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check ticker existence: %w", err)
	}
	return exists, nil
}

// GetAllTickers returns all tickers ordered by symbol
func (db *DB) GetAllTickers() ([]*models.Ticker, error) {
	query := `SELECT ` + tickerColumns + ` FROM tickers ORDER BY symbol`

	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get all tickers: %w", err)
	}
	defer rows.Close()

	var tickers []*models.Ticker
	for rows.Next() {
		t, err := scanTicker(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		tickers = append(tickers, t)
	}
	return tickers, rows.Err()
}

// UpdateTickerStatus sets a ticker's status and reason. Unknown symbols are
// a no-op, not an error.
func (db *DB) UpdateTickerStatus(symbol, status, reason string) error {
	query := `
		UPDATE tickers
		SET status = $2, status_reason = $3, updated_at = NOW()
		WHERE symbol = $1
	`
	if _, err := db.conn.Exec(query, symbol, status, reason); err != nil {
		return fmt.Errorf("failed to update ticker status for %s: %w", symbol, err)
	}
	return nil
}

// UpdateTickerPriceMetadata stores recomputed price-coverage metadata for a
// ticker.
func (db *DB) UpdateTickerPriceMetadata(symbol string, start, end time.Time, count int, lastUpdate time.Time) error {
	query := `
		UPDATE tickers
		SET price_data_start = $2, price_data_end = $3,
		    total_price_records = $4, last_price_update = $5, updated_at = NOW()
		WHERE symbol = $1
	`
	if _, err := db.conn.Exec(query, symbol, start, end, count, lastUpdate); err != nil {
		return fmt.Errorf("failed to update price metadata for %s: %w", symbol, err)
	}
	return nil
}

// GetTickerStats returns aggregate registry statistics
func (db *DB) GetTickerStats() (*models.TickerStats, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'active'),
		       COUNT(*) FILTER (WHERE status = 'invalid'),
		       COUNT(*) FILTER (WHERE status = 'inactive'),
		       COALESCE(SUM(total_price_records), 0)
		FROM tickers
	`
	var stats models.TickerStats
	err := db.conn.QueryRow(query).Scan(
		&stats.Total, &stats.Active, &stats.Invalid, &stats.Inactive, &stats.TotalPriceRecords,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticker stats: %w", err)
	}
	return &stats, nil
}

// scanner covers both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTicker(s scanner) (*models.Ticker, error) {
	var t models.Ticker
	var statusReason, sourceID sql.NullString
	var priceStart, priceEnd, lastUpdate sql.NullTime

	err := s.Scan(
		&t.ID, &t.Symbol, &t.Status, &statusReason, &t.FirstSeenDate,
		&sourceID, &priceStart, &priceEnd,
		&t.TotalPriceRecords, &lastUpdate, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if statusReason.Valid {
		t.StatusReason = statusReason.String
	}
	if sourceID.Valid {
		t.SourcePredictionID = sourceID.String
	}
	if priceStart.Valid {
		t.PriceDataStart = &priceStart.Time
	}
	if priceEnd.Valid {
		t.PriceDataEnd = &priceEnd.Time
	}
	if lastUpdate.Valid {
		t.LastPriceUpdate = &lastUpdate.Time
	}
	return &t, nil
}
