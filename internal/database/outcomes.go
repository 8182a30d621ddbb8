package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/trogers1052/outcome-tracker/internal/models"
)

const outcomeColumns = `id, prediction_id, symbol, prediction_date, sentiment, confidence,
	       price_at_prediction,
	       price_t1, price_t3, price_t7, price_t30,
	       return_t1, return_t3, return_t7, return_t30,
	       correct_t1, correct_t3, correct_t7, correct_t30,
	       pnl_t1, pnl_t3, pnl_t7, pnl_t30,
	       is_complete, last_price_update, created_at, updated_at`

// GetOutcome retrieves the outcome for (prediction_id, symbol), or nil when
// none has been computed yet.
func (db *DB) GetOutcome(predictionID, symbol string) (*models.PredictionOutcome, error) {
	query := `SELECT ` + outcomeColumns + ` FROM prediction_outcomes WHERE prediction_id = $1 AND symbol = $2`

	o, err := scanOutcome(db.conn.QueryRow(query, predictionID, symbol))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get outcome %s/%s: %w", predictionID, symbol, err)
	}
	return o, nil
}

// UpsertOutcome inserts a new outcome or overwrites an existing one for the
// same (prediction_id, symbol) in a single statement.
func (db *DB) UpsertOutcome(o *models.PredictionOutcome) error {
	query := `
		INSERT INTO prediction_outcomes (
			prediction_id, symbol, prediction_date, sentiment, confidence,
			price_at_prediction,
			price_t1, price_t3, price_t7, price_t30,
			return_t1, return_t3, return_t7, return_t30,
			correct_t1, correct_t3, correct_t7, correct_t30,
			pnl_t1, pnl_t3, pnl_t7, pnl_t30,
			is_complete, last_price_update, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26
		)
		ON CONFLICT (prediction_id, symbol) DO UPDATE SET
			prediction_date = EXCLUDED.prediction_date,
			sentiment = EXCLUDED.sentiment,
			confidence = EXCLUDED.confidence,
			price_at_prediction = EXCLUDED.price_at_prediction,
			price_t1 = EXCLUDED.price_t1,
			price_t3 = EXCLUDED.price_t3,
			price_t7 = EXCLUDED.price_t7,
			price_t30 = EXCLUDED.price_t30,
			return_t1 = EXCLUDED.return_t1,
			return_t3 = EXCLUDED.return_t3,
			return_t7 = EXCLUDED.return_t7,
			return_t30 = EXCLUDED.return_t30,
			correct_t1 = EXCLUDED.correct_t1,
			correct_t3 = EXCLUDED.correct_t3,
			correct_t7 = EXCLUDED.correct_t7,
			correct_t30 = EXCLUDED.correct_t30,
			pnl_t1 = EXCLUDED.pnl_t1,
			pnl_t3 = EXCLUDED.pnl_t3,
			pnl_t7 = EXCLUDED.pnl_t7,
			pnl_t30 = EXCLUDED.pnl_t30,
			is_complete = EXCLUDED.is_complete,
			last_price_update = EXCLUDED.last_price_update,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`
	now := time.Now()
	err := db.conn.QueryRow(query,
		o.PredictionID, o.Symbol, o.PredictionDate, o.Sentiment, o.Confidence,
		o.PriceAtPrediction,
		o.PriceT1, o.PriceT3, o.PriceT7, o.PriceT30,
		o.ReturnT1, o.ReturnT3, o.ReturnT7, o.ReturnT30,
		nullBool(o.CorrectT1), nullBool(o.CorrectT3), nullBool(o.CorrectT7), nullBool(o.CorrectT30),
		o.PnlT1, o.PnlT3, o.PnlT7, o.PnlT30,
		o.IsComplete, o.LastPriceUpdate, now, now,
	).Scan(&o.ID)

	if err != nil {
		return fmt.Errorf("failed to upsert outcome %s/%s: %w", o.PredictionID, o.Symbol, err)
	}
	o.UpdatedAt = now
	return nil
}

// GetOutcomes returns all outcomes with confidence >= minConfidence,
// newest first. A zero minConfidence returns everything.
func (db *DB) GetOutcomes(minConfidence float64) ([]*models.PredictionOutcome, error) {
	query := `
		SELECT ` + outcomeColumns + `
		FROM prediction_outcomes
		WHERE confidence >= $1
		ORDER BY prediction_date DESC
	`
	rows, err := db.conn.Query(query, minConfidence)
	if err != nil {
		return nil, fmt.Errorf("failed to get outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []*models.PredictionOutcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// GetRecentPredictions reads completed predictions from the upstream
// pipeline's table, newest first. daysBack <= 0 means no recency filter;
// limit <= 0 means no limit. This table is read-only to this service.
func (db *DB) GetRecentPredictions(limit, daysBack int) ([]*models.Prediction, error) {
	query := `
		SELECT id, assets, created_at, sentiments, confidence, skipped_analysis
		FROM predictions
		WHERE status = 'completed'
	`
	args := []interface{}{}
	argIdx := 1

	if daysBack > 0 {
		query += fmt.Sprintf(" AND created_at >= NOW() - ($%d || ' days')::interval", argIdx)
		args = append(args, daysBack)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get predictions: %w", err)
	}
	defer rows.Close()

	var predictions []*models.Prediction
	for rows.Next() {
		var p models.Prediction
		var sentimentsJSON []byte
		var skipped sql.NullBool
		err := rows.Scan(&p.ID, pq.Array(&p.Assets), &p.CreatedAt, &sentimentsJSON, &p.Confidence, &skipped)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		if len(sentimentsJSON) > 0 {
			if err := json.Unmarshal(sentimentsJSON, &p.Sentiments); err != nil {
				return nil, fmt.Errorf("failed to decode sentiments for %s: %w", p.ID, err)
			}
		}
		p.SkippedAnalysis = skipped.Valid && skipped.Bool
		predictions = append(predictions, &p)
	}
	return predictions, rows.Err()
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func scanOutcome(s scanner) (*models.PredictionOutcome, error) {
	var o models.PredictionOutcome
	var c1, c3, c7, c30 sql.NullBool

	err := s.Scan(
		&o.ID, &o.PredictionID, &o.Symbol, &o.PredictionDate, &o.Sentiment, &o.Confidence,
		&o.PriceAtPrediction,
		&o.PriceT1, &o.PriceT3, &o.PriceT7, &o.PriceT30,
		&o.ReturnT1, &o.ReturnT3, &o.ReturnT7, &o.ReturnT30,
		&c1, &c3, &c7, &c30,
		&o.PnlT1, &o.PnlT3, &o.PnlT7, &o.PnlT30,
		&o.IsComplete, &o.LastPriceUpdate, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.CorrectT1 = boolPtr(c1)
	o.CorrectT3 = boolPtr(c3)
	o.CorrectT7 = boolPtr(c7)
	o.CorrectT30 = boolPtr(c30)
	return &o, nil
}

func boolPtr(b sql.NullBool) *bool {
	if !b.Valid {
		return nil
	}
	v := b.Bool
	return &v
}
