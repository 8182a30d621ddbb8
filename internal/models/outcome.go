package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Horizons are the forward checkpoints (calendar days after the prediction)
// at which outcomes are scored.
var Horizons = []int{1, 3, 7, 30}

// PredictionOutcome scores one prediction against realized price movement
// for one symbol. Unique per (prediction_id, symbol).
//
// Null horizon fields mean "not yet resolvable": either the horizon date is
// still in the future or no price could be found for it. A null Correct is
// "undefined", which is distinct from false.
type PredictionOutcome struct {
	ID                int                 `json:"id"`
	PredictionID      string              `json:"prediction_id"`
	Symbol            string              `json:"symbol"`
	PredictionDate    time.Time           `json:"prediction_date"`
	Sentiment         string              `json:"sentiment"`
	Confidence        float64             `json:"confidence"`
	PriceAtPrediction decimal.NullDecimal `json:"price_at_prediction"`

	PriceT1  decimal.NullDecimal `json:"price_t1"`
	PriceT3  decimal.NullDecimal `json:"price_t3"`
	PriceT7  decimal.NullDecimal `json:"price_t7"`
	PriceT30 decimal.NullDecimal `json:"price_t30"`

	ReturnT1  decimal.NullDecimal `json:"return_t1"`
	ReturnT3  decimal.NullDecimal `json:"return_t3"`
	ReturnT7  decimal.NullDecimal `json:"return_t7"`
	ReturnT30 decimal.NullDecimal `json:"return_t30"`

	CorrectT1  *bool `json:"correct_t1"`
	CorrectT3  *bool `json:"correct_t3"`
	CorrectT7  *bool `json:"correct_t7"`
	CorrectT30 *bool `json:"correct_t30"`

	PnlT1  decimal.NullDecimal `json:"pnl_t1"`
	PnlT3  decimal.NullDecimal `json:"pnl_t3"`
	PnlT7  decimal.NullDecimal `json:"pnl_t7"`
	PnlT30 decimal.NullDecimal `json:"pnl_t30"`

	IsComplete      bool      `json:"is_complete"`
	LastPriceUpdate time.Time `json:"last_price_update"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// HorizonResult holds the scored fields for one horizon.
type HorizonResult struct {
	Price   decimal.NullDecimal
	Return  decimal.NullDecimal
	Correct *bool
	Pnl     decimal.NullDecimal
}

// SetHorizon stores a horizon result on the matching T+N fields.
func (o *PredictionOutcome) SetHorizon(days int, r HorizonResult) error {
	switch days {
	case 1:
		o.PriceT1, o.ReturnT1, o.CorrectT1, o.PnlT1 = r.Price, r.Return, r.Correct, r.Pnl
	case 3:
		o.PriceT3, o.ReturnT3, o.CorrectT3, o.PnlT3 = r.Price, r.Return, r.Correct, r.Pnl
	case 7:
		o.PriceT7, o.ReturnT7, o.CorrectT7, o.PnlT7 = r.Price, r.Return, r.Correct, r.Pnl
	case 30:
		o.PriceT30, o.ReturnT30, o.CorrectT30, o.PnlT30 = r.Price, r.Return, r.Correct, r.Pnl
	default:
		return fmt.Errorf("unknown horizon: %d", days)
	}
	return nil
}

// Horizon returns the stored result for one horizon.
func (o *PredictionOutcome) Horizon(days int) (HorizonResult, error) {
	switch days {
	case 1:
		return HorizonResult{o.PriceT1, o.ReturnT1, o.CorrectT1, o.PnlT1}, nil
	case 3:
		return HorizonResult{o.PriceT3, o.ReturnT3, o.CorrectT3, o.PnlT3}, nil
	case 7:
		return HorizonResult{o.PriceT7, o.ReturnT7, o.CorrectT7, o.PnlT7}, nil
	case 30:
		return HorizonResult{o.PriceT30, o.ReturnT30, o.CorrectT30, o.PnlT30}, nil
	}
	return HorizonResult{}, fmt.Errorf("unknown horizon: %d", days)
}

// AccuracyStats aggregates outcome correctness for one horizon.
type AccuracyStats struct {
	Timeframe     string  `json:"timeframe"`
	MinConfidence float64 `json:"min_confidence,omitempty"`
	Total         int     `json:"total"`
	Correct       int     `json:"correct"`
	Incorrect     int     `json:"incorrect"`
	Pending       int     `json:"pending"`
	Accuracy      float64 `json:"accuracy"`
}
