// Package outcome scores predictions against realized price movement at
// fixed forward horizons.
package outcome

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/outcome-tracker/internal/metrics"
	"github.com/trogers1052/outcome-tracker/internal/models"
	"github.com/trogers1052/outcome-tracker/internal/pricestore"
)

var oneHundred = decimal.NewFromInt(100)

// OutcomeRepository is the persistence surface the calculator needs.
type OutcomeRepository interface {
	GetOutcome(predictionID, symbol string) (*models.PredictionOutcome, error)
	UpsertOutcome(o *models.PredictionOutcome) error
	GetOutcomes(minConfidence float64) ([]*models.PredictionOutcome, error)
	GetRecentPredictions(limit, daysBack int) ([]*models.Prediction, error)
}

// PriceSource is implemented by *pricestore.Client.
type PriceSource interface {
	GetPriceOnDate(ctx context.Context, symbol string, date time.Time, lookbackDays int) (*models.PriceRecord, error)
	FetchPriceHistory(ctx context.Context, symbol string, start, end time.Time, forceRefresh bool) ([]*models.PriceRecord, error)
}

// Options configures a Calculator.
type Options struct {
	Repo         OutcomeRepository
	Prices       PriceSource
	Threshold    float64 // correctness band in percent, default 0.5
	PositionSize float64 // simulated notional, default 1000
	LookbackDays int     // market-closure lookback, default 7
	Now          func() time.Time
}

// Calculator computes prediction outcomes.
type Calculator struct {
	repo         OutcomeRepository
	prices       PriceSource
	threshold    decimal.Decimal
	positionSize decimal.Decimal
	lookbackDays int
	now          func() time.Time
}

// New creates a calculator.
func New(opts Options) *Calculator {
	if opts.Threshold == 0 {
		opts.Threshold = 0.5
	}
	if opts.PositionSize == 0 {
		opts.PositionSize = 1000
	}
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = 7
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Calculator{
		repo:         opts.Repo,
		prices:       opts.Prices,
		threshold:    decimal.NewFromFloat(opts.Threshold),
		positionSize: decimal.NewFromFloat(opts.PositionSize),
		lookbackDays: opts.LookbackDays,
		now:          opts.Now,
	}
}

// CalculateReturn computes the percentage return (final-initial)/initial*100.
// The result is undefined (invalid NullDecimal) when either price is null
// or the initial price is zero.
func CalculateReturn(initial, final decimal.NullDecimal) decimal.NullDecimal {
	if !initial.Valid || !final.Valid || initial.Decimal.IsZero() {
		return decimal.NullDecimal{}
	}
	ret := final.Decimal.Sub(initial.Decimal).Div(initial.Decimal).Mul(oneHundred)
	return decimal.NullDecimal{Decimal: ret, Valid: true}
}

// IsCorrect evaluates a directional call against a realized return.
// Bullish is correct above +threshold, bearish below -threshold, neutral
// within the band. An unknown sentiment or undefined return yields nil
// (undefined), which is distinct from false.
func IsCorrect(sentiment string, ret decimal.NullDecimal, threshold decimal.Decimal) *bool {
	if !ret.Valid {
		return nil
	}
	var correct bool
	switch strings.ToLower(sentiment) {
	case models.SentimentBullish:
		correct = ret.Decimal.GreaterThan(threshold)
	case models.SentimentBearish:
		correct = ret.Decimal.LessThan(threshold.Neg())
	case models.SentimentNeutral:
		correct = ret.Decimal.Abs().LessThanOrEqual(threshold)
	default:
		return nil
	}
	return &correct
}

// CalculatePnl converts a percentage return into simulated P&L on the
// configured notional. Undefined returns yield an undefined P&L.
func CalculatePnl(ret decimal.NullDecimal, positionSize decimal.Decimal) decimal.NullDecimal {
	if !ret.Valid {
		return decimal.NullDecimal{}
	}
	pnl := ret.Decimal.Div(oneHundred).Mul(positionSize)
	return decimal.NullDecimal{Decimal: pnl, Valid: true}
}

// CalculateOutcome computes (or returns existing) outcomes for every asset
// of one prediction. Predictions with no usable assets, no timestamp, or
// that bypassed analysis are skipped entirely. A per-asset failure is
// logged and does not abort the remaining assets, but any failure is
// reported in the returned error alongside whatever outcomes succeeded.
func (c *Calculator) CalculateOutcome(ctx context.Context, p *models.Prediction, forceRefresh bool) ([]*models.PredictionOutcome, error) {
	if p == nil || len(p.Assets) == 0 || p.CreatedAt.IsZero() || p.SkippedAnalysis {
		return nil, nil
	}

	var outcomes []*models.PredictionOutcome
	var failed []string
	for _, asset := range p.Assets {
		symbol := strings.ToUpper(strings.TrimSpace(asset))
		if symbol == "" {
			continue
		}

		o, err := c.calculateAssetOutcome(ctx, p, symbol, forceRefresh)
		if err != nil {
			log.Printf("outcome: failed for %s/%s: %v", p.ID, symbol, err)
			failed = append(failed, symbol)
			continue
		}
		if o != nil {
			outcomes = append(outcomes, o)
		}
	}
	if len(failed) > 0 {
		return outcomes, fmt.Errorf("outcome calculation failed for %s", strings.Join(failed, ", "))
	}
	return outcomes, nil
}

func (c *Calculator) calculateAssetOutcome(ctx context.Context, p *models.Prediction, symbol string, forceRefresh bool) (*models.PredictionOutcome, error) {
	if !forceRefresh {
		existing, err := c.repo.GetOutcome(p.ID, symbol)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	predDate := pricestore.DateOnly(p.CreatedAt)

	anchor, err := c.resolvePrice(ctx, symbol, predDate)
	if err != nil {
		return nil, err
	}
	if anchor == nil {
		// No price even after an on-demand fetch; abandon this asset.
		log.Printf("outcome: no anchor price for %s on %s, abandoning",
			symbol, predDate.Format("2006-01-02"))
		return nil, nil
	}

	sentiment := strings.ToLower(p.SentimentFor(symbol))
	if sentiment == "" {
		sentiment = strings.ToLower(p.SentimentFor(strings.ToLower(symbol)))
	}

	anchorPrice := decimal.NullDecimal{Decimal: anchor.Close, Valid: true}
	o := &models.PredictionOutcome{
		PredictionID:      p.ID,
		Symbol:            symbol,
		PredictionDate:    predDate,
		Sentiment:         sentiment,
		Confidence:        p.Confidence,
		PriceAtPrediction: anchorPrice,
		IsComplete:        true,
		LastPriceUpdate:   c.now(),
	}

	today := pricestore.DateOnly(c.now())
	for _, days := range models.Horizons {
		target := predDate.AddDate(0, 0, days)
		if target.After(today) {
			o.IsComplete = false
			continue
		}

		record, err := c.resolvePrice(ctx, symbol, target)
		if err != nil {
			return nil, err
		}
		if record == nil {
			o.IsComplete = false
			continue
		}

		price := decimal.NullDecimal{Decimal: record.Close, Valid: true}
		ret := CalculateReturn(anchorPrice, price)
		result := models.HorizonResult{
			Price:   price,
			Return:  ret,
			Correct: IsCorrect(sentiment, ret, c.threshold),
			Pnl:     CalculatePnl(ret, c.positionSize),
		}
		if err := o.SetHorizon(days, result); err != nil {
			return nil, err
		}
	}

	if err := c.repo.UpsertOutcome(o); err != nil {
		return nil, err
	}
	metrics.OutcomesComputed.Inc()
	return o, nil
}

// resolvePrice finds a price on or shortly before date, issuing an
// on-demand fetch for a lookback window when nothing is stored.
func (c *Calculator) resolvePrice(ctx context.Context, symbol string, date time.Time) (*models.PriceRecord, error) {
	record, err := c.prices.GetPriceOnDate(ctx, symbol, date, c.lookbackDays)
	if err != nil {
		return nil, err
	}
	if record != nil {
		return record, nil
	}

	windowStart := date.AddDate(0, 0, -c.lookbackDays)
	if _, err := c.prices.FetchPriceHistory(ctx, symbol, windowStart, date, false); err != nil {
		return nil, err
	}
	return c.prices.GetPriceOnDate(ctx, symbol, date, c.lookbackDays)
}

// BatchResult reports counts from a batch outcome run.
type BatchResult struct {
	PredictionsProcessed int `json:"predictions_processed"`
	OutcomesCalculated   int `json:"outcomes_calculated"`
	Skipped              int `json:"skipped"`
	Errors               int `json:"errors"`
}

// CalculateOutcomesForAllPredictions applies the calculator to completed
// predictions newest-first. One bad prediction never aborts the batch; it
// is counted and the run continues.
func (c *Calculator) CalculateOutcomesForAllPredictions(ctx context.Context, limit, daysBack int, forceRefresh bool) (*BatchResult, error) {
	predictions, err := c.repo.GetRecentPredictions(limit, daysBack)
	if err != nil {
		return nil, fmt.Errorf("load predictions: %w", err)
	}

	result := &BatchResult{}
	for _, p := range predictions {
		result.PredictionsProcessed++

		outcomes, err := c.CalculateOutcome(ctx, p, forceRefresh)
		result.OutcomesCalculated += len(outcomes)
		if err != nil {
			log.Printf("outcome: batch error for prediction %s: %v", p.ID, err)
			result.Errors++
			continue
		}
		if len(outcomes) == 0 {
			result.Skipped++
		}
	}

	log.Printf("outcome: batch complete: %d predictions, %d outcomes, %d skipped, %d errors",
		result.PredictionsProcessed, result.OutcomesCalculated, result.Skipped, result.Errors)
	return result, nil
}

// HorizonFromTimeframe maps a timeframe string ("1d", "3d", "7d", "30d")
// to its horizon in days.
func HorizonFromTimeframe(timeframe string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(timeframe)) {
	case "1d", "t1":
		return 1, nil
	case "3d", "t3":
		return 3, nil
	case "7d", "t7":
		return 7, nil
	case "30d", "t30":
		return 30, nil
	}
	return 0, fmt.Errorf("unknown timeframe: %s", timeframe)
}

// GetAccuracyStats counts correct/incorrect/pending outcomes for one
// horizon over all stored outcomes, optionally confidence-filtered.
// Accuracy is 0 when nothing has resolved yet.
func (c *Calculator) GetAccuracyStats(timeframe string, minConfidence float64) (*models.AccuracyStats, error) {
	days, err := HorizonFromTimeframe(timeframe)
	if err != nil {
		return nil, err
	}

	outcomes, err := c.repo.GetOutcomes(minConfidence)
	if err != nil {
		return nil, fmt.Errorf("load outcomes: %w", err)
	}

	stats := &models.AccuracyStats{
		Timeframe:     timeframe,
		MinConfidence: minConfidence,
	}
	for _, o := range outcomes {
		stats.Total++
		r, err := o.Horizon(days)
		if err != nil {
			return nil, err
		}
		switch {
		case r.Correct == nil:
			stats.Pending++
		case *r.Correct:
			stats.Correct++
		default:
			stats.Incorrect++
		}
	}

	if resolved := stats.Correct + stats.Incorrect; resolved > 0 {
		stats.Accuracy = float64(stats.Correct) / float64(resolved) * 100
	}
	return stats, nil
}
