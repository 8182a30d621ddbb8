// Package backfill reacts to new predictions: it registers their tickers,
// ensures price coverage, scores outcomes, and emits a terminal audit event.
package backfill

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/trogers1052/outcome-tracker/internal/models"
	"github.com/trogers1052/outcome-tracker/internal/pricestore"
)

// unsupportedPrefix marks symbols from an exchange no provider serves;
// they are skipped rather than fetched and invalidated.
const unsupportedPrefix = "CRYPTO:"

// TickerRegistry is the registry surface the orchestrator needs.
type TickerRegistry interface {
	RegisterTickers(symbols []string, sourcePredictionID string) (newlyRegistered, alreadyKnown []string, err error)
	MarkTickerInvalid(symbol, reason string) error
	UpdatePriceMetadata(symbol string) error
}

// PriceClient is implemented by *pricestore.Client.
type PriceClient interface {
	FetchPriceHistory(ctx context.Context, symbol string, start, end time.Time, forceRefresh bool) ([]*models.PriceRecord, error)
}

// Calculator is implemented by *outcome.Calculator.
type Calculator interface {
	CalculateOutcome(ctx context.Context, p *models.Prediction, forceRefresh bool) ([]*models.PredictionOutcome, error)
}

// Publisher emits the PRICES_BACKFILLED audit event.
type Publisher interface {
	PublishBackfillEvent(ctx context.Context, data models.BackfillEvent) error
}

// CoverageRepository reports stored price coverage per symbol.
type CoverageRepository interface {
	GetPriceCoverage(symbol string) (start, end *time.Time, count int, err error)
}

// PredictionSource loads predictions for the scheduled and one-time runs.
type PredictionSource interface {
	GetRecentPredictions(limit, daysBack int) ([]*models.Prediction, error)
}

// Options configures an Orchestrator.
type Options struct {
	Registry    TickerRegistry
	Prices      PriceClient
	Calculator  Calculator
	Publisher   Publisher // may be nil
	Coverage    CoverageRepository
	Predictions PredictionSource
	WindowDays  int // backfill look-back window, default 90
	Now         func() time.Time
}

// Orchestrator drives the register-backfill-score flow for predictions.
type Orchestrator struct {
	registry    TickerRegistry
	prices      PriceClient
	calculator  Calculator
	publisher   Publisher
	coverage    CoverageRepository
	predictions PredictionSource
	windowDays  int
	now         func() time.Time
}

// New creates an orchestrator.
func New(opts Options) *Orchestrator {
	if opts.WindowDays <= 0 {
		opts.WindowDays = 90
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		registry:    opts.Registry,
		prices:      opts.Prices,
		calculator:  opts.Calculator,
		publisher:   opts.Publisher,
		coverage:    opts.Coverage,
		predictions: opts.Predictions,
		windowDays:  opts.WindowDays,
		now:         opts.Now,
	}
}

// ProcessPrediction registers the prediction's assets, backfills price
// coverage for any symbol with none, computes outcomes, and publishes the
// PRICES_BACKFILLED audit event.
func (o *Orchestrator) ProcessPrediction(ctx context.Context, p *models.Prediction) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("invalid prediction")
	}

	newly, known, err := o.registry.RegisterTickers(p.Assets, p.ID)
	if err != nil {
		return fmt.Errorf("register tickers for %s: %w", p.ID, err)
	}

	symbols := append(append([]string{}, newly...), known...)
	backfilled := 0
	for _, symbol := range symbols {
		if strings.HasPrefix(symbol, unsupportedPrefix) {
			log.Printf("backfill: skipping unsupported symbol %s", symbol)
			continue
		}

		if o.ensureCoverage(ctx, symbol) {
			backfilled++
		}
	}

	outcomes, err := o.calculator.CalculateOutcome(ctx, p, false)
	if err != nil {
		return fmt.Errorf("calculate outcomes for %s: %w", p.ID, err)
	}

	log.Printf("backfill: prediction %s: %d symbols, %d backfilled, %d outcomes",
		p.ID, len(symbols), backfilled, len(outcomes))

	if o.publisher != nil {
		event := models.BackfillEvent{
			Symbols:            symbols,
			PredictionID:       p.ID,
			AssetsBackfilled:   backfilled,
			OutcomesCalculated: len(outcomes),
		}
		if err := o.publisher.PublishBackfillEvent(ctx, event); err != nil {
			// The audit event has no internal consumer; losing one is not
			// worth failing the prediction.
			log.Printf("Warning: backfill: failed to publish audit event for %s: %v", p.ID, err)
		}
	}
	return nil
}

// ensureCoverage fetches history for a symbol that has no stored prices.
// Reports true when new coverage was fetched. A symbol whose fetch returns
// zero records is marked invalid in the registry.
func (o *Orchestrator) ensureCoverage(ctx context.Context, symbol string) bool {
	_, _, count, err := o.coverage.GetPriceCoverage(symbol)
	if err != nil {
		log.Printf("backfill: coverage check failed for %s: %v", symbol, err)
		return false
	}
	if count > 0 {
		return false
	}

	end := pricestore.DateOnly(o.now())
	start := end.AddDate(0, 0, -o.windowDays)

	records, err := o.prices.FetchPriceHistory(ctx, symbol, start, end, false)
	if err != nil {
		log.Printf("backfill: fetch failed for %s: %v", symbol, err)
		return false
	}
	if len(records) == 0 {
		log.Printf("backfill: no price data for %s, marking invalid", symbol)
		if err := o.registry.MarkTickerInvalid(symbol, "no price data returned by any provider"); err != nil {
			log.Printf("Warning: backfill: failed to invalidate %s: %v", symbol, err)
		}
		return false
	}

	if err := o.registry.UpdatePriceMetadata(symbol); err != nil {
		log.Printf("Warning: backfill: metadata update failed for %s: %v", symbol, err)
	}
	return true
}

// Result reports counts from a multi-prediction run.
type Result struct {
	PredictionsProcessed int `json:"predictions_processed"`
	Errors               int `json:"errors"`
}

// ProcessRecentPredictions processes every completed prediction from the
// last daysBack days. Per-prediction failures are counted, never fatal.
func (o *Orchestrator) ProcessRecentPredictions(ctx context.Context, daysBack int) (*Result, error) {
	return o.processAll(ctx, daysBack)
}

// BackfillAllMissing processes every historical prediction, fetching
// coverage only for assets that have none.
func (o *Orchestrator) BackfillAllMissing(ctx context.Context) (*Result, error) {
	return o.processAll(ctx, 0)
}

func (o *Orchestrator) processAll(ctx context.Context, daysBack int) (*Result, error) {
	predictions, err := o.predictions.GetRecentPredictions(0, daysBack)
	if err != nil {
		return nil, fmt.Errorf("load predictions: %w", err)
	}

	result := &Result{}
	for _, p := range predictions {
		result.PredictionsProcessed++
		if err := o.ProcessPrediction(ctx, p); err != nil {
			log.Printf("backfill: prediction %s failed: %v", p.ID, err)
			result.Errors++
		}
	}

	log.Printf("backfill: run complete: %d predictions, %d errors",
		result.PredictionsProcessed, result.Errors)
	return result, nil
}
