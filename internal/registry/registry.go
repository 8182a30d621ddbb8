// Package registry governs the lifecycle of tracked symbols independently
// of the price data itself.
package registry

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/trogers1052/outcome-tracker/internal/database"
	"github.com/trogers1052/outcome-tracker/internal/models"
)

// maxSymbolLen bounds accepted ticker symbols; anything longer is silently
// rejected as malformed.
const maxSymbolLen = 10

// maxReasonLen bounds the stored status reason.
const maxReasonLen = 255

// TickerRepository is the persistence surface the registry needs.
type TickerRepository interface {
	TickerExists(symbol string) (bool, error)
	CreateTickersBatch(tickers []*models.Ticker) error
	UpdateTickerStatus(symbol, status, reason string) error
	UpdateTickerPriceMetadata(symbol string, start, end time.Time, count int, lastUpdate time.Time) error
	GetPriceCoverage(symbol string) (start, end *time.Time, count int, err error)
	GetTickerStats() (*models.TickerStats, error)
}

// Registry manages ticker registration and status.
type Registry struct {
	repo TickerRepository
	now  func() time.Time
}

// New creates a registry. now may be nil for time.Now.
func New(repo TickerRepository, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{repo: repo, now: now}
}

// NormalizeSymbol trims and uppercases a symbol. The second return is false
// for symbols the registry silently rejects: empty, oversized, or
// containing whitespace.
func NormalizeSymbol(symbol string) (string, bool) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" || len(s) > maxSymbolLen || strings.ContainsAny(s, " \t") {
		return "", false
	}
	return s, true
}

// RegisterTickers registers a batch of symbols, returning which were newly
// registered and which were already known. Malformed symbols are excluded
// from both lists. The batch commits once; a uniqueness race with a
// concurrent registration is absorbed, since the registry is idempotent by
// symbol.
func (r *Registry) RegisterTickers(symbols []string, sourcePredictionID string) (newlyRegistered, alreadyKnown []string, err error) {
	seen := make(map[string]bool)
	var toInsert []*models.Ticker

	for _, raw := range symbols {
		symbol, ok := NormalizeSymbol(raw)
		if !ok {
			log.Printf("registry: skipping malformed symbol %q", raw)
			continue
		}
		if seen[symbol] {
			continue
		}
		seen[symbol] = true

		exists, err := r.repo.TickerExists(symbol)
		if err != nil {
			return nil, nil, fmt.Errorf("check ticker %s: %w", symbol, err)
		}
		if exists {
			alreadyKnown = append(alreadyKnown, symbol)
			continue
		}

		toInsert = append(toInsert, &models.Ticker{
			Symbol:             symbol,
			Status:             models.TickerStatusActive,
			FirstSeenDate:      r.now(),
			SourcePredictionID: sourcePredictionID,
		})
		newlyRegistered = append(newlyRegistered, symbol)
	}

	if len(toInsert) > 0 {
		if err := r.repo.CreateTickersBatch(toInsert); err != nil {
			if database.IsUniqueViolation(err) {
				// Concurrent registration of the same symbol; the other
				// writer won and the batch rolled back.
				log.Printf("registry: registration race absorbed: %v", err)
				return newlyRegistered, alreadyKnown, nil
			}
			return nil, nil, fmt.Errorf("register tickers: %w", err)
		}
		log.Printf("registry: registered %d new tickers", len(toInsert))
	}

	return newlyRegistered, alreadyKnown, nil
}

// MarkTickerInvalid sets a ticker's status to invalid with a bounded reason
// string. Unknown symbols are a no-op.
func (r *Registry) MarkTickerInvalid(symbol, reason string) error {
	normalized, ok := NormalizeSymbol(symbol)
	if !ok {
		return nil
	}
	if len(reason) > maxReasonLen {
		reason = reason[:maxReasonLen]
	}
	return r.repo.UpdateTickerStatus(normalized, models.TickerStatusInvalid, reason)
}

// UpdatePriceMetadata recomputes a ticker's price-coverage metadata from
// stored price records. When zero records exist nothing is written, so
// existing metadata is never clobbered with empty stats.
func (r *Registry) UpdatePriceMetadata(symbol string) error {
	normalized, ok := NormalizeSymbol(symbol)
	if !ok {
		return nil
	}

	start, end, count, err := r.repo.GetPriceCoverage(normalized)
	if err != nil {
		return fmt.Errorf("price coverage for %s: %w", normalized, err)
	}
	if count == 0 || start == nil || end == nil {
		return nil
	}
	return r.repo.UpdateTickerPriceMetadata(normalized, *start, *end, count, r.now())
}

// Stats returns aggregate registry statistics.
func (r *Registry) Stats() (*models.TickerStats, error) {
	return r.repo.GetTickerStats()
}
