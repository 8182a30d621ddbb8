package provider

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/trogers1052/outcome-tracker/internal/metrics"
	"github.com/trogers1052/outcome-tracker/internal/models"
)

// Chain tries multiple providers in a fixed priority order. The first
// provider to return non-empty data wins; there is no load balancing.
type Chain struct {
	providers []Provider
}

// NewChain builds a chain from the given providers, keeping only those
// whose Available() is true at construction time. A chain with no usable
// providers is legal but degenerate: it logs a warning here and every fetch
// comes back empty.
func NewChain(providers ...Provider) *Chain {
	available := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if !p.Available() {
			log.Printf("provider chain: skipping %s (not configured)", p.Name())
			continue
		}
		available = append(available, p)
	}
	if len(available) == 0 {
		log.Printf("Warning: provider chain has no available providers; all fetches will return empty")
	}
	return &Chain{providers: available}
}

// Providers returns the available providers in priority order.
func (c *Chain) Providers() []Provider {
	return c.providers
}

// FetchWithFallback tries each provider in registration order and returns
// the first non-empty result. Errors and empty results are recorded and the
// next provider is tried. When every provider fails or comes back empty, an
// aggregate *Error naming AllProviders is returned with all per-provider
// failures concatenated. An empty chain yields empty results, not an error.
func (c *Chain) FetchWithFallback(ctx context.Context, symbol string, start, end time.Time) ([]models.RawPriceRecord, error) {
	if len(c.providers) == 0 {
		log.Printf("Warning: provider chain: no available providers for %s", symbol)
		return []models.RawPriceRecord{}, nil
	}

	var failures []string

	for _, p := range c.providers {
		began := time.Now()
		records, err := p.FetchDailyHistory(ctx, symbol, start, end)
		metrics.ProviderLatency.WithLabelValues(p.Name()).Observe(time.Since(began).Seconds())

		if err != nil {
			metrics.ProviderFetches.WithLabelValues(p.Name(), "error").Inc()
			log.Printf("provider chain: %s failed for %s: %v", p.Name(), symbol, err)
			failures = append(failures, fmt.Sprintf("%s: %v", p.Name(), err))
			continue
		}
		if len(records) == 0 {
			metrics.ProviderFetches.WithLabelValues(p.Name(), "empty").Inc()
			log.Printf("provider chain: %s returned no data for %s", p.Name(), symbol)
			failures = append(failures, fmt.Sprintf("%s: no data", p.Name()))
			continue
		}
		metrics.ProviderFetches.WithLabelValues(p.Name(), "success").Inc()
		return records, nil
	}

	return nil, &Error{
		Provider: AllProviders,
		Message:  fmt.Sprintf("all providers failed for %s: %s", symbol, strings.Join(failures, "; ")),
	}
}
