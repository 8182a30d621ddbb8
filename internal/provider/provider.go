package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/trogers1052/outcome-tracker/internal/models"
)

// AllProviders is the provider name carried by the aggregate error raised
// when every provider in a chain failed or returned no data.
const AllProviders = "all_providers"

// Provider is a single external daily-price source.
//
// FetchDailyHistory returns raw OHLCV records for [start, end] inclusive.
// An empty slice with a nil error means "no error, no data" — callers must
// treat that differently from a failure.
type Provider interface {
	Name() string
	// Available reports whether the provider is configured (API key set).
	// It never performs a network call.
	Available() bool
	FetchDailyHistory(ctx context.Context, symbol string, start, end time.Time) ([]models.RawPriceRecord, error)
}

// Error is a per-provider transport/auth/rate-limit/parse failure.
type Error struct {
	Provider string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsAggregate reports whether err is the chain-level "all providers
// exhausted" error.
func IsAggregate(err error) bool {
	pe, ok := err.(*Error)
	return ok && pe.Provider == AllProviders
}
