// Package pricestore is the caching layer in front of the provider chain.
// It checks persisted data before issuing network calls, retries the chain
// with backoff on total failure, and persists newly fetched records.
package pricestore

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/trogers1052/outcome-tracker/internal/metrics"
	"github.com/trogers1052/outcome-tracker/internal/models"
)

// PriceRepository is the persistence surface the client needs.
type PriceRepository interface {
	GetPriceRecords(symbol string, start, end time.Time) ([]*models.PriceRecord, error)
	GetPriceRecordOnDate(symbol string, date time.Time) (*models.PriceRecord, error)
	GetLatestPriceRecord(symbol string) (*models.PriceRecord, error)
	UpsertPriceRecords(records []models.RawPriceRecord, force bool) (int, error)
}

// Fetcher is implemented by *provider.Chain.
type Fetcher interface {
	FetchWithFallback(ctx context.Context, symbol string, start, end time.Time) ([]models.RawPriceRecord, error)
}

// Notifier is the one-way outbound alert port. Sends are fire-and-forget;
// the price store never depends on their success.
type Notifier interface {
	Notify(ctx context.Context, destination, message string)
}

// LatestPriceCache is the optional Redis hot cache for latest-price lookups.
type LatestPriceCache interface {
	GetLatestPrice(ctx context.Context, symbol string) (*models.PriceRecord, error)
	SetLatestPrice(ctx context.Context, record *models.PriceRecord, ttl time.Duration) error
	InvalidateLatestPrice(ctx context.Context, symbol string) error
}

// Sleeper abstracts the inter-retry delay so tests can simulate backoff
// without real waiting.
type Sleeper interface {
	Sleep(d time.Duration)
}

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// Options configures a Client.
type Options struct {
	Repo             PriceRepository
	Chain            Fetcher
	Cache            LatestPriceCache // may be nil
	Notifier         Notifier         // may be nil
	MaxRetries       int
	RetryDelay       time.Duration
	RetryBackoff     float64
	AlertDestination string
	CacheTTL         time.Duration
	Sleeper          Sleeper          // nil for real sleeps
	Now              func() time.Time // nil for time.Now
}

// Client is the caching price-fetch client.
type Client struct {
	repo      PriceRepository
	chain     Fetcher
	cache     LatestPriceCache
	notifier  Notifier
	maxRetries int
	retryDelay time.Duration
	backoff    float64
	alertDest  string
	cacheTTL   time.Duration
	sleeper    Sleeper
	now        func() time.Time
}

// New creates a price store client.
func New(opts Options) *Client {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}
	if opts.RetryBackoff <= 1 {
		opts.RetryBackoff = 2.0
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.Sleeper == nil {
		opts.Sleeper = realSleeper{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Client{
		repo:       opts.Repo,
		chain:      opts.Chain,
		cache:      opts.Cache,
		notifier:   opts.Notifier,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		backoff:    opts.RetryBackoff,
		alertDest:  opts.AlertDestination,
		cacheTTL:   opts.CacheTTL,
		sleeper:    opts.Sleeper,
		now:        opts.Now,
	}
}

// FetchPriceHistory returns persisted records for [start, end], fetching
// from the provider chain only when nothing is stored for the range.
//
// The cache policy is deliberately coarse: any stored row in the range
// counts as a hit even if the range is only partially covered. After retry
// exhaustion the method degrades to an empty slice and a fired alert;
// callers must treat empty as "no data available now", never as an error.
func (c *Client) FetchPriceHistory(ctx context.Context, symbol string, start, end time.Time, forceRefresh bool) ([]*models.PriceRecord, error) {
	start, end = DateOnly(start), DateOnly(end)

	if !forceRefresh {
		cached, err := c.repo.GetPriceRecords(symbol, start, end)
		if err != nil {
			return nil, fmt.Errorf("cache lookup for %s: %w", symbol, err)
		}
		if len(cached) > 0 {
			metrics.PriceCacheHits.Inc()
			return cached, nil
		}
		// A forced refresh bypasses the cache rather than missing it
		metrics.PriceCacheMisses.Inc()
	}

	raw, ok := c.fetchWithRetry(ctx, symbol, start, end)
	if !ok {
		return []*models.PriceRecord{}, nil
	}
	if len(raw) == 0 {
		return []*models.PriceRecord{}, nil
	}

	written, err := c.repo.UpsertPriceRecords(raw, forceRefresh)
	if err != nil {
		return nil, fmt.Errorf("persist prices for %s: %w", symbol, err)
	}
	log.Printf("pricestore: stored %d/%d records for %s", written, len(raw), symbol)

	if c.cache != nil {
		if err := c.cache.InvalidateLatestPrice(ctx, symbol); err != nil {
			log.Printf("Warning: pricestore: failed to invalidate cache for %s: %v", symbol, err)
		}
	}

	return c.repo.GetPriceRecords(symbol, start, end)
}

// fetchWithRetry calls the chain up to maxRetries times with multiplicative
// backoff. The second return is false when every attempt failed, in which
// case an alert has been dispatched.
func (c *Client) fetchWithRetry(ctx context.Context, symbol string, start, end time.Time) ([]models.RawPriceRecord, bool) {
	delay := c.retryDelay
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		raw, err := c.chain.FetchWithFallback(ctx, symbol, start, end)
		if err == nil {
			return raw, true
		}
		lastErr = err
		log.Printf("pricestore: fetch attempt %d/%d for %s failed: %v",
			attempt, c.maxRetries, symbol, err)

		if attempt < c.maxRetries {
			metrics.FetchRetries.Inc()
			c.sleeper.Sleep(delay)
			delay = time.Duration(float64(delay) * c.backoff)
		}
	}

	log.Printf("pricestore: giving up on %s after %d attempts", symbol, c.maxRetries)
	if c.notifier != nil {
		metrics.AlertsSent.Inc()
		c.notifier.Notify(ctx, c.alertDest,
			fmt.Sprintf("price fetch failed for %s after %d attempts: %v", symbol, c.maxRetries, lastErr))
	}
	return nil, false
}

// GetPriceOnDate returns the record for the exact date, or the nearest
// prior trading day within lookbackDays (weekends and holidays have no
// rows). Returns nil when the lookback is exhausted.
func (c *Client) GetPriceOnDate(ctx context.Context, symbol string, date time.Time, lookbackDays int) (*models.PriceRecord, error) {
	if lookbackDays <= 0 {
		lookbackDays = 7
	}
	day := DateOnly(date)

	for i := 0; i <= lookbackDays; i++ {
		record, err := c.repo.GetPriceRecordOnDate(symbol, day)
		if err != nil {
			return nil, err
		}
		if record != nil {
			return record, nil
		}
		day = day.AddDate(0, 0, -1)
	}
	return nil, nil
}

// GetLatestPrice returns the most recent record for a symbol, consulting
// the hot cache first. Returns nil when the symbol has no data.
func (c *Client) GetLatestPrice(ctx context.Context, symbol string) (*models.PriceRecord, error) {
	if c.cache != nil {
		record, err := c.cache.GetLatestPrice(ctx, symbol)
		if err == nil && record != nil {
			return record, nil
		}
	}

	record, err := c.repo.GetLatestPriceRecord(symbol)
	if err != nil || record == nil {
		return record, err
	}

	if c.cache != nil {
		if err := c.cache.SetLatestPrice(ctx, record, c.cacheTTL); err != nil {
			log.Printf("Warning: pricestore: failed to cache latest price for %s: %v", symbol, err)
		}
	}
	return record, nil
}

// DateOnly truncates a timestamp to its UTC calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
