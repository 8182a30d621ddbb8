package pricestore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trogers1052/outcome-tracker/internal/metrics"
	"github.com/trogers1052/outcome-tracker/internal/models"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type mockPriceRepo struct {
	mu      sync.Mutex
	records map[string][]*models.PriceRecord // symbol -> rows, any order
	getErr  error
}

func newMockPriceRepo() *mockPriceRepo {
	return &mockPriceRepo{records: make(map[string][]*models.PriceRecord)}
}

func (m *mockPriceRepo) add(symbol string, date time.Time, close float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[symbol] = append(m.records[symbol], &models.PriceRecord{
		Symbol: symbol,
		Date:   DateOnly(date),
		Close:  decimal.NewFromFloat(close),
	})
}

func (m *mockPriceRepo) GetPriceRecords(symbol string, start, end time.Time) ([]*models.PriceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	var out []*models.PriceRecord
	for _, r := range m.records[symbol] {
		if !r.Date.Before(start) && !r.Date.After(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockPriceRepo) GetPriceRecordOnDate(symbol string, date time.Time) (*models.PriceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records[symbol] {
		if r.Date.Equal(DateOnly(date)) {
			return r, nil
		}
	}
	return nil, nil
}

func (m *mockPriceRepo) GetLatestPriceRecord(symbol string) (*models.PriceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.PriceRecord
	for _, r := range m.records[symbol] {
		if latest == nil || r.Date.After(latest.Date) {
			latest = r
		}
	}
	return latest, nil
}

func (m *mockPriceRepo) UpsertPriceRecords(records []models.RawPriceRecord, force bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	written := 0
	for _, raw := range records {
		exists := false
		for _, r := range m.records[raw.Symbol] {
			if r.Date.Equal(raw.Date) {
				exists = true
				break
			}
		}
		if exists && !force {
			continue
		}
		m.records[raw.Symbol] = append(m.records[raw.Symbol], &models.PriceRecord{
			Symbol: raw.Symbol,
			Date:   raw.Date,
			Close:  raw.Close,
		})
		written++
	}
	return written, nil
}

type mockChain struct {
	mu      sync.Mutex
	calls   int
	records []models.RawPriceRecord
	errs    []error // consumed per call; nil entry means success
}

func (m *mockChain) FetchWithFallback(ctx context.Context, symbol string, start, end time.Time) ([]models.RawPriceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return m.records, nil
}

func (m *mockChain) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (m *mockNotifier) Notify(ctx context.Context, destination, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, message)
}

func (m *mockNotifier) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.messages...)
}

type fakeSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (f *fakeSleeper) Sleep(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delays = append(f.delays, d)
}

func (f *fakeSleeper) Delays() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.delays...)
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// ---------------------------------------------------------------------------
// FetchPriceHistory
// ---------------------------------------------------------------------------

func TestFetchPriceHistory_SecondCallHitsCache(t *testing.T) {
	repo := newMockPriceRepo()
	chain := &mockChain{records: []models.RawPriceRecord{
		{Symbol: "AAPL", Date: day("2024-06-03"), Close: decimal.NewFromFloat(194.35)},
		{Symbol: "AAPL", Date: day("2024-06-04"), Close: decimal.NewFromFloat(196.45)},
	}}
	client := New(Options{Repo: repo, Chain: chain, Sleeper: &fakeSleeper{}})

	start, end := day("2024-06-01"), day("2024-06-30")

	first, err := client.FetchPriceHistory(context.Background(), "AAPL", start, end, false)
	require.NoError(t, err)
	assert.Len(t, first, 2)
	assert.Equal(t, 1, chain.Calls())

	second, err := client.FetchPriceHistory(context.Background(), "AAPL", start, end, false)
	require.NoError(t, err)
	assert.Len(t, second, 2)
	assert.Equal(t, 1, chain.Calls(), "second identical call should not reach the network")
}

func TestFetchPriceHistory_ForceRefreshBypassesCache(t *testing.T) {
	repo := newMockPriceRepo()
	repo.add("AAPL", day("2024-06-03"), 190.00)
	chain := &mockChain{records: []models.RawPriceRecord{
		{Symbol: "AAPL", Date: day("2024-06-03"), Close: decimal.NewFromFloat(194.35)},
	}}
	client := New(Options{Repo: repo, Chain: chain, Sleeper: &fakeSleeper{}})

	_, err := client.FetchPriceHistory(context.Background(), "AAPL", day("2024-06-01"), day("2024-06-30"), true)
	require.NoError(t, err)
	assert.Equal(t, 1, chain.Calls())
}

func TestFetchPriceHistory_ForceRefreshIsNotACacheMiss(t *testing.T) {
	repo := newMockPriceRepo()
	chain := &mockChain{records: []models.RawPriceRecord{
		{Symbol: "AAPL", Date: day("2024-06-03"), Close: decimal.NewFromFloat(194.35)},
	}}
	client := New(Options{Repo: repo, Chain: chain, Sleeper: &fakeSleeper{}})

	misses := testutil.ToFloat64(metrics.PriceCacheMisses)
	_, err := client.FetchPriceHistory(context.Background(), "AAPL", day("2024-06-01"), day("2024-06-30"), true)
	require.NoError(t, err)
	assert.Equal(t, misses, testutil.ToFloat64(metrics.PriceCacheMisses))

	_, err = client.FetchPriceHistory(context.Background(), "MSFT", day("2024-06-01"), day("2024-06-30"), false)
	require.NoError(t, err)
	assert.Equal(t, misses+1, testutil.ToFloat64(metrics.PriceCacheMisses))
}

// A single stored row anywhere in the range suppresses the fetch, even when
// the rest of the range is missing. Documented behavior; keep in sync with
// FetchPriceHistory's doc comment if the policy ever tightens.
func TestFetchPriceHistory_PartialCoverageCountsAsHit(t *testing.T) {
	repo := newMockPriceRepo()
	repo.add("AAPL", day("2024-06-03"), 194.35)
	chain := &mockChain{}
	client := New(Options{Repo: repo, Chain: chain, Sleeper: &fakeSleeper{}})

	records, err := client.FetchPriceHistory(context.Background(), "AAPL", day("2024-06-01"), day("2024-06-30"), false)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 0, chain.Calls())
}

func TestFetchPriceHistory_RetriesWithBackoff(t *testing.T) {
	repo := newMockPriceRepo()
	chain := &mockChain{
		errs: []error{errors.New("upstream down"), errors.New("upstream down"), nil},
		records: []models.RawPriceRecord{
			{Symbol: "AAPL", Date: day("2024-06-03"), Close: decimal.NewFromFloat(194.35)},
		},
	}
	sleeper := &fakeSleeper{}
	client := New(Options{
		Repo:         repo,
		Chain:        chain,
		Sleeper:      sleeper,
		MaxRetries:   3,
		RetryDelay:   2 * time.Second,
		RetryBackoff: 2.0,
	})

	records, err := client.FetchPriceHistory(context.Background(), "AAPL", day("2024-06-01"), day("2024-06-30"), false)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 3, chain.Calls())
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, sleeper.Delays())
}

func TestFetchPriceHistory_ExhaustionReturnsEmptyAndAlerts(t *testing.T) {
	repo := newMockPriceRepo()
	chain := &mockChain{
		errs: []error{errors.New("down"), errors.New("down"), errors.New("down")},
	}
	notifier := &mockNotifier{}
	client := New(Options{
		Repo:             repo,
		Chain:            chain,
		Notifier:         notifier,
		Sleeper:          &fakeSleeper{},
		MaxRetries:       3,
		AlertDestination: "ops",
	})

	records, err := client.FetchPriceHistory(context.Background(), "NVDA", day("2024-06-01"), day("2024-06-30"), false)
	require.NoError(t, err, "exhaustion degrades, it does not error")
	assert.Empty(t, records)
	assert.Equal(t, 3, chain.Calls())

	messages := notifier.Messages()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "NVDA")
	assert.Contains(t, messages[0], "3 attempts")
}

func TestFetchPriceHistory_ProviderEmptyIsNotAnError(t *testing.T) {
	repo := newMockPriceRepo()
	chain := &mockChain{}
	client := New(Options{Repo: repo, Chain: chain, Sleeper: &fakeSleeper{}})

	records, err := client.FetchPriceHistory(context.Background(), "ZZZZ", day("2024-06-01"), day("2024-06-30"), false)
	require.NoError(t, err)
	assert.Empty(t, records)
}

// ---------------------------------------------------------------------------
// GetPriceOnDate
// ---------------------------------------------------------------------------

func TestGetPriceOnDate_ExactHit(t *testing.T) {
	repo := newMockPriceRepo()
	repo.add("AAPL", day("2024-06-03"), 194.35)
	client := New(Options{Repo: repo, Chain: &mockChain{}, Sleeper: &fakeSleeper{}})

	record, err := client.GetPriceOnDate(context.Background(), "AAPL", day("2024-06-03"), 7)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "194.35", record.Close.String())
}

func TestGetPriceOnDate_WalksBackOverWeekend(t *testing.T) {
	repo := newMockPriceRepo()
	// Friday close; Saturday and Sunday have no rows
	repo.add("AAPL", day("2024-06-07"), 196.89)
	client := New(Options{Repo: repo, Chain: &mockChain{}, Sleeper: &fakeSleeper{}})

	record, err := client.GetPriceOnDate(context.Background(), "AAPL", day("2024-06-09"), 7)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "2024-06-07", record.Date.Format("2006-01-02"))
}

func TestGetPriceOnDate_LookbackExhausted(t *testing.T) {
	repo := newMockPriceRepo()
	repo.add("AAPL", day("2024-05-01"), 170.00)
	client := New(Options{Repo: repo, Chain: &mockChain{}, Sleeper: &fakeSleeper{}})

	record, err := client.GetPriceOnDate(context.Background(), "AAPL", day("2024-06-09"), 7)
	require.NoError(t, err)
	assert.Nil(t, record)
}

// ---------------------------------------------------------------------------
// GetLatestPrice
// ---------------------------------------------------------------------------

type mockLatestCache struct {
	mu      sync.Mutex
	entries map[string]*models.PriceRecord
	sets    int
}

func newMockLatestCache() *mockLatestCache {
	return &mockLatestCache{entries: make(map[string]*models.PriceRecord)}
}

func (m *mockLatestCache) GetLatestPrice(ctx context.Context, symbol string) (*models.PriceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[symbol], nil
}

func (m *mockLatestCache) SetLatestPrice(ctx context.Context, record *models.PriceRecord, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[record.Symbol] = record
	m.sets++
	return nil
}

func (m *mockLatestCache) InvalidateLatestPrice(ctx context.Context, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, symbol)
	return nil
}

func TestGetLatestPrice_PopulatesCacheOnMiss(t *testing.T) {
	repo := newMockPriceRepo()
	repo.add("AAPL", day("2024-06-03"), 194.35)
	repo.add("AAPL", day("2024-06-04"), 196.45)
	cache := newMockLatestCache()
	client := New(Options{Repo: repo, Chain: &mockChain{}, Cache: cache, Sleeper: &fakeSleeper{}})

	record, err := client.GetLatestPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "2024-06-04", record.Date.Format("2006-01-02"))
	assert.Equal(t, 1, cache.sets)

	// second call served from the cache; no new set
	_, err = client.GetLatestPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)
}

func TestGetLatestPrice_NoData(t *testing.T) {
	client := New(Options{Repo: newMockPriceRepo(), Chain: &mockChain{}, Sleeper: &fakeSleeper{}})

	record, err := client.GetLatestPrice(context.Background(), "ZZZZ")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestDateOnly(t *testing.T) {
	ts := time.Date(2024, 6, 3, 15, 30, 45, 0, time.FixedZone("EST", -5*3600))
	got := DateOnly(ts)
	assert.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), got)
	assert.Equal(t, time.UTC, got.Location())
}
