package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/outcome-tracker/internal/models"
)

const alphaVantageName = "alpha_vantage"

// AlphaVantage fetches daily adjusted time series from the Alpha Vantage
// REST API. It is the primary source when configured.
type AlphaVantage struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewAlphaVantage creates an Alpha Vantage provider. baseURL may be empty
// to use the public endpoint.
func NewAlphaVantage(apiKey, baseURL string, timeout time.Duration) *AlphaVantage {
	if baseURL == "" {
		baseURL = "https://www.alphavantage.co"
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &AlphaVantage{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (a *AlphaVantage) Name() string {
	return alphaVantageName
}

func (a *AlphaVantage) Available() bool {
	return a.apiKey != ""
}

// avDailyResponse mirrors the TIME_SERIES_DAILY_ADJUSTED payload. Error
// responses come back with 200 status and one of the message fields set.
type avDailyResponse struct {
	ErrorMessage string                       `json:"Error Message"`
	Note         string                       `json:"Note"`
	Information  string                       `json:"Information"`
	TimeSeries   map[string]map[string]string `json:"Time Series (Daily)"`
}

// FetchDailyHistory retrieves daily OHLCV records for [start, end].
func (a *AlphaVantage) FetchDailyHistory(ctx context.Context, symbol string, start, end time.Time) ([]models.RawPriceRecord, error) {
	q := url.Values{}
	q.Set("function", "TIME_SERIES_DAILY_ADJUSTED")
	q.Set("symbol", symbol)
	q.Set("outputsize", "full")
	q.Set("apikey", a.apiKey)

	reqURL := a.baseURL + "/query?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &Error{Provider: alphaVantageName, Message: "build request", Err: err}
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &Error{Provider: alphaVantageName, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Provider: alphaVantageName, Message: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	var payload avDailyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &Error{Provider: alphaVantageName, Message: "decode response", Err: err}
	}

	if payload.ErrorMessage != "" {
		return nil, &Error{Provider: alphaVantageName, Message: "API error: " + payload.ErrorMessage}
	}
	// Rate-limit notices arrive as Note or Information with a 200 status
	if payload.Note != "" {
		return nil, &Error{Provider: alphaVantageName, Message: "rate limited: " + payload.Note}
	}
	if payload.Information != "" {
		return nil, &Error{Provider: alphaVantageName, Message: "API notice: " + payload.Information}
	}

	records := make([]models.RawPriceRecord, 0, len(payload.TimeSeries))
	for dateStr, row := range payload.TimeSeries {
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			log.Printf("Warning: alpha_vantage: skipping malformed date %q for %s: %v", dateStr, symbol, err)
			continue
		}
		if date.Before(start) || date.After(end) {
			continue
		}

		rec, err := a.parseRow(symbol, date, row)
		if err != nil {
			log.Printf("Warning: alpha_vantage: skipping malformed row %s/%s: %v", symbol, dateStr, err)
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })
	return records, nil
}

func (a *AlphaVantage) parseRow(symbol string, date time.Time, row map[string]string) (models.RawPriceRecord, error) {
	open, err := decimal.NewFromString(row["1. open"])
	if err != nil {
		return models.RawPriceRecord{}, fmt.Errorf("open: %w", err)
	}
	high, err := decimal.NewFromString(row["2. high"])
	if err != nil {
		return models.RawPriceRecord{}, fmt.Errorf("high: %w", err)
	}
	low, err := decimal.NewFromString(row["3. low"])
	if err != nil {
		return models.RawPriceRecord{}, fmt.Errorf("low: %w", err)
	}
	closePx, err := decimal.NewFromString(row["4. close"])
	if err != nil {
		return models.RawPriceRecord{}, fmt.Errorf("close: %w", err)
	}
	adjClose, err := decimal.NewFromString(row["5. adjusted close"])
	if err != nil {
		// Some plans omit the adjusted series; fall back to close
		adjClose = closePx
	}
	volume, err := decimal.NewFromString(row["6. volume"])
	if err != nil {
		return models.RawPriceRecord{}, fmt.Errorf("volume: %w", err)
	}

	return models.RawPriceRecord{
		Symbol:        symbol,
		Date:          date,
		Open:          open,
		High:          high,
		Low:           low,
		Close:         closePx,
		Volume:        volume.IntPart(),
		AdjustedClose: adjClose,
		Source:        alphaVantageName,
	}, nil
}
