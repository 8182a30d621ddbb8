package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/outcome-tracker/internal/models"
)

const finnhubName = "finnhub"

// Finnhub fetches daily candles from the Finnhub REST API. Used as the
// secondary source behind Alpha Vantage.
type Finnhub struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewFinnhub creates a Finnhub provider. baseURL may be empty to use the
// public endpoint.
func NewFinnhub(apiKey, baseURL string, timeout time.Duration) *Finnhub {
	if baseURL == "" {
		baseURL = "https://finnhub.io/api/v1"
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Finnhub{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (f *Finnhub) Name() string {
	return finnhubName
}

func (f *Finnhub) Available() bool {
	return f.apiKey != ""
}

// finnhubCandles mirrors the /stock/candle response: parallel arrays plus a
// status field ("ok" or "no_data").
type finnhubCandles struct {
	Close  []float64 `json:"c"`
	High   []float64 `json:"h"`
	Low    []float64 `json:"l"`
	Open   []float64 `json:"o"`
	Times  []int64   `json:"t"`
	Volume []float64 `json:"v"`
	Status string    `json:"s"`
}

// FetchDailyHistory retrieves daily candles for [start, end].
func (f *Finnhub) FetchDailyHistory(ctx context.Context, symbol string, start, end time.Time) ([]models.RawPriceRecord, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("resolution", "D")
	q.Set("from", strconv.FormatInt(start.Unix(), 10))
	q.Set("to", strconv.FormatInt(end.Unix(), 10))
	q.Set("token", f.apiKey)

	reqURL := f.baseURL + "/stock/candle?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &Error{Provider: finnhubName, Message: "build request", Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &Error{Provider: finnhubName, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, &Error{Provider: finnhubName, Message: "authentication failed"}
	case http.StatusTooManyRequests:
		return nil, &Error{Provider: finnhubName, Message: "rate limited"}
	default:
		return nil, &Error{Provider: finnhubName, Message: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	var payload finnhubCandles
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &Error{Provider: finnhubName, Message: "decode response", Err: err}
	}

	if payload.Status == "no_data" {
		return nil, nil
	}
	if payload.Status != "ok" {
		return nil, &Error{Provider: finnhubName, Message: "unexpected status: " + payload.Status}
	}

	n := len(payload.Times)
	if len(payload.Open) != n || len(payload.High) != n || len(payload.Low) != n ||
		len(payload.Close) != n || len(payload.Volume) != n {
		return nil, &Error{Provider: finnhubName, Message: "mismatched candle array lengths"}
	}

	records := make([]models.RawPriceRecord, 0, n)
	for i := 0; i < n; i++ {
		date := time.Unix(payload.Times[i], 0).UTC().Truncate(24 * time.Hour)
		if date.Before(start) || date.After(end) {
			continue
		}
		if payload.Close[i] <= 0 {
			log.Printf("Warning: finnhub: skipping non-positive close %s/%s", symbol, date.Format("2006-01-02"))
			continue
		}
		closePx := decimal.NewFromFloat(payload.Close[i])
		records = append(records, models.RawPriceRecord{
			Symbol:        symbol,
			Date:          date,
			Open:          decimal.NewFromFloat(payload.Open[i]),
			High:          decimal.NewFromFloat(payload.High[i]),
			Low:           decimal.NewFromFloat(payload.Low[i]),
			Close:         closePx,
			Volume:        int64(payload.Volume[i]),
			AdjustedClose: closePx,
			Source:        finnhubName,
		})
	}
	return records, nil
}
