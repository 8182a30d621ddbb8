package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const avPayload = `{
	"Meta Data": {"2. Symbol": "AAPL"},
	"Time Series (Daily)": {
		"2024-06-05": {
			"1. open": "195.40", "2. high": "196.90", "3. low": "194.10",
			"4. close": "196.45", "5. adjusted close": "196.45", "6. volume": "51000000"
		},
		"2024-06-04": {
			"1. open": "194.00", "2. high": "195.30", "3. low": "193.00",
			"4. close": "194.35", "5. adjusted close": "194.35", "6. volume": "47000000"
		},
		"2024-06-03": {
			"1. open": "bogus", "2. high": "194.00", "3. low": "192.00",
			"4. close": "193.00", "5. adjusted close": "193.00", "6. volume": "44000000"
		},
		"2024-05-01": {
			"1. open": "190.00", "2. high": "191.00", "3. low": "189.00",
			"4. close": "190.50", "5. adjusted close": "190.50", "6. volume": "40000000"
		}
	}
}`

func avTestServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/query", r.URL.Path)
		assert.Equal(t, "TIME_SERIES_DAILY_ADJUSTED", r.URL.Query().Get("function"))
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func TestAlphaVantage_Available(t *testing.T) {
	assert.True(t, NewAlphaVantage("key", "", 0).Available())
	assert.False(t, NewAlphaVantage("", "", 0).Available())
}

func TestAlphaVantage_FetchDailyHistory(t *testing.T) {
	srv := avTestServer(t, http.StatusOK, avPayload)
	defer srv.Close()

	av := NewAlphaVantage("key", srv.URL, time.Second)
	records, err := av.FetchDailyHistory(context.Background(), "AAPL",
		time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	// 2024-05-01 is outside the range, 2024-06-03 has a malformed open and
	// is dropped; the two good in-range rows survive, oldest first.
	require.Len(t, records, 2)
	assert.Equal(t, "2024-06-04", records[0].Date.Format("2006-01-02"))
	assert.Equal(t, "2024-06-05", records[1].Date.Format("2006-01-02"))
	assert.Equal(t, "196.45", records[1].Close.String())
	assert.Equal(t, int64(51000000), records[1].Volume)
	assert.Equal(t, "alpha_vantage", records[1].Source)
}

func TestAlphaVantage_APIError(t *testing.T) {
	srv := avTestServer(t, http.StatusOK, `{"Error Message": "Invalid API call"}`)
	defer srv.Close()

	av := NewAlphaVantage("key", srv.URL, time.Second)
	_, err := av.FetchDailyHistory(context.Background(), "NOPE", time.Now().AddDate(0, 0, -7), time.Now())

	require.Error(t, err)
	pe, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, "alpha_vantage", pe.Provider)
	assert.Contains(t, pe.Message, "Invalid API call")
}

func TestAlphaVantage_RateLimitNote(t *testing.T) {
	srv := avTestServer(t, http.StatusOK, `{"Note": "API call frequency exceeded"}`)
	defer srv.Close()

	av := NewAlphaVantage("key", srv.URL, time.Second)
	_, err := av.FetchDailyHistory(context.Background(), "AAPL", time.Now().AddDate(0, 0, -7), time.Now())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestAlphaVantage_UnexpectedStatus(t *testing.T) {
	srv := avTestServer(t, http.StatusInternalServerError, `{}`)
	defer srv.Close()

	av := NewAlphaVantage("key", srv.URL, time.Second)
	_, err := av.FetchDailyHistory(context.Background(), "AAPL", time.Now().AddDate(0, 0, -7), time.Now())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 500")
}

func TestAlphaVantage_EmptySeriesIsNotAnError(t *testing.T) {
	srv := avTestServer(t, http.StatusOK, `{"Time Series (Daily)": {}}`)
	defer srv.Close()

	av := NewAlphaVantage("key", srv.URL, time.Second)
	records, err := av.FetchDailyHistory(context.Background(), "AAPL", time.Now().AddDate(0, 0, -7), time.Now())

	require.NoError(t, err)
	assert.Empty(t, records)
}
