package models

import "time"

// Ticker status values
const (
	TickerStatusActive   = "active"
	TickerStatusInvalid  = "invalid"
	TickerStatusInactive = "inactive"
)

// Ticker represents a tracked symbol and its price-coverage metadata.
// Tickers are never deleted, only re-statused.
type Ticker struct {
	ID                 int        `json:"id"`
	Symbol             string     `json:"symbol"`
	Status             string     `json:"status"`
	StatusReason       string     `json:"status_reason,omitempty"`
	FirstSeenDate      time.Time  `json:"first_seen_date"`
	SourcePredictionID string     `json:"source_prediction_id,omitempty"`
	PriceDataStart     *time.Time `json:"price_data_start,omitempty"`
	PriceDataEnd       *time.Time `json:"price_data_end,omitempty"`
	TotalPriceRecords  int        `json:"total_price_records"`
	LastPriceUpdate    *time.Time `json:"last_price_update,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// TickerStats holds aggregate registry statistics.
type TickerStats struct {
	Total             int `json:"total"`
	Active            int `json:"active"`
	Invalid           int `json:"invalid"`
	Inactive          int `json:"inactive"`
	TotalPriceRecords int `json:"total_price_records"`
}
