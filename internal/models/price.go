package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawPriceRecord is a single day of OHLCV data as returned by a provider,
// before it is persisted. Not stored directly.
type RawPriceRecord struct {
	Symbol        string          `json:"symbol"`
	Date          time.Time       `json:"date"`
	Open          decimal.Decimal `json:"open"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	Close         decimal.Decimal `json:"close"`
	Volume        int64           `json:"volume"`
	AdjustedClose decimal.Decimal `json:"adjusted_close"`
	Source        string          `json:"source"`
}

// PriceRecord represents persisted daily OHLCV price data for a symbol.
// At most one record exists per (symbol, date).
type PriceRecord struct {
	ID            int             `json:"id"`
	Symbol        string          `json:"symbol"`
	Date          time.Time       `json:"date"`
	Open          decimal.Decimal `json:"open"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	Close         decimal.Decimal `json:"close"`
	Volume        int64           `json:"volume"`
	AdjustedClose decimal.Decimal `json:"adjusted_close"`
	Source        string          `json:"source"`
	IsMarketOpen  bool            `json:"is_market_open"`
	LastUpdated   time.Time       `json:"last_updated"`
	CreatedAt     time.Time       `json:"created_at"`
}
