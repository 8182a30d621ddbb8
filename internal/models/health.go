package models

import "time"

// DaysStaleNoData is reported when a symbol has no stored prices at all.
const DaysStaleNoData = 999

// ProviderStatus is the result of a single provider canary check.
type ProviderStatus struct {
	Name        string `json:"name"`
	Available   bool   `json:"available"`
	Healthy     bool   `json:"healthy"`
	LatencyMS   int64  `json:"latency_ms"`
	RecordCount int    `json:"record_count"`
	Error       string `json:"error,omitempty"`
}

// FreshnessStatus reports how stale one symbol's stored data is.
type FreshnessStatus struct {
	Symbol     string     `json:"symbol"`
	LatestDate *time.Time `json:"latest_date,omitempty"`
	DaysStale  int        `json:"days_stale"`
	IsStale    bool       `json:"is_stale"`
}

// HealthReport is the ephemeral result of one health check run.
type HealthReport struct {
	Timestamp         time.Time         `json:"timestamp"`
	ProviderStatuses  []ProviderStatus  `json:"provider_statuses,omitempty"`
	FreshnessStatuses []FreshnessStatus `json:"freshness_statuses,omitempty"`
	TotalSymbols      int               `json:"total_symbols"`
	StaleSymbols      int               `json:"stale_symbols"`
	Summary           string            `json:"summary"`
	OverallHealthy    bool              `json:"overall_healthy"`
}
