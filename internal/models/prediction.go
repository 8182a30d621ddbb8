package models

import "time"

// Sentiment values carried by predictions
const (
	SentimentBullish = "bullish"
	SentimentBearish = "bearish"
	SentimentNeutral = "neutral"
)

// Prediction is a time-stamped directional call produced by the upstream
// crawler/extractor pipeline. Read-only to this service.
type Prediction struct {
	ID              string            `json:"id"`
	Assets          []string          `json:"assets"`
	CreatedAt       time.Time         `json:"created_at"`
	Sentiments      map[string]string `json:"sentiments"`
	Confidence      float64           `json:"confidence"`
	SkippedAnalysis bool              `json:"skipped_analysis,omitempty"`
}

// SentimentFor returns the sentiment assigned to one asset, or "" when the
// extractor produced none for it.
func (p *Prediction) SentimentFor(symbol string) string {
	if p.Sentiments == nil {
		return ""
	}
	return p.Sentiments[symbol]
}

// PredictionEvent is the Kafka envelope for PREDICTION_CREATED events.
type PredictionEvent struct {
	EventType     string     `json:"event_type"`
	Source        string     `json:"source"`
	SchemaVersion string     `json:"schema_version,omitempty"`
	Timestamp     string     `json:"timestamp"`
	Data          Prediction `json:"data"`
}

// BackfillEvent is the terminal PRICES_BACKFILLED audit event published
// after a prediction has been processed. No internal consumer.
type BackfillEvent struct {
	Symbols            []string `json:"symbols"`
	PredictionID       string   `json:"prediction_id"`
	AssetsBackfilled   int      `json:"assets_backfilled"`
	OutcomesCalculated int      `json:"outcomes_calculated"`
}
