package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/trogers1052/outcome-tracker/internal/models"
)

// Event is the envelope every published message uses.
type Event struct {
	EventType     string      `json:"event_type"`
	Source        string      `json:"source"`
	SchemaVersion string      `json:"schema_version"`
	Timestamp     time.Time   `json:"timestamp"`
	Data          interface{} `json:"data"`
}

const (
	eventSource   = "outcome-tracker"
	schemaVersion = "1.0"
)

// Producer publishes audit events and alerts.
type Producer struct {
	events *kafka.Writer
	alerts *kafka.Writer
}

// NewProducer creates a Kafka producer for the events and alerts topics.
func NewProducer(brokers []string, eventsTopic, alertsTopic string) *Producer {
	return &Producer{
		events: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        eventsTopic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
		alerts: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        alertsTopic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// PublishBackfillEvent publishes the terminal PRICES_BACKFILLED audit event
// for a processed prediction.
func (p *Producer) PublishBackfillEvent(ctx context.Context, data models.BackfillEvent) error {
	event := Event{
		EventType:     "PRICES_BACKFILLED",
		Source:        eventSource,
		SchemaVersion: schemaVersion,
		Timestamp:     time.Now().UTC(),
		Data:          data,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal backfill event: %w", err)
	}

	err = p.events.WriteMessages(ctx, kafka.Message{
		Key:   []byte(data.PredictionID),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("failed to publish backfill event: %w", err)
	}
	return nil
}

// alertMessage is the payload written to the alerts topic.
type alertMessage struct {
	Destination string    `json:"destination"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
}

// Notify sends a one-way alert. It is fire-and-forget: failures are logged
// and swallowed so callers never block on or depend on delivery.
func (p *Producer) Notify(ctx context.Context, destination, message string) {
	payload, err := json.Marshal(alertMessage{
		Destination: destination,
		Message:     message,
		Timestamp:   time.Now().UTC(),
	})
	if err != nil {
		log.Printf("Error marshaling alert: %v", err)
		return
	}

	err = p.alerts.WriteMessages(ctx, kafka.Message{
		Key:   []byte(destination),
		Value: payload,
	})
	if err != nil {
		log.Printf("Error publishing alert to %s: %v", destination, err)
		return
	}
	log.Printf("Alert sent to %s: %s", destination, message)
}

// Close closes both writers.
func (p *Producer) Close() error {
	if err := p.events.Close(); err != nil {
		p.alerts.Close()
		return err
	}
	return p.alerts.Close()
}
