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

// PredictionProcessor reacts to newly created predictions. Implemented by
// the backfill orchestrator.
type PredictionProcessor interface {
	ProcessPrediction(ctx context.Context, p *models.Prediction) error
}

// PredictionsConsumer handles consuming PREDICTION_CREATED events from Kafka
type PredictionsConsumer struct {
	reader    *kafka.Reader
	processor PredictionProcessor
}

// NewPredictionsConsumer creates a new Kafka consumer for prediction events
func NewPredictionsConsumer(brokers []string, topic, groupID string, processor PredictionProcessor) *PredictionsConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID + "-predictions",
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})

	return &PredictionsConsumer{
		reader:    reader,
		processor: processor,
	}
}

// Start begins consuming messages from Kafka
func (c *PredictionsConsumer) Start(ctx context.Context) error {
	log.Printf("Starting predictions consumer for topic: %s", c.reader.Config().Topic)

	for {
		select {
		case <-ctx.Done():
			log.Println("Predictions consumer shutting down...")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil // Context cancelled, normal shutdown
				}
				log.Printf("Error reading prediction message: %v", err)
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				log.Printf("Error processing prediction message: %v", err)
				// Continue processing other messages
			}
		}
	}
}

// processMessage handles a single Kafka message
func (c *PredictionsConsumer) processMessage(ctx context.Context, msg kafka.Message) error {
	log.Printf("Received prediction message from partition %d offset %d: key=%s",
		msg.Partition, msg.Offset, string(msg.Key))

	var event models.PredictionEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal prediction event: %w", err)
	}

	if event.EventType != "PREDICTION_CREATED" {
		log.Printf("Ignoring event type: %s", event.EventType)
		return nil
	}

	if event.Data.ID == "" {
		return fmt.Errorf("prediction event missing id")
	}
	if len(event.Data.Assets) == 0 {
		log.Printf("Prediction %s has no assets, skipping", event.Data.ID)
		return nil
	}

	log.Printf("Processing prediction %s with %d assets", event.Data.ID, len(event.Data.Assets))
	if err := c.processor.ProcessPrediction(ctx, &event.Data); err != nil {
		return fmt.Errorf("failed to process prediction %s: %w", event.Data.ID, err)
	}
	return nil
}

// Close closes the Kafka consumer
func (c *PredictionsConsumer) Close() error {
	return c.reader.Close()
}
