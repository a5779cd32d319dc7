package kafka

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/honeynil/dreamnity-payments/internal/models"
	"github.com/segmentio/kafka-go"
)

// Inbound topics.
const (
	TopicSettlements = "settlements"
	TopicAlerts      = "alerts"
)

// EventSink receives decoded inbound events.
type EventSink interface {
	OnSettlementConfirmed(ctx context.Context, transactionID string) error
	OnExternalAlert(ctx context.Context, alert models.Alert) error
}

type Consumer struct {
	reader *kafka.Reader
	sink   EventSink
}

func NewConsumer(brokers []string, topic, groupID string, sink EventSink) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 10e3,
			MaxBytes: 10e6,
		}),
		sink: sink,
	}
}

// Consume reads until ctx is cancelled. Bad messages are logged and skipped.
func (c *Consumer) Consume(ctx context.Context) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || stderrors.Is(err, context.Canceled) {
				slog.Info("Kafka consumer stopped", "topic", c.reader.Config().Topic)
				return
			}
			slog.Error("failed to read Kafka message", "topic", c.reader.Config().Topic, "error", err)
			continue
		}

		slog.Info("Kafka message received", "topic", msg.Topic, "key", string(msg.Key))
		if err := handleMessage(ctx, c.sink, msg.Topic, msg.Value); err != nil {
			slog.Error("failed to handle Kafka message", "topic", msg.Topic, "key", string(msg.Key), "error", err)
			continue
		}
	}
}

func handleMessage(ctx context.Context, sink EventSink, topic string, value []byte) error {
	switch topic {
	case TopicSettlements:
		var event struct {
			TransactionID string `json:"transaction_id"`
		}
		if err := json.Unmarshal(value, &event); err != nil {
			return fmt.Errorf("failed to unmarshal settlement event: %w", err)
		}
		if event.TransactionID == "" {
			return fmt.Errorf("settlement event without transaction_id")
		}
		return sink.OnSettlementConfirmed(ctx, event.TransactionID)

	case TopicAlerts:
		var alert models.Alert
		if err := json.Unmarshal(value, &alert); err != nil {
			return fmt.Errorf("failed to unmarshal alert event: %w", err)
		}
		return sink.OnExternalAlert(ctx, alert)

	default:
		return fmt.Errorf("unknown topic %q", topic)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
