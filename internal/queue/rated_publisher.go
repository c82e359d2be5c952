package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// RatedCallPublisher publishes rated-call events to Kafka. Messages are keyed
// by call id so re-rates of the same call stay ordered per partition.
type RatedCallPublisher struct {
	writer *kafka.Writer
}

// NewRatedCallPublisher constructs a publisher for the given topic.
func NewRatedCallPublisher(k *Kafka, topic string) *RatedCallPublisher {
	return &RatedCallPublisher{
		writer: k.NewWriter(topic),
	}
}

// PublishRatedCall writes the rated-call message to Kafka.
func (p *RatedCallPublisher) PublishRatedCall(ctx context.Context, msg RatedCallMessage) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("rated publisher: marshal message: %w", err)
	}

	record := kafka.Message{
		Key:   []byte(strconv.FormatInt(msg.CallID, 10)),
		Value: value,
		Time:  time.Now().UTC(),
	}

	if err := p.writer.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("rated publisher: write message: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (p *RatedCallPublisher) Close() error {
	return p.writer.Close()
}
