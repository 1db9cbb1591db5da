package consumer

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	kafkaMinBytes = 1
	kafkaMaxBytes = 10_000_000 // 10MB
)

// KafkaSource adapts a kafka-go group reader to the Source contract.
// Each pipeline constructs its own source under a distinct group id so both
// see every message on the topic independently.
type KafkaSource struct {
	reader *kafka.Reader
}

// NewKafkaSource creates a group reader for topic.
func NewKafkaSource(brokers []string, topic, groupID string) *KafkaSource {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         brokers,
		GroupID:         groupID,
		Topic:           topic,
		StartOffset:     kafka.LastOffset,
		CommitInterval:  time.Second,
		MinBytes:        kafkaMinBytes,
		MaxBytes:        kafkaMaxBytes,
		ReadLagInterval: -1,
	})
	return &KafkaSource{reader: r}
}

// Fetch blocks for the next message without committing it.
func (s *KafkaSource) Fetch(ctx context.Context) (Message, error) {
	m, err := s.reader.FetchMessage(ctx)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
	}, nil
}

// Commit marks the message consumed for this group.
func (s *KafkaSource) Commit(ctx context.Context, m Message) error {
	return s.reader.CommitMessages(ctx, kafka.Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
	})
}

// Close stops the underlying reader.
func (s *KafkaSource) Close() error {
	return s.reader.Close()
}
