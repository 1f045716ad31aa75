package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/thutasann/nano-pulse/metrics"
)

type Consumer struct {
	reader *kafka.Reader
}

// NewConsumer joins the consumer group for one topic, replaying from the
// earliest retained offset. Offsets are committed on an interval rather than
// per message, so a crash re-processes at most one interval's worth —
// at-least-once, never lost.
func NewConsumer(topic string, brokers []string, groupID string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			Topic:          topic,
			GroupID:        groupID,
			StartOffset:    kafka.FirstOffset,
			CommitInterval: time.Second,
			MaxBytes:       10e6, // 10MB
		}),
	}
}

func (c *Consumer) ReadFromKafka(ctx context.Context) (*kafka.Message, error) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		metrics.KafkaSubscriberFailureTotal.WithLabelValues(c.reader.Config().Topic).Inc()
		return nil, err
	}
	if lag := c.reader.Lag(); lag >= 0 {
		metrics.KafkaConsumerLag.WithLabelValues(
			c.reader.Config().GroupID,
			c.reader.Config().Topic,
		).Set(float64(lag))
	}
	return &m, nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
