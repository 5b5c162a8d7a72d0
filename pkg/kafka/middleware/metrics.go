package kafka_middleware

import (
	"context"
	"sync/atomic"
	"time"

	"carrental/pkg/kafka"
)

// Metrics holds Kafka operation counters for one service process.
type Metrics struct {
	MessagesPublished       atomic.Int64
	MessagesPublishedFailed atomic.Int64
	PublishDurationTotal    atomic.Int64 // Nanoseconds

	MessagesConsumed       atomic.Int64
	MessagesConsumedFailed atomic.Int64
	ConsumeDurationTotal   atomic.Int64 // Nanoseconds
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) AvgPublishDuration() time.Duration {
	published := m.MessagesPublished.Load()
	if published == 0 {
		return 0
	}
	return time.Duration(m.PublishDurationTotal.Load() / published)
}

func (m *Metrics) AvgConsumeDuration() time.Duration {
	consumed := m.MessagesConsumed.Load()
	if consumed == 0 {
		return 0
	}
	return time.Duration(m.ConsumeDurationTotal.Load() / consumed)
}

// Snapshot returns the counters in a JSON friendly shape.
func (m *Metrics) Snapshot() map[string]any {
	return map[string]any{
		"messages_published":        m.MessagesPublished.Load(),
		"messages_published_failed": m.MessagesPublishedFailed.Load(),
		"avg_publish_duration_ms":   m.AvgPublishDuration().Milliseconds(),
		"messages_consumed":         m.MessagesConsumed.Load(),
		"messages_consumed_failed":  m.MessagesConsumedFailed.Load(),
		"avg_consume_duration_ms":   m.AvgConsumeDuration().Milliseconds(),
	}
}

func (m *Metrics) ProducerMiddleware() kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()
		err := next(ctx, msg)
		m.PublishDurationTotal.Add(int64(time.Since(start)))

		if err != nil {
			m.MessagesPublishedFailed.Add(1)
		} else {
			m.MessagesPublished.Add(1)
		}
		return err
	}
}

func (m *Metrics) ConsumerMiddleware() kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)
		m.ConsumeDurationTotal.Add(int64(time.Since(start)))

		if err != nil {
			m.MessagesConsumedFailed.Add(1)
		} else {
			m.MessagesConsumed.Add(1)
		}
		return err
	}
}
