package kafka

import (
	"context"
	"sync"
	"testing"

	"carrental/pkg/logger"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		r.cancel()
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

type fakeWriter struct {
	mu      sync.Mutex
	written []kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestConsumer_CommitsAndParksFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{
		cancel: cancel,
		messages: []kafka.Message{
			{Topic: "booking-settlements", Offset: 1, Key: []byte("a"), Value: []byte(`{}`)},
			{Topic: "booking-settlements", Offset: 2, Key: []byte("b"), Value: []byte(`{}`)},
		},
	}
	dlq := &fakeWriter{}

	var handled []string
	c := &Consumer{
		reader:     reader,
		dlqWriter:  dlq,
		topic:      "booking-settlements",
		groupID:    "g",
		maxRetries: 2,
		log:        logger.Discard(),
		handler: func(_ context.Context, msg Message) error {
			handled = append(handled, msg.Key)
			if msg.Key == "b" {
				return NewPermanentError("invalid transition", nil)
			}
			return nil
		},
	}

	err := c.Start(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"a", "b"}, handled)
	assert.Equal(t, []int64{1, 2}, reader.committed)

	require.Len(t, dlq.written, 1)
	assert.Equal(t, "b", string(dlq.written[0].Key))
	headers := map[string]string{}
	for _, h := range dlq.written[0].Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "booking-settlements", headers[HeaderOriginalTopic])
	assert.Equal(t, "g", headers[HeaderDLQGroup])
}

func TestConsumer_RetriesTransient(t *testing.T) {
	attempts := 0
	c := &Consumer{
		topic:      "t",
		maxRetries: 2,
		log:        logger.Discard(),
		handler: func(context.Context, Message) error {
			attempts++
			if attempts < 2 {
				return NewTransientError("store unreachable", nil)
			}
			return nil
		},
	}

	err := c.processMessage(context.Background(), Message{Headers: map[string]string{}})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}
