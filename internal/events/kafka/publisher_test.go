package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sheikh-saqib/banking-ledger/internal/models/events"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublish_WritesKeyedJSON(t *testing.T) {
	writer := &fakeWriter{}
	p := &Publisher{writer: writer}

	event := events.TransactionCompleted{
		EventID:       "evt-1",
		TransactionID: 42,
		FromAccount:   "ACC1",
		ToAccount:     "ACC2",
		Amount:        decimal.RequireFromString("12.50"),
		Category:      "Food",
		OccurredAt:    time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, p.Publish(context.Background(), events.TopicTransactionCompleted, "ACC1", event))

	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, events.TopicTransactionCompleted, msg.Topic)
	assert.Equal(t, []byte("ACC1"), msg.Key)

	var decoded events.TransactionCompleted
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, int64(42), decoded.TransactionID)
	assert.True(t, event.Amount.Equal(decoded.Amount))
	assert.Equal(t, event.OccurredAt, decoded.OccurredAt)

	require.NoError(t, p.Close())
	assert.True(t, writer.closed)
}

func TestPublish_Errors(t *testing.T) {
	writer := &fakeWriter{err: errors.New("leader not available")}
	p := &Publisher{writer: writer}

	err := p.Publish(context.Background(), "topic", "k", map[string]string{"a": "b"})
	assert.ErrorContains(t, err, "leader not available")

	err = p.Publish(context.Background(), "topic", "k", func() {})
	assert.ErrorContains(t, err, "encode topic event")
}

func TestNewPublisher(t *testing.T) {
	p := NewPublisher([]string{"localhost:9092"})
	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, kafka.RequireAll, w.RequiredAcks)
	assert.Empty(t, w.Topic)
}
