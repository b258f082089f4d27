package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/enrolhub/checkout-engine/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func newTestPublisher(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestPublish(t *testing.T) {
	writer := &recordingWriter{}
	publisher := newTestPublisher(writer)
	occurred := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)

	err := publisher.Publish(context.Background(), domain.OrderEvent{
		Type:            domain.EventOrderCompleted,
		OrderID:         "order-1",
		BasketID:        "basket-1",
		PaymentIntentID: "pi_1",
		Amount:          4500,
		OccurredAt:      occurred,
	})
	require.NoError(t, err)
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, "order-1", string(msg.Key))
	assert.Equal(t, occurred, msg.Time)
	assert.Equal(t, []kafka.Header{{Key: "event-type", Value: []byte("order.completed")}}, msg.Headers)

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "order.completed", body["type"])
	assert.Equal(t, "pi_1", body["paymentIntentId"])
	assert.Equal(t, float64(4500), body["amount"])
	assert.NotContains(t, body, "errorCode")
}

func TestPublish_KeysByBasketBeforeOrderExists(t *testing.T) {
	writer := &recordingWriter{}
	publisher := newTestPublisher(writer)

	err := publisher.Publish(context.Background(), domain.OrderEvent{
		Type:      domain.EventOrderFailed,
		BasketID:  "basket-1",
		ErrorCode: domain.CodeOrderError,
	})
	require.NoError(t, err)

	assert.Equal(t, "basket-1", string(writer.messages[0].Key))
	assert.False(t, writer.messages[0].Time.IsZero())
}

func TestPublish_WriterError(t *testing.T) {
	writer := &recordingWriter{err: errors.New("leader not available")}
	publisher := newTestPublisher(writer)

	err := publisher.Publish(context.Background(), domain.OrderEvent{Type: domain.EventOrderRefunded, OrderID: "order-1"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "order.refunded")
}

func TestClose(t *testing.T) {
	writer := &recordingWriter{}

	require.NoError(t, newTestPublisher(writer).Close())
	assert.True(t, writer.closed)
}

func TestParseBrokers(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{in: "", want: []string{}},
		{in: "localhost:9092", want: []string{"localhost:9092"}},
		{in: " a:9092, ,b:9092 ", want: []string{"a:9092", "b:9092"}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseBrokers(tt.in))
	}
}

func TestNoop(t *testing.T) {
	var publisher domain.EventPublisher = Noop{}

	assert.NoError(t, publisher.Publish(context.Background(), domain.OrderEvent{Type: domain.EventOrderCompleted}))
}
