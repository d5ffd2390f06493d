package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/portal-cart/internal/checkout/domain"
	"github.com/dmehra2102/portal-cart/pkg/outbox"
)

type recordingProducer struct {
	msgs []kafka.Message
	err  error
}

func (r *recordingProducer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, msgs...)
	return nil
}

func TestPublisherPublish(t *testing.T) {
	prod := &recordingProducer{}
	p := NewPublisher(slog.New(slog.NewTextHandler(io.Discard, nil)), prod)

	ev := domain.Event{
		Type:               domain.EventCompleted,
		CartKey:            "cart:alice",
		IdempotencyKey:     "k-1",
		State:              domain.StateCompleted,
		ItemCount:          2,
		TotalAmountInPence: 450,
		OccurredAt:         time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.Publish(context.Background(), ev))
	require.Len(t, prod.msgs, 1)

	msg := prod.msgs[0]
	assert.Equal(t, "cart:alice", string(msg.Key))
	assert.Contains(t, msg.Headers, kafka.Header{Key: "event_type", Value: []byte("checkout.completed")})

	var got domain.Event
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, ev, got)
}

func TestPublisherPropagatesWriteError(t *testing.T) {
	prod := &recordingProducer{err: errors.New("leader not available")}
	p := NewPublisher(slog.New(slog.NewTextHandler(io.Discard, nil)), prod)

	err := p.Publish(context.Background(), domain.Event{Type: domain.EventFailed, CartKey: "cart:bob"})
	assert.EqualError(t, err, "leader not available")
}

func TestWriterIsProducer(t *testing.T) {
	w := NewWriter([]string{"localhost:9092"}, "checkout-events")
	defer w.Close()

	var prod outbox.Producer = w
	require.NotNil(t, prod)
	assert.Equal(t, "checkout-events", w.Topic)
	assert.Equal(t, kafka.RequireAll, w.RequiredAcks)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
}
