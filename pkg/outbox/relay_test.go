package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	batch  []Event
	sent   []int64
	failed map[int64]string
}

func (f *fakeStore) LockBatch(context.Context, string, int, time.Duration) ([]Event, error) {
	b := f.batch
	f.batch = nil
	return b, nil
}

func (f *fakeStore) MarkSent(_ context.Context, ids []int64) error {
	f.sent = append(f.sent, ids...)
	return nil
}

func (f *fakeStore) MarkFailed(_ context.Context, id int64, errMsg string) error {
	if f.failed == nil {
		f.failed = map[int64]string{}
	}
	f.failed[id] = errMsg
	return nil
}

func (f *fakeStore) ExtendLease(context.Context, string, []int64, time.Duration) error { return nil }

type fakeProducer struct {
	msgs   []kafka.Message
	reject string
}

func (f *fakeProducer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		if string(m.Key) == f.reject {
			return errors.New("broker unavailable")
		}
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func TestRelayTick(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := &fakeStore{batch: []Event{
		{ID: 1, AggregateID: "cart:alice", Type: "checkout.submitted", Payload: []byte(`{}`), Traceparent: "00-abc-def-01"},
		{ID: 2, AggregateID: "cart:bob", Type: "checkout.failed", Payload: []byte(`{}`)},
		{ID: 3, AggregateID: "cart:alice", Type: "checkout.completed", Payload: []byte(`{}`), Headers: map[string]string{"source": "portal-cart"}},
	}}
	prod := &fakeProducer{reject: "cart:bob"}
	relay := NewRelay(log, store, NewDispatcher(log, prod, "checkout.events"), "relay-1")

	n, err := relay.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{1, 3}, store.sent)
	assert.Equal(t, "broker unavailable", store.failed[2])

	require.Len(t, prod.msgs, 2)
	first := prod.msgs[0]
	assert.Equal(t, "checkout.events", first.Topic)
	assert.Contains(t, first.Headers, kafka.Header{Key: "event_type", Value: []byte("checkout.submitted")})
	assert.Contains(t, first.Headers, kafka.Header{Key: "traceparent", Value: []byte("00-abc-def-01")})
	assert.Contains(t, prod.msgs[1].Headers, kafka.Header{Key: "source", Value: []byte("portal-cart")})

	n, err = relay.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
