package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/dmehra2102/portal-cart/internal/checkout/domain"
	"github.com/dmehra2102/portal-cart/pkg/outbox"
	"github.com/dmehra2102/portal-cart/pkg/tracing"
)

// Publisher writes checkout events straight to Kafka, keyed by cart so one
// member's events stay ordered on a partition.
type Publisher struct {
	log      *slog.Logger
	producer outbox.Producer
}

func NewPublisher(log *slog.Logger, producer outbox.Producer) *Publisher {
	return &Publisher{log: log, producer: producer}
}

func (p *Publisher) Publish(ctx context.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	headers := tracing.InjectKafkaHeaders(ctx, []kafka.Header{
		{Key: "event_type", Value: []byte(ev.Type)},
	})
	msg := kafka.Message{
		Key:     []byte(ev.CartKey),
		Value:   payload,
		Headers: headers,
	}
	if err := p.producer.WriteMessages(ctx, msg); err != nil {
		p.log.Error("publish checkout event", "type", ev.Type, "cart", ev.CartKey, "err", err)
		return err
	}
	return nil
}
