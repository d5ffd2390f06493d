package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/portal-cart/pkg/tracing"
)

const PaymentSucceededType = "payment_intent.succeeded"

// PaymentEvent is what the payment provider's webhook bridge publishes.
type PaymentEvent struct {
	Type         string `json:"type"`
	SessionID    string `json:"sessionId"`
	ClientSecret string `json:"clientSecret"`
}

type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Deduper interface {
	Key(scope, id string) string
	Seen(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// PaymentHandler completes the checkout of sessionID whose intent is clientSecret.
type PaymentHandler func(ctx context.Context, sessionID, clientSecret string) error

func NewReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
}

// Consumer turns payment success events into completed checkouts. It shares
// the de-duplication key space with the HTTP callback, so whichever channel
// delivers first wins.
type Consumer struct {
	log    *slog.Logger
	reader Reader
	handle PaymentHandler
	idem   Deduper
	tracer trace.Tracer
}

func NewConsumer(log *slog.Logger, reader Reader, handle PaymentHandler, idem Deduper) *Consumer {
	return &Consumer{
		log:    log,
		reader: reader,
		handle: handle,
		idem:   idem,
		tracer: otel.Tracer("payment-consumer"),
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		c.process(ctx, msg)
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error("commit failed", "offset", msg.Offset, "err", err)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumePaymentEvent")
	defer span.End()

	var ev PaymentEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.log.Error("unmarshal failed", "offset", msg.Offset, "err", err)
		return
	}
	if ev.Type != PaymentSucceededType {
		return
	}
	if ev.SessionID == "" || ev.ClientSecret == "" {
		c.log.Warn("payment event without session or secret", "offset", msg.Offset)
		return
	}
	span.SetAttributes(attribute.String("portal.session", ev.SessionID))

	key := c.idem.Key("payment-succeeded", ev.ClientSecret)
	claimed := true
	seen, err := c.idem.Seen(msgCtx, key)
	if err != nil {
		c.log.Error("idempotency check failed", "err", err)
		claimed = false
	} else if seen {
		c.log.Info("duplicate payment event skipped", "session", ev.SessionID)
		return
	}

	if err := c.handle(msgCtx, ev.SessionID, ev.ClientSecret); err != nil {
		span.RecordError(err)
		c.log.Error("payment event not applied", "session", ev.SessionID, "err", err)
		if claimed {
			if rErr := c.idem.Release(msgCtx, key); rErr != nil {
				c.log.Error("idempotency release failed", "err", rErr)
			}
		}
		return
	}
	c.log.Info("payment event applied", "session", ev.SessionID)
}
