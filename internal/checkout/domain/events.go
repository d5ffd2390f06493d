package domain

import "time"

type EventType string

const (
	EventSubmitted       EventType = "checkout.submitted"
	EventAwaitingPayment EventType = "checkout.awaiting_payment"
	EventCompleted       EventType = "checkout.completed"
	EventFailed          EventType = "checkout.failed"
	EventDebtBlocked     EventType = "checkout.debt_blocked"
	EventAbandoned       EventType = "checkout.abandoned"
)

type Event struct {
	Type               EventType `json:"type"`
	CartKey            string    `json:"cartKey"`
	IdempotencyKey     string    `json:"idempotencyKey"`
	State              State     `json:"state"`
	ItemCount          int       `json:"itemCount"`
	TotalAmountInPence int64     `json:"totalAmountInPence,omitempty"`
	Reason             string    `json:"reason,omitempty"`
	OccurredAt         time.Time `json:"occurredAt"`
}
