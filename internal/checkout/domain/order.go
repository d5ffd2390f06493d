package domain

import (
	"encoding/json"
	"errors"
	"fmt"

	cart "github.com/dmehra2102/portal-cart/internal/cart/domain"
)

var (
	// ErrDebtor is the order API's "outstanding debt" answer. It is an expected
	// outcome, not a failure.
	ErrDebtor          = errors.New("checkout: member has outstanding debt")
	ErrPaymentDeclined = errors.New("checkout: payment declined")
)

// SubmissionItem carries only what the order API needs to price an item itself.
type SubmissionItem struct {
	Shop                    cart.Shop         `json:"shop"`
	Quantity                int               `json:"quantity"`
	GlobalSubmissionInfo    json.RawMessage   `json:"globalSubmissionInfo"`
	ComponentSubmissionInfo []json.RawMessage `json:"componentSubmissionInfo"`
}

type SubmissionCart struct {
	Items []SubmissionItem `json:"items"`
}

type SubmissionRequest struct {
	SubmissionCart SubmissionCart `json:"submissionCart"`
	Delivery       *cart.Delivery `json:"delivery"`
	TableNumber    string         `json:"tableNumber,omitempty"`

	// IdempotencyKey travels as a header, not in the body.
	IdempotencyKey string `json:"-"`
}

// NewSubmissionRequest strips display fields and prices from a cart snapshot.
func NewSubmissionRequest(snapshot cart.Cart, tableNumber, idempotencyKey string) SubmissionRequest {
	items := make([]SubmissionItem, 0, len(snapshot.Items))
	for _, it := range snapshot.Items {
		comps := make([]json.RawMessage, 0, len(it.Components))
		for _, c := range it.Components {
			comps = append(comps, c.SubmissionInformation)
		}
		items = append(items, SubmissionItem{
			Shop:                    it.Shop,
			Quantity:                it.Quantity,
			GlobalSubmissionInfo:    it.SubmissionInformation,
			ComponentSubmissionInfo: comps,
		})
	}
	var delivery *cart.Delivery
	if snapshot.Delivery != nil {
		d := *snapshot.Delivery
		delivery = &d
	}
	return SubmissionRequest{
		SubmissionCart: SubmissionCart{Items: items},
		Delivery:       delivery,
		TableNumber:    tableNumber,
		IdempotencyKey: idempotencyKey,
	}
}

// Handshake authorizes the client to complete payment. TotalAmountInPence is the
// only authoritative amount.
type Handshake struct {
	ClientSecret       string `json:"clientSecret"`
	TotalAmountInPence int64  `json:"totalAmountInPence"`
}

// SubmissionError is an order rejection other than debt, e.g. stock gone.
type SubmissionError struct {
	Status int
	Reason string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("checkout: order rejected (%d): %s", e.Status, e.Reason)
}

type PaymentMethod string
