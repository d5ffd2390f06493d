package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Shop string

const (
	ShopBar     Shop = "bar"
	ShopToastie Shop = "toastie"
	ShopStash   Shop = "stash"
	ShopEvent   Shop = "event"
	ShopGym     Shop = "gym"
)

func (s Shop) Valid() bool {
	switch s {
	case ShopBar, ShopToastie, ShopStash, ShopEvent, ShopGym:
		return true
	}
	return false
}

var ErrInvalidItem = errors.New("cart: invalid item")

// ComponentSelection is an add-on chosen for a line item, e.g. a mixer or a T-shirt size.
type ComponentSelection struct {
	Name                  string          `json:"name"`
	Price                 decimal.Decimal `json:"price"`
	Quantity              int             `json:"quantity"`
	SubmissionInformation json.RawMessage `json:"submissionInformation"`
	AdditionalDisplay     string          `json:"additionalDisplay,omitempty"`
}

// CartItem is one line of the cart. Prices are for display only; the order API
// recomputes the amount actually charged.
type CartItem struct {
	Shop                  Shop                 `json:"shop"`
	Name                  string               `json:"name"`
	BasePrice             decimal.Decimal      `json:"basePrice"`
	Quantity              int                  `json:"quantity"`
	SubmissionInformation json.RawMessage      `json:"submissionInformation"`
	Components            []ComponentSelection `json:"components"`
	DuplicateHash         string               `json:"duplicateHash"`
	Image                 string               `json:"image,omitempty"`
}

// Validate checks the fields an item must carry before it may enter a cart.
func (it CartItem) Validate() error {
	if !it.Shop.Valid() {
		return fmt.Errorf("%w: unknown shop %q", ErrInvalidItem, it.Shop)
	}
	if strings.TrimSpace(it.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidItem)
	}
	if it.BasePrice.IsNegative() {
		return fmt.Errorf("%w: base price must not be negative", ErrInvalidItem)
	}
	if it.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrInvalidItem)
	}
	if len(it.SubmissionInformation) == 0 {
		return fmt.Errorf("%w: submission information is required", ErrInvalidItem)
	}
	if it.Components == nil {
		return fmt.Errorf("%w: components are required", ErrInvalidItem)
	}
	for i, c := range it.Components {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("%w: component %d has no name", ErrInvalidItem, i)
		}
		if c.Price.IsNegative() {
			return fmt.Errorf("%w: component %q has a negative price", ErrInvalidItem, c.Name)
		}
		if c.Quantity < 1 {
			return fmt.Errorf("%w: component %q quantity must be at least 1", ErrInvalidItem, c.Name)
		}
	}
	return nil
}

// UnmarshalJSON rejects items that omit basePrice or components, which a zero
// price or an empty list could not be told apart from once decoded.
func (it *CartItem) UnmarshalJSON(b []byte) error {
	var present map[string]json.RawMessage
	if err := json.Unmarshal(b, &present); err != nil {
		return err
	}
	for _, k := range []string{"basePrice", "components"} {
		if v, ok := present[k]; !ok || string(v) == "null" {
			return fmt.Errorf("%w: %s is required", ErrInvalidItem, k)
		}
	}
	type plain CartItem
	return json.Unmarshal(b, (*plain)(it))
}

// UnitPrice is the advisory price of one unit including its components.
func (it CartItem) UnitPrice() decimal.Decimal {
	p := it.BasePrice
	for _, c := range it.Components {
		p = p.Add(c.Price.Mul(decimal.NewFromInt(int64(c.Quantity))))
	}
	return p
}

func (it CartItem) LineTotal() decimal.Decimal {
	return it.UnitPrice().Mul(decimal.NewFromInt(int64(it.Quantity)))
}

func (it CartItem) clone() CartItem {
	cp := it
	cp.SubmissionInformation = cloneRaw(it.SubmissionInformation)
	if it.Components != nil {
		cp.Components = make([]ComponentSelection, len(it.Components))
		for i, c := range it.Components {
			c.SubmissionInformation = cloneRaw(c.SubmissionInformation)
			cp.Components[i] = c
		}
	}
	return cp
}

func cloneRaw(r json.RawMessage) json.RawMessage {
	if r == nil {
		return nil
	}
	cp := make(json.RawMessage, len(r))
	copy(cp, r)
	return cp
}

// FromShop matches every item contributed by shop.
func FromShop(shop Shop) func(CartItem) bool {
	return func(it CartItem) bool { return it.Shop == shop }
}
