package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrCorruptSnapshot = errors.New("cart: corrupt snapshot")

type snapshot struct {
	Cart    Cart      `json:"cart"`
	SavedAt time.Time `json:"savedAt"`
}

// EncodeSnapshot produces the durable record {cart, savedAt}.
func EncodeSnapshot(c Cart, savedAt time.Time) ([]byte, error) {
	c.Normalize()
	return json.Marshal(snapshot{Cart: c, SavedAt: savedAt})
}

// DecodeSnapshot parses a durable record. Records missing items, discountCodes or
// locked are rejected so the caller can start over with an empty cart.
func DecodeSnapshot(raw []byte) (Cart, error) {
	var fields struct {
		Cart map[string]json.RawMessage `json:"cart"`
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Cart{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	for _, k := range []string{"items", "discountCodes", "locked"} {
		if v, ok := fields.Cart[k]; !ok || string(v) == "null" {
			return Cart{}, fmt.Errorf("%w: missing %q", ErrCorruptSnapshot, k)
		}
	}

	var s snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return Cart{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	for _, it := range s.Cart.Items {
		if err := it.Validate(); err != nil {
			return Cart{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
		}
	}
	s.Cart.SavedAt = s.SavedAt
	s.Cart.Normalize()
	return s.Cart, nil
}
