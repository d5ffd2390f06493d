package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SchemaFunc validates the decoded submission payload of one shop.
type SchemaFunc func(payload map[string]any) error

// Schemas validates submission payloads per shop. Payloads stay opaque to the cart:
// only their shape is checked, never prices or business rules.
type Schemas map[Shop]SchemaFunc

func DefaultSchemas() Schemas {
	return Schemas{
		ShopStash: requireMembers("id"),
		ShopEvent: requireMembers("id"),
	}
}

func requireMembers(names ...string) SchemaFunc {
	return func(payload map[string]any) error {
		for _, n := range names {
			if _, ok := payload[n]; !ok {
				return fmt.Errorf("missing %q", n)
			}
		}
		return nil
	}
}

// Normalize checks that raw is a JSON object accepted by the shop's schema and
// returns it, with null or empty input replaced by {}.
func (s Schemas) Normalize(shop Shop, raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}
	var payload map[string]any
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return nil, fmt.Errorf("%w: %s submission information must be a JSON object", ErrInvalidItem, shop)
	}
	if fn, ok := s[shop]; ok && fn != nil {
		if err := fn(payload); err != nil {
			return nil, fmt.Errorf("%w: %s submission information: %v", ErrInvalidItem, shop, err)
		}
	}
	return json.RawMessage(trimmed), nil
}
