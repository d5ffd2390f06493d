package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type DeliveryOption string

const (
	OptionNone       DeliveryOption = ""
	OptionCollection DeliveryOption = "collection"
	OptionDelivery   DeliveryOption = "delivery"
)

func (o DeliveryOption) Valid() bool {
	switch o {
	case OptionNone, OptionCollection, OptionDelivery:
		return true
	}
	return false
}

type Address struct {
	Recipient string `json:"recipient"`
	Line1     string `json:"line1"`
	Line2     string `json:"line2"`
	City      string `json:"city"`
	Postcode  string `json:"postcode"`
}

type Delivery struct {
	Required bool           `json:"required"`
	Option   DeliveryOption `json:"option"`
	Address  Address        `json:"address"`
}

type Cart struct {
	Items         []CartItem `json:"items"`
	DiscountCodes []string   `json:"discountCodes"`
	Locked        bool       `json:"locked"`
	Delivery      *Delivery  `json:"delivery"`
	SavedAt       time.Time  `json:"-"`
}

func NewCart() Cart {
	return Cart{
		Items:         []CartItem{},
		DiscountCodes: []string{},
	}
}

func (c Cart) IsEmpty() bool { return len(c.Items) == 0 }

func (c Cart) ItemCount() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// EstimatedTotal is the client-side subtotal. It is never the amount charged.
func (c Cart) EstimatedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.LineTotal())
	}
	return total
}

func (c Cart) IndexOf(hash string) int {
	for i := range c.Items {
		if c.Items[i].DuplicateHash == hash {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so callers cannot reach the store's state.
func (c Cart) Clone() Cart {
	cp := c
	cp.Items = make([]CartItem, len(c.Items))
	for i, it := range c.Items {
		cp.Items[i] = it.clone()
	}
	cp.DiscountCodes = append([]string{}, c.DiscountCodes...)
	if c.Delivery != nil {
		d := *c.Delivery
		cp.Delivery = &d
	}
	return cp
}

// Normalize re-derives delivery.required from the items.
func (c *Cart) Normalize() {
	if c.Items == nil {
		c.Items = []CartItem{}
	}
	for i := range c.Items {
		if c.Items[i].Components == nil {
			c.Items[i].Components = []ComponentSelection{}
		}
	}
	if c.DiscountCodes == nil {
		c.DiscountCodes = []string{}
	}
	if c.Delivery != nil {
		c.Delivery.Required = RequiresDelivery(*c)
	}
}

func trimmed(s string) bool { return strings.TrimSpace(s) != "" }
