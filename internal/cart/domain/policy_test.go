package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func hoodie() CartItem {
	return CartItem{
		Shop:                  ShopStash,
		Name:                  "Hoodie",
		BasePrice:             decimal.NewFromInt(25),
		Quantity:              1,
		SubmissionInformation: json.RawMessage(`{"id":7}`),
		Components:            []ComponentSelection{},
	}
}

func TestRequiresDelivery(t *testing.T) {
	c := NewCart()
	assert.False(t, RequiresDelivery(c))
	c.Items = append(c.Items, coke())
	assert.False(t, RequiresDelivery(c))
	c.Items = append(c.Items, hoodie())
	assert.True(t, RequiresDelivery(c))
}

func TestIsDeliveryAddressComplete(t *testing.T) {
	a := Address{Recipient: "A. Member", Line1: "1 Union Road", City: "Durham", Postcode: "DH1 1AA"}
	assert.True(t, IsDeliveryAddressComplete(a))

	a.Line2 = ""
	assert.True(t, IsDeliveryAddressComplete(a))

	a.City = " "
	assert.False(t, IsDeliveryAddressComplete(a))
}

func TestIsReadyForCheckout(t *testing.T) {
	c := NewCart()
	assert.False(t, IsReadyForCheckout(c))
	assert.Equal(t, []Blocker{BlockerEmpty}, CheckoutBlockers(c))

	c.Items = append(c.Items, coke())
	assert.True(t, IsReadyForCheckout(c))

	c.Locked = true
	assert.False(t, IsReadyForCheckout(c))
	c.Locked = false

	c.Items = append(c.Items, hoodie())
	assert.False(t, IsReadyForCheckout(c))
	assert.Equal(t, []Blocker{BlockerNoDeliveryOption}, CheckoutBlockers(c))

	c.Delivery = &Delivery{Required: true, Option: OptionCollection}
	assert.True(t, IsReadyForCheckout(c))

	c.Delivery.Option = OptionDelivery
	assert.Equal(t, []Blocker{BlockerAddress}, CheckoutBlockers(c))

	c.Delivery.Address = Address{Recipient: "A. Member", Line1: "1 Union Road", City: "Durham", Postcode: "DH1 1AA"}
	assert.True(t, IsReadyForCheckout(c))
}

func TestNormalizeDerivesRequired(t *testing.T) {
	c := NewCart()
	c.Items = append(c.Items, coke())
	c.Delivery = &Delivery{Required: true, Option: OptionCollection}
	c.Normalize()
	assert.False(t, c.Delivery.Required)

	c.Items = append(c.Items, hoodie())
	c.Normalize()
	assert.True(t, c.Delivery.Required)
}
