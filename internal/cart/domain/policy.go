package domain

// Blocker is a reason the cart cannot be checked out yet.
type Blocker string

const (
	BlockerEmpty            Blocker = "cart is empty"
	BlockerLocked           Blocker = "cart is locked"
	BlockerNoDeliveryOption Blocker = "choose collection or delivery"
	BlockerAddress          Blocker = "delivery address is incomplete"
)

// RequiresDelivery reports whether the cart holds stash items that need a
// collection or delivery decision.
func RequiresDelivery(c Cart) bool {
	for _, it := range c.Items {
		if it.Shop == ShopStash {
			return true
		}
	}
	return false
}

// IsDeliveryAddressComplete requires every field except Line2.
func IsDeliveryAddressComplete(a Address) bool {
	return trimmed(a.Recipient) && trimmed(a.Line1) && trimmed(a.City) && trimmed(a.Postcode)
}

func CheckoutBlockers(c Cart) []Blocker {
	var out []Blocker
	if c.IsEmpty() {
		out = append(out, BlockerEmpty)
	}
	if c.Locked {
		out = append(out, BlockerLocked)
	}
	if RequiresDelivery(c) {
		switch {
		case c.Delivery == nil || c.Delivery.Option == OptionNone:
			out = append(out, BlockerNoDeliveryOption)
		case c.Delivery.Option == OptionDelivery && !IsDeliveryAddressComplete(c.Delivery.Address):
			out = append(out, BlockerAddress)
		}
	}
	return out
}

// IsReadyForCheckout gates the pay action. The order API re-validates everything.
func IsReadyForCheckout(c Cart) bool {
	return len(CheckoutBlockers(c)) == 0
}
