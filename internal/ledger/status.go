package ledger

// Status is the derived readiness of a cart for checkout.
type Status string

const (
	StatusEmpty             Status = "empty"
	StatusInsufficientStock Status = "insufficient-stock"
	StatusInvalid           Status = "invalid"
	StatusReady             Status = "ready"
)

// StatusOf derives the cart status. The first matching condition wins:
// no items, then any line short on stock, then a non-positive total.
func StatusOf(cart Cart, totals Totals) Status {
	if cart.IsEmpty() {
		return StatusEmpty
	}
	for _, it := range cart.items {
		if it.Quantity > it.Available {
			return StatusInsufficientStock
		}
	}
	if totals.Total <= 0 {
		return StatusInvalid
	}
	return StatusReady
}

// Ready reports whether checkout may proceed.
func (s Status) Ready() bool {
	return s == StatusReady
}
