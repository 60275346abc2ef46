package ledger

import "errors"

// Input validation errors. Carts and discounts are rejected at construction
// time with one of these, wrapped with the offending item or value.
var (
	ErrInvalidQuantity      = errors.New("quantity must be at least 1")
	ErrNegativePrice        = errors.New("unit price must not be negative")
	ErrNegativeAvailable    = errors.New("available quantity must not be negative")
	ErrMissingProduct       = errors.New("product id is required")
	ErrUnknownDiscountType  = errors.New("unknown discount type")
	ErrInvalidDiscountValue = errors.New("invalid discount value")
	ErrNegativeDeliveryFee  = errors.New("delivery fee must not be negative")
	ErrItemNotFound         = errors.New("item not in cart")
	ErrAmountOverflow       = errors.New("amount out of range")
)
