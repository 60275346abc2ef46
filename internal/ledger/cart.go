package ledger

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/roach88/till/internal/money"
	"github.com/roach88/till/internal/pricing"
)

// CartItem is one line of a cart.
type CartItem struct {
	ProductID string       `json:"product_id" yaml:"product_id"`
	VariantID string       `json:"variant_id,omitempty" yaml:"variant_id"`
	UnitPrice money.Amount `json:"unit_price" yaml:"unit_price"`
	Quantity  int64        `json:"quantity" yaml:"quantity"`

	// Available is the inventory snapshot taken when the item was added.
	Available int64 `json:"available" yaml:"available"`

	// Serialized items are bound to concrete units by the inventory
	// allocator before the sale is committed.
	Serialized bool `json:"serialized,omitempty" yaml:"serialized"`
}

// Validate checks the item invariants.
func (it CartItem) Validate() error {
	if strings.TrimSpace(it.ProductID) == "" {
		return ErrMissingProduct
	}
	if it.Quantity < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidQuantity, it.Quantity)
	}
	if it.UnitPrice < 0 {
		return fmt.Errorf("%w: got %d", ErrNegativePrice, it.UnitPrice)
	}
	if it.Available < 0 {
		return fmt.Errorf("%w: got %d", ErrNegativeAvailable, it.Available)
	}
	if _, ok := lineTotal(it.UnitPrice, it.Quantity); !ok {
		return fmt.Errorf("%w: %d × %d", ErrAmountOverflow, it.UnitPrice, it.Quantity)
	}
	return nil
}

// lineTotal multiplies a non-negative price by a positive quantity and
// reports false if the product does not fit in an Amount.
func lineTotal(price money.Amount, qty int64) (money.Amount, bool) {
	if price != 0 && qty > math.MaxInt64/int64(price) {
		return 0, false
	}
	return price * money.Amount(qty), true
}

// checkSums rejects items whose subtotal or unit count would overflow.
func checkSums(items []CartItem) error {
	var subtotal money.Amount
	var units int64
	for _, it := range items {
		line, ok := lineTotal(it.UnitPrice, it.Quantity)
		if !ok || subtotal > math.MaxInt64-line || units > math.MaxInt64-it.Quantity {
			return fmt.Errorf("%w: cart subtotal at %s", ErrAmountOverflow, it.ProductID)
		}
		subtotal += line
		units += it.Quantity
	}
	return nil
}

// LineTotal returns unit price × quantity.
func (it CartItem) LineTotal() money.Amount {
	return it.UnitPrice * money.Amount(it.Quantity)
}

func (it CartItem) sameLine(productID, variantID string) bool {
	return it.ProductID == productID && it.VariantID == variantID
}

// Cart is a validated, immutable cart. The zero value is an empty cart.
type Cart struct {
	items    []CartItem
	manual   *Discount
	customer *pricing.Customer
	at       time.Time
}

// Option configures a new cart.
type Option func(*Cart)

// WithManualDiscount attaches a manual discount.
func WithManualDiscount(d Discount) Option {
	return func(c *Cart) { c.manual = &d }
}

// ForCustomer associates the sale with a customer.
func ForCustomer(cust pricing.Customer) Option {
	return func(c *Cart) { c.customer = &cust }
}

// AtTime sets the time context used by time-window rules.
func AtTime(t time.Time) Option {
	return func(c *Cart) { c.at = t }
}

// NewCart validates items and builds a cart. Items sharing a product and
// variant are merged.
func NewCart(items []CartItem, opts ...Option) (Cart, error) {
	var c Cart
	for i, it := range items {
		if err := it.Validate(); err != nil {
			return Cart{}, fmt.Errorf("item %d (%s): %w", i, it.ProductID, err)
		}
		merged, err := mergeItem(c.items, it)
		if err != nil {
			return Cart{}, err
		}
		c.items = merged
	}
	if err := checkSums(c.items); err != nil {
		return Cart{}, err
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.manual != nil && c.manual.kind == "" {
		return Cart{}, fmt.Errorf("manual discount: %w", ErrUnknownDiscountType)
	}
	return c, nil
}

// MustCart is NewCart that panics. Use in tests.
func MustCart(items []CartItem, opts ...Option) Cart {
	c, err := NewCart(items, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// mergeItem appends it, or folds it into an existing line for the same
// product and variant. The earlier price is kept; the availability snapshot
// is refreshed.
func mergeItem(items []CartItem, it CartItem) ([]CartItem, error) {
	for i := range items {
		if items[i].sameLine(it.ProductID, it.VariantID) {
			if items[i].Quantity > math.MaxInt64-it.Quantity {
				return items, fmt.Errorf("%w: quantity of %s", ErrAmountOverflow, it.ProductID)
			}
			items[i].Quantity += it.Quantity
			items[i].Available = it.Available
			items[i].Serialized = items[i].Serialized || it.Serialized
			return items, nil
		}
	}
	return append(items, it), nil
}

func (c Cart) clone() Cart {
	out := c
	out.items = append([]CartItem(nil), c.items...)
	return out
}

// Items returns a copy of the cart lines.
func (c Cart) Items() []CartItem {
	return append([]CartItem(nil), c.items...)
}

// Len returns the number of lines.
func (c Cart) Len() int {
	return len(c.items)
}

// IsEmpty reports whether the cart has no lines.
func (c Cart) IsEmpty() bool {
	return len(c.items) == 0
}

// ManualDiscount returns the manual discount, or nil.
func (c Cart) ManualDiscount() *Discount {
	if c.manual == nil {
		return nil
	}
	d := *c.manual
	return &d
}

// Customer returns the associated customer, or nil for anonymous sales.
func (c Cart) Customer() *pricing.Customer {
	if c.customer == nil {
		return nil
	}
	cust := *c.customer
	return &cust
}

// Time returns the time context.
func (c Cart) Time() time.Time {
	return c.at
}

// Subtotal returns Σ unit price × quantity.
func (c Cart) Subtotal() money.Amount {
	var sum money.Amount
	for _, it := range c.items {
		sum += it.LineTotal()
	}
	return sum
}

// Units returns Σ quantity.
func (c Cart) Units() int64 {
	var n int64
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

// PricingInput returns the view of the cart the pricing engine evaluates.
func (c Cart) PricingInput() pricing.Input {
	return pricing.Input{
		Subtotal: c.Subtotal(),
		Units:    c.Units(),
		Customer: c.Customer(),
		At:       c.at,
	}
}

// AddItem returns a cart with it added or merged into its existing line.
func (c Cart) AddItem(it CartItem) (Cart, error) {
	if err := it.Validate(); err != nil {
		return c, fmt.Errorf("add %s: %w", it.ProductID, err)
	}
	out := c.clone()
	var err error
	if out.items, err = mergeItem(out.items, it); err != nil {
		return c, fmt.Errorf("add %s: %w", it.ProductID, err)
	}
	if err = checkSums(out.items); err != nil {
		return c, fmt.Errorf("add %s: %w", it.ProductID, err)
	}
	return out, nil
}

// SetQuantity returns a cart with the line's quantity replaced.
func (c Cart) SetQuantity(productID, variantID string, qty int64) (Cart, error) {
	if qty < 1 {
		return c, fmt.Errorf("set quantity %s: %w: got %d", productID, ErrInvalidQuantity, qty)
	}
	out := c.clone()
	for i := range out.items {
		if out.items[i].sameLine(productID, variantID) {
			out.items[i].Quantity = qty
			if err := checkSums(out.items); err != nil {
				return c, fmt.Errorf("set quantity %s: %w", productID, err)
			}
			return out, nil
		}
	}
	return c, fmt.Errorf("set quantity %s/%s: %w", productID, variantID, ErrItemNotFound)
}

// RemoveItem returns a cart without the given line.
func (c Cart) RemoveItem(productID, variantID string) (Cart, error) {
	for i := range c.items {
		if c.items[i].sameLine(productID, variantID) {
			out := c.clone()
			out.items = append(out.items[:i], out.items[i+1:]...)
			return out, nil
		}
	}
	return c, fmt.Errorf("remove %s/%s: %w", productID, variantID, ErrItemNotFound)
}

// SetManualDiscount returns a cart with d as its manual discount.
func (c Cart) SetManualDiscount(d Discount) (Cart, error) {
	if d.kind == "" {
		return c, fmt.Errorf("manual discount: %w", ErrUnknownDiscountType)
	}
	out := c.clone()
	out.manual = &d
	return out, nil
}

// ClearManualDiscount returns a cart without a manual discount.
func (c Cart) ClearManualDiscount() Cart {
	out := c.clone()
	out.manual = nil
	return out
}

// SetCustomer returns a cart for cust. A nil customer makes the sale anonymous.
func (c Cart) SetCustomer(cust *pricing.Customer) Cart {
	out := c.clone()
	out.customer = nil
	if cust != nil {
		cp := *cust
		out.customer = &cp
	}
	return out
}

// SetTime returns a cart with a new time context.
func (c Cart) SetTime(t time.Time) Cart {
	out := c.clone()
	out.at = t
	return out
}
