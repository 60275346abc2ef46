package ledger

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/roach88/till/internal/money"
)

// DiscountType is the closed set of manual discount kinds.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Discount is a manual discount entered at the till. The zero value is not
// usable; build one with PercentageDiscount, FixedDiscount or ParseDiscount.
type Discount struct {
	kind    DiscountType
	percent decimal.Decimal
	amount  money.Amount
}

// PercentageDiscount returns a discount of pct percent (0..100) of the subtotal.
func PercentageDiscount(pct decimal.Decimal) (Discount, error) {
	if err := money.ValidatePercent(pct); err != nil {
		return Discount{}, fmt.Errorf("%w: %v", ErrInvalidDiscountValue, err)
	}
	return Discount{kind: DiscountPercentage, percent: pct}, nil
}

// FixedDiscount returns a discount of a fixed minor-unit amount.
func FixedDiscount(a money.Amount) (Discount, error) {
	if a < 0 {
		return Discount{}, fmt.Errorf("%w: fixed amount %d is negative", ErrInvalidDiscountValue, a)
	}
	return Discount{kind: DiscountFixed, amount: a}, nil
}

// ParseDiscount builds a discount from its wire form. For fixed discounts
// value must be an integer number of minor units.
func ParseDiscount(typ, value string) (Discount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return Discount{}, fmt.Errorf("%w: %q", ErrInvalidDiscountValue, value)
	}
	switch DiscountType(strings.ToLower(strings.TrimSpace(typ))) {
	case DiscountPercentage:
		return PercentageDiscount(d)
	case DiscountFixed:
		if !d.IsInteger() {
			return Discount{}, fmt.Errorf("%w: fixed amount %q is not whole minor units", ErrInvalidDiscountValue, value)
		}
		return FixedDiscount(money.Amount(d.IntPart()))
	default:
		return Discount{}, fmt.Errorf("%w: %q", ErrUnknownDiscountType, typ)
	}
}

// Type reports the discount kind.
func (d Discount) Type() DiscountType {
	return d.kind
}

// Value returns the configured value as a decimal string: the percentage for
// percentage discounts, minor units for fixed ones.
func (d Discount) Value() string {
	if d.kind == DiscountPercentage {
		return d.percent.String()
	}
	return fmt.Sprintf("%d", d.amount)
}

// Amount returns the discount against subtotal, clamped to [0, subtotal].
func (d Discount) Amount(subtotal money.Amount) money.Amount {
	if subtotal <= 0 {
		return 0
	}
	var a money.Amount
	switch d.kind {
	case DiscountPercentage:
		a = money.Percent(subtotal, d.percent)
	case DiscountFixed:
		a = d.amount
	}
	return money.Clamp(a, 0, subtotal)
}

func (d Discount) String() string {
	if d.kind == DiscountPercentage {
		return d.percent.String() + "%"
	}
	return fmt.Sprintf("%d fixed", d.amount)
}

type discountJSON struct {
	Type  DiscountType    `json:"type"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON encodes {"type": ..., "value": ...}. Percentages are strings,
// fixed amounts are integers.
func (d Discount) MarshalJSON() ([]byte, error) {
	var value any = d.amount
	if d.kind == DiscountPercentage {
		value = d.percent.String()
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(discountJSON{Type: d.kind, Value: raw})
}

// UnmarshalJSON accepts the MarshalJSON form; value may be a number or a string.
func (d *Discount) UnmarshalJSON(data []byte) error {
	var doc discountJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	value := strings.Trim(string(doc.Value), `"`)
	parsed, err := ParseDiscount(string(doc.Type), value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
