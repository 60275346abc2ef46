package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is a monetary value in minor units.
type Amount int64

// ErrNegativeRate is returned when a rate below zero is parsed.
var ErrNegativeRate = errors.New("rate must not be negative")

// ErrPercentRange is returned for percentages outside 0..100.
var ErrPercentRange = errors.New("percentage must be between 0 and 100")

var hundred = decimal.NewFromInt(100)

// Max returns the larger of a and b.
func Max(a, b Amount) Amount {
	if a > b {
		return a
	}
	return b
}

// Min returns the smaller of a and b.
func Min(a, b Amount) Amount {
	if a < b {
		return a
	}
	return b
}

// Clamp bounds a to [lo, hi]. hi wins when lo > hi.
func Clamp(a, lo, hi Amount) Amount {
	return Min(Max(a, lo), hi)
}

// RoundHalfUp converts a decimal number of minor units to an Amount.
// Negative inputs are floored at zero first; money never goes negative here.
func RoundHalfUp(d decimal.Decimal) Amount {
	if d.IsNegative() {
		return 0
	}
	return Amount(d.Round(0).IntPart())
}

// Percent returns pct percent of base, rounded half-up to minor units.
func Percent(base Amount, pct decimal.Decimal) Amount {
	if base <= 0 {
		return 0
	}
	return RoundHalfUp(decimal.NewFromInt(int64(base)).Mul(pct).Div(hundred))
}

// ValidatePercent reports whether pct is a usable 0..100 percentage.
func ValidatePercent(pct decimal.Decimal) error {
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return fmt.Errorf("%w: %s", ErrPercentRange, pct.String())
	}
	return nil
}

// Rate is a non-negative decimal fraction such as 0.18 for 18%.
// The zero value is a zero rate.
type Rate struct {
	d decimal.Decimal
}

// ParseRate parses a decimal fraction ("0.18").
func ParseRate(s string) (Rate, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Rate{}, fmt.Errorf("parse rate %q: %w", s, err)
	}
	return NewRate(d)
}

// NewRate wraps d, rejecting negative values.
func NewRate(d decimal.Decimal) (Rate, error) {
	if d.IsNegative() {
		return Rate{}, fmt.Errorf("%w: %s", ErrNegativeRate, d.String())
	}
	return Rate{d: d}, nil
}

// MustRate is ParseRate that panics. Use for constants and tests.
func MustRate(s string) Rate {
	r, err := ParseRate(s)
	if err != nil {
		panic(err)
	}
	return r
}

// Apply returns base × rate rounded half-up to minor units.
func (r Rate) Apply(base Amount) Amount {
	if base <= 0 {
		return 0
	}
	return RoundHalfUp(decimal.NewFromInt(int64(base)).Mul(r.d))
}

// Decimal exposes the underlying decimal value.
func (r Rate) Decimal() decimal.Decimal {
	return r.d
}

// IsZero reports whether the rate is zero.
func (r Rate) IsZero() bool {
	return r.d.IsZero()
}

func (r Rate) String() string {
	return r.d.String()
}

// MarshalJSON encodes the rate as a JSON string to keep full precision.
func (r Rate) MarshalJSON() ([]byte, error) {
	return []byte(`"` + r.d.String() + `"`), nil
}

// UnmarshalJSON accepts a JSON number or string.
func (r *Rate) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	parsed, err := NewRate(d)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
