package pricing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/till/internal/money"
)

// Category is the closed set of automatic discount rule kinds.
type Category string

const (
	CategoryLoyalty      Category = "loyalty"
	CategoryBulk         Category = "bulk"
	CategoryTimeWindow   Category = "time-window"
	CategoryCustomerTier Category = "customer-tier"
	CategorySpecialEvent Category = "special-event"
)

// Categories lists every category in evaluation order.
var Categories = []Category{
	CategoryLoyalty,
	CategoryBulk,
	CategoryTimeWindow,
	CategoryCustomerTier,
	CategorySpecialEvent,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory converts a configuration string to a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown rule category %q", s)
	}
	return c, nil
}

// ValueKind says how a rule's value turns into an amount.
type ValueKind string

const (
	ValuePercentage ValueKind = "percentage"
	ValueFixed      ValueKind = "fixed"
)

// RuleValue is either a percentage of the subtotal or a fixed amount.
// Build it with Percentage or Fixed.
type RuleValue struct {
	Kind    ValueKind
	Percent decimal.Decimal
	Amount  money.Amount
}

// Percentage returns a RuleValue of pct percent of the subtotal.
func Percentage(pct decimal.Decimal) RuleValue {
	return RuleValue{Kind: ValuePercentage, Percent: pct}
}

// Fixed returns a RuleValue of a fixed minor-unit amount.
func Fixed(a money.Amount) RuleValue {
	return RuleValue{Kind: ValueFixed, Amount: a}
}

// candidate computes the raw discount this value yields on subtotal.
func (v RuleValue) candidate(subtotal money.Amount) money.Amount {
	switch v.Kind {
	case ValuePercentage:
		return money.Percent(subtotal, v.Percent)
	case ValueFixed:
		return v.Amount
	}
	return 0
}

func (v RuleValue) String() string {
	if v.Kind == ValuePercentage {
		return v.Percent.String() + "%"
	}
	return fmt.Sprintf("%d", v.Amount)
}

// ClockTime is a time of day in minutes since midnight.
type ClockTime int

// ParseClock parses "HH:MM" (24h).
func ParseClock(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: want HH:MM", s)
	}
	return ClockTime(t.Hour()*60 + t.Minute()), nil
}

// ClockOf returns the time of day of t in t's own location.
func ClockOf(t time.Time) ClockTime {
	return ClockTime(t.Hour()*60 + t.Minute())
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// ClockWindow is an inclusive time-of-day range. When End is before Start the
// window wraps past midnight.
type ClockWindow struct {
	Start ClockTime
	End   ClockTime
}

// Contains reports whether c falls inside the window.
func (w ClockWindow) Contains(c ClockTime) bool {
	if w.End < w.Start {
		return c >= w.Start || c <= w.End
	}
	return c >= w.Start && c <= w.End
}

// Threshold holds the activation condition of a rule. Only the field that
// belongs to the rule's category is consulted:
//
//	loyalty        MinPoints
//	bulk           MinUnits
//	time-window    Window
//	customer-tier  Tiers
//	special-event  EventActive
type Threshold struct {
	MinPoints   *int64
	MinUnits    *int64
	Window      *ClockWindow
	Tiers       []string
	EventActive *bool
}

// PricingRule is one configured automatic discount.
type PricingRule struct {
	ID        string
	Name      string
	Category  Category
	Value     RuleValue
	Cap       *money.Amount
	Threshold Threshold
	Enabled   bool
}

// Validate checks that the rule can be evaluated. It returns a *RuleError.
func (r PricingRule) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return &RuleError{Code: DiagMissingID, Field: "id", Message: "rule id is required"}
	}
	if !r.Category.Valid() {
		return &RuleError{Code: DiagUnknownCategory, Field: "category", Message: fmt.Sprintf("unknown category %q", r.Category)}
	}

	switch r.Value.Kind {
	case ValuePercentage:
		if err := money.ValidatePercent(r.Value.Percent); err != nil {
			return &RuleError{Code: DiagInvalidValue, Field: "value", Message: err.Error()}
		}
	case ValueFixed:
		if r.Value.Amount < 0 {
			return &RuleError{Code: DiagInvalidValue, Field: "value", Message: "fixed amount must not be negative"}
		}
	default:
		return &RuleError{Code: DiagInvalidValue, Field: "type", Message: fmt.Sprintf("unknown value type %q", r.Value.Kind)}
	}

	if r.Cap != nil && *r.Cap < 0 {
		return &RuleError{Code: DiagInvalidCap, Field: "cap", Message: "cap must not be negative"}
	}

	th := r.Threshold
	missing := func(field string) error {
		return &RuleError{
			Code:    DiagMissingThreshold,
			Field:   "threshold." + field,
			Message: fmt.Sprintf("%s rule requires threshold.%s", r.Category, field),
		}
	}
	switch r.Category {
	case CategoryLoyalty:
		if th.MinPoints == nil {
			return missing("minPoints")
		}
	case CategoryBulk:
		if th.MinUnits == nil {
			return missing("minUnits")
		}
	case CategoryTimeWindow:
		if th.Window == nil {
			return missing("start/end")
		}
	case CategoryCustomerTier:
		if len(th.Tiers) == 0 {
			return missing("tiers")
		}
	case CategorySpecialEvent:
		if th.EventActive == nil {
			return missing("eventActive")
		}
	}
	return nil
}

// CapOf returns a pointer to a, for building rules.
func CapOf(a money.Amount) *money.Amount {
	return &a
}
