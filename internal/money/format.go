package money

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Formatter renders minor-unit amounts for display in a currency and locale.
// It is the only place where amounts become strings.
type Formatter struct {
	unit    currency.Unit
	printer *message.Printer
	scale   int
}

// NewFormatter builds a formatter for an ISO 4217 code and a BCP 47 locale.
func NewFormatter(code, locale string) (*Formatter, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return nil, fmt.Errorf("currency %q: %w", code, err)
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("locale %q: %w", locale, err)
	}
	scale, _ := currency.Standard.Rounding(unit)
	return &Formatter{
		unit:    unit,
		printer: message.NewPrinter(tag),
		scale:   scale,
	}, nil
}

// Code returns the ISO currency code.
func (f *Formatter) Code() string {
	return f.unit.String()
}

// Scale returns the number of minor-unit digits for the currency.
func (f *Formatter) Scale() int {
	return f.scale
}

// Format renders a as "<ISO> <localized major units>", e.g. "USD 1,234.50".
func (f *Formatter) Format(a Amount) string {
	major, _ := decimal.New(int64(a), int32(-f.scale)).Float64()
	return f.printer.Sprintf("%s %v", f.unit.String(), number.Decimal(major, number.Scale(f.scale)))
}
