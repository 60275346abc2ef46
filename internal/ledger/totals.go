package ledger

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/roach88/till/internal/money"
)

// Totals is the authoritative money snapshot of a cart.
type Totals struct {
	Subtotal          money.Amount `json:"subtotal"`
	AutomaticDiscount money.Amount `json:"automatic_discount"`
	ManualDiscount    money.Amount `json:"manual_discount"`
	TotalDiscount     money.Amount `json:"total_discount"`
	TaxableBase       money.Amount `json:"taxable_base"`
	Tax               money.Amount `json:"tax"`
	DeliveryFee       money.Amount `json:"delivery_fee"`
	Total             money.Amount `json:"total"`
}

// ComputeTotals combines the subtotal of cart with the automatic discount
// from the pricing engine, the manual discount (nil for none), the delivery
// fee and the tax rate.
//
// When automatic + manual exceeds the subtotal, the automatic discount is
// kept whole and ManualDiscount reports only the part that still applied, so
// AutomaticDiscount + ManualDiscount == TotalDiscount ≤ Subtotal.
func ComputeTotals(cart Cart, automatic money.Amount, manual *Discount, deliveryFee money.Amount, taxRate money.Rate) (Totals, error) {
	if deliveryFee < 0 {
		return Totals{}, fmt.Errorf("%w: got %d", ErrNegativeDeliveryFee, deliveryFee)
	}

	subtotal := cart.Subtotal()
	auto := money.Clamp(automatic, 0, subtotal)

	var manualAmount money.Amount
	if manual != nil {
		if manual.kind == "" {
			return Totals{}, fmt.Errorf("manual discount: %w", ErrUnknownDiscountType)
		}
		manualAmount = manual.Amount(subtotal)
	}

	totalDiscount := auto + money.Min(manualAmount, subtotal-auto)
	net := subtotal - totalDiscount
	if deliveryFee > math.MaxInt64-net {
		return Totals{}, fmt.Errorf("%w: delivery fee %d", ErrAmountOverflow, deliveryFee)
	}
	taxableBase := net + deliveryFee
	headroom := decimal.NewFromInt(int64(math.MaxInt64 - taxableBase))
	if decimal.NewFromInt(int64(taxableBase)).Mul(taxRate.Decimal()).Round(0).GreaterThan(headroom) {
		return Totals{}, fmt.Errorf("%w: tax on %d", ErrAmountOverflow, taxableBase)
	}
	tax := taxRate.Apply(taxableBase)

	return Totals{
		Subtotal:          subtotal,
		AutomaticDiscount: auto,
		ManualDiscount:    totalDiscount - auto,
		TotalDiscount:     totalDiscount,
		TaxableBase:       taxableBase,
		Tax:               tax,
		DeliveryFee:       deliveryFee,
		Total:             money.Max(taxableBase+tax, 0),
	}, nil
}
