package ledger

import (
	"fmt"
	"time"

	"github.com/roach88/till/internal/audit"
	"github.com/roach88/till/internal/money"
	"github.com/roach88/till/internal/pricing"
)

// QuoteOptions carries the store-level inputs of a quote.
type QuoteOptions struct {
	DeliveryFee money.Amount
	TaxRate     money.Rate
}

// Quote is the full priced view of a cart: engine output, totals and status,
// plus a fingerprint over all of it.
type Quote struct {
	Totals         Totals               `json:"totals"`
	Status         Status               `json:"status"`
	AppliedRuleIDs []string             `json:"applied_rule_ids"`
	Candidates     []pricing.Candidate  `json:"candidates,omitempty"`
	Diagnostics    []pricing.Diagnostic `json:"diagnostics,omitempty"`
	Fingerprint    string               `json:"fingerprint"`
}

// quoteRecord is what the fingerprint covers.
type quoteRecord struct {
	Items          []CartItem        `json:"items"`
	Manual         *Discount         `json:"manual_discount,omitempty"`
	Customer       *pricing.Customer `json:"customer,omitempty"`
	At             string            `json:"at,omitempty"`
	TaxRate        string            `json:"tax_rate"`
	AppliedRuleIDs []string          `json:"applied_rule_ids"`
	Totals         Totals            `json:"totals"`
	Status         Status            `json:"status"`
}

// NewQuote evaluates catalog against cart and computes its totals and status
// using the cart's own manual discount.
func NewQuote(cart Cart, catalog pricing.Catalog, opts QuoteOptions) (Quote, error) {
	result := pricing.Evaluate(cart.PricingInput(), catalog)

	totals, err := ComputeTotals(cart, result.AutomaticDiscount, cart.manual, opts.DeliveryFee, opts.TaxRate)
	if err != nil {
		return Quote{}, err
	}
	status := StatusOf(cart, totals)

	rec := quoteRecord{
		Items:          cart.Items(),
		Manual:         cart.ManualDiscount(),
		Customer:       cart.Customer(),
		TaxRate:        opts.TaxRate.String(),
		AppliedRuleIDs: result.AppliedRuleIDs,
		Totals:         totals,
		Status:         status,
	}
	if !cart.at.IsZero() {
		rec.At = cart.at.Format(time.RFC3339)
	}
	fp, err := audit.Fingerprint(audit.DomainQuote, rec)
	if err != nil {
		return Quote{}, fmt.Errorf("quote fingerprint: %w", err)
	}

	return Quote{
		Totals:         totals,
		Status:         status,
		AppliedRuleIDs: result.AppliedRuleIDs,
		Candidates:     result.Candidates,
		Diagnostics:    result.Diagnostics,
		Fingerprint:    fp,
	}, nil
}
