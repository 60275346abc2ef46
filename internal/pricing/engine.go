package pricing

import (
	"sort"
	"strings"
	"time"

	"github.com/roach88/till/internal/money"
)

// Customer is the read-only loyalty view of a shopper.
type Customer struct {
	ID            string `json:"id"`
	PointsBalance int64  `json:"points_balance"`
	Tier          string `json:"tier,omitempty"`
}

// Input is everything a rule threshold may look at.
type Input struct {
	// Subtotal is Σ unit price × quantity.
	Subtotal money.Amount

	// Units is Σ quantity across the cart.
	Units int64

	// Customer is nil for anonymous sales.
	Customer *Customer

	// At is the time of sale. A zero time never satisfies a time-window rule.
	At time.Time
}

// Candidate is the amount a passing rule would contribute on its own.
type Candidate struct {
	RuleID   string       `json:"rule_id"`
	Category Category     `json:"category"`
	Amount   money.Amount `json:"amount"`
	Applied  bool         `json:"applied"`
}

// Result is the outcome of Evaluate.
type Result struct {
	// AutomaticDiscount is the aggregate discount, 0 ≤ AutomaticDiscount ≤ Subtotal.
	AutomaticDiscount money.Amount `json:"automatic_discount"`

	// AppliedRuleIDs lists the contributing rules, sorted.
	AppliedRuleIDs []string `json:"applied_rule_ids"`

	// Candidates lists every passing rule, applied or not, in catalog order.
	Candidates []Candidate `json:"candidates,omitempty"`

	// Diagnostics lists skipped malformed rules in catalog order.
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// Evaluate selects the applicable rules from catalog and aggregates their
// discounts for in.
func Evaluate(in Input, catalog Catalog) Result {
	result := Result{AppliedRuleIDs: []string{}}

	best := make(map[Category]int, len(Categories))
	seen := make(map[string]bool, catalog.Len())

	for _, rule := range catalog.rules {
		if err := rule.Validate(); err != nil {
			result.Diagnostics = append(result.Diagnostics, diagnosticFor(rule, err))
			continue
		}
		if seen[rule.ID] {
			result.Diagnostics = append(result.Diagnostics, duplicateDiagnostic(rule))
			continue
		}
		seen[rule.ID] = true

		if !rule.Enabled || !passes(rule, in) {
			continue
		}

		amount := rule.Value.candidate(in.Subtotal)
		if rule.Cap != nil {
			amount = money.Min(amount, *rule.Cap)
		}
		amount = money.Max(amount, 0)

		result.Candidates = append(result.Candidates, Candidate{
			RuleID:   rule.ID,
			Category: rule.Category,
			Amount:   amount,
		})
		idx := len(result.Candidates) - 1

		cur, ok := best[rule.Category]
		if !ok || beats(result.Candidates[idx], result.Candidates[cur]) {
			best[rule.Category] = idx
		}
	}

	var total money.Amount
	for _, cat := range Categories {
		idx, ok := best[cat]
		if !ok {
			continue
		}
		c := &result.Candidates[idx]
		if c.Amount <= 0 {
			continue
		}
		c.Applied = true
		total += c.Amount
		result.AppliedRuleIDs = append(result.AppliedRuleIDs, c.RuleID)
	}
	sort.Strings(result.AppliedRuleIDs)

	result.AutomaticDiscount = money.Clamp(total, 0, money.Max(in.Subtotal, 0))
	return result
}

// beats orders same-category candidates: larger amount first, then smaller id.
func beats(a, b Candidate) bool {
	if a.Amount != b.Amount {
		return a.Amount > b.Amount
	}
	return a.RuleID < b.RuleID
}

// passes tests the rule's threshold against the input. The rule must already
// be valid, so the category's threshold field is present.
func passes(rule PricingRule, in Input) bool {
	th := rule.Threshold
	switch rule.Category {
	case CategoryLoyalty:
		return in.Customer != nil && in.Customer.PointsBalance >= *th.MinPoints
	case CategoryBulk:
		return in.Units >= *th.MinUnits
	case CategoryTimeWindow:
		if in.At.IsZero() {
			return false
		}
		return th.Window.Contains(ClockOf(in.At))
	case CategoryCustomerTier:
		if in.Customer == nil || in.Customer.Tier == "" {
			return false
		}
		for _, tier := range th.Tiers {
			if strings.EqualFold(strings.TrimSpace(tier), strings.TrimSpace(in.Customer.Tier)) {
				return true
			}
		}
		return false
	case CategorySpecialEvent:
		return *th.EventActive
	}
	return false
}
