package pricing

// Catalog is the PricingRuleCatalog: an immutable, ordered set of rules handed
// to Evaluate. The engine never reads rules from anywhere else.
type Catalog struct {
	rules []PricingRule
}

// NewCatalog copies rules into a new catalog.
func NewCatalog(rules ...PricingRule) Catalog {
	cp := make([]PricingRule, len(rules))
	for i, r := range rules {
		cp[i] = cloneRule(r)
	}
	return Catalog{rules: cp}
}

// Rules returns a copy of every rule in declaration order.
func (c Catalog) Rules() []PricingRule {
	out := make([]PricingRule, len(c.rules))
	for i, r := range c.rules {
		out[i] = cloneRule(r)
	}
	return out
}

// Len returns the number of rules, enabled or not.
func (c Catalog) Len() int {
	return len(c.rules)
}

// Lookup returns the first rule with the given id.
func (c Catalog) Lookup(id string) (PricingRule, bool) {
	for _, r := range c.rules {
		if r.ID == id {
			return cloneRule(r), true
		}
	}
	return PricingRule{}, false
}

// Validate reports a diagnostic for every rule that Evaluate would skip as
// malformed, in declaration order. Disabled rules are checked too.
func (c Catalog) Validate() []Diagnostic {
	var diags []Diagnostic
	seen := make(map[string]bool, len(c.rules))
	for _, r := range c.rules {
		if err := r.Validate(); err != nil {
			diags = append(diags, diagnosticFor(r, err))
			continue
		}
		if seen[r.ID] {
			diags = append(diags, duplicateDiagnostic(r))
			continue
		}
		seen[r.ID] = true
	}
	return diags
}

func duplicateDiagnostic(r PricingRule) Diagnostic {
	return Diagnostic{
		RuleID:   r.ID,
		Category: r.Category,
		Code:     DiagDuplicateID,
		Message:  "rule id already used by an earlier rule",
	}
}

// cloneRule deep-copies the pointer and slice fields so callers cannot
// mutate catalog contents.
func cloneRule(r PricingRule) PricingRule {
	if r.Cap != nil {
		c := *r.Cap
		r.Cap = &c
	}
	th := r.Threshold
	if th.MinPoints != nil {
		v := *th.MinPoints
		th.MinPoints = &v
	}
	if th.MinUnits != nil {
		v := *th.MinUnits
		th.MinUnits = &v
	}
	if th.Window != nil {
		v := *th.Window
		th.Window = &v
	}
	if th.EventActive != nil {
		v := *th.EventActive
		th.EventActive = &v
	}
	if th.Tiers != nil {
		th.Tiers = append([]string(nil), th.Tiers...)
	}
	r.Threshold = th
	return r
}
