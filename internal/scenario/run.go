package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/till/internal/catalog"
	"github.com/roach88/till/internal/ledger"
	"github.com/roach88/till/internal/money"
	"github.com/roach88/till/internal/pricing"
)

// Result is the outcome of running a scenario.
type Result struct {
	Name string `json:"name"`

	// Pass is true when every checked expectation matched.
	Pass bool `json:"pass"`

	// Errors lists the mismatches. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	Quote ledger.Quote `json:"quote"`
}

func (r *Result) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// Run prices the scenario cart and checks it against the expectations.
// An error means the scenario could not be run at all; mismatches are
// reported in the result.
func Run(s *Scenario) (*Result, error) {
	rules := pricing.NewCatalog()
	var diags []pricing.Diagnostic
	if s.Rules != "" {
		loaded, err := catalog.Load(s.Rules)
		if err != nil {
			return nil, fmt.Errorf("failed to load rules: %w", err)
		}
		rules = loaded.Catalog
		diags = loaded.Diagnostics
	}

	cart, err := s.Cart()
	if err != nil {
		return nil, fmt.Errorf("failed to build cart: %w", err)
	}
	opts, err := s.QuoteOptions()
	if err != nil {
		return nil, err
	}
	quote, err := ledger.NewQuote(cart, rules, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to quote: %w", err)
	}
	// Rules dropped while decoding never reach the engine; report them with
	// the ones it skipped.
	quote.Diagnostics = append(diags, quote.Diagnostics...)

	result := &Result{Name: s.Name, Pass: true, Errors: []string{}, Quote: quote}
	check(result, s.Expect)
	return result, nil
}

func check(r *Result, e Expect) {
	t := r.Quote.Totals
	amounts := []struct {
		field string
		want  *money.Amount
		got   money.Amount
	}{
		{"subtotal", e.Subtotal, t.Subtotal},
		{"automatic_discount", e.AutomaticDiscount, t.AutomaticDiscount},
		{"manual_discount", e.ManualDiscount, t.ManualDiscount},
		{"total_discount", e.TotalDiscount, t.TotalDiscount},
		{"tax", e.Tax, t.Tax},
		{"total", e.Total, t.Total},
	}
	for _, a := range amounts {
		if a.want != nil && *a.want != a.got {
			r.addError("%s: expected %d, got %d", a.field, *a.want, a.got)
		}
	}

	if e.Status != "" && ledger.Status(e.Status) != r.Quote.Status {
		r.addError("status: expected %s, got %s", e.Status, r.Quote.Status)
	}

	if e.AppliedRules != nil && !sameSet(e.AppliedRules, r.Quote.AppliedRuleIDs) {
		r.addError("applied_rules: expected %v, got %v", sorted(e.AppliedRules), r.Quote.AppliedRuleIDs)
	}

	if e.Diagnostics != nil {
		var got []string
		for _, d := range r.Quote.Diagnostics {
			got = append(got, d.RuleID)
		}
		if !sameSet(e.Diagnostics, got) {
			r.addError("diagnostics: expected %v, got %v", sorted(e.Diagnostics), sorted(got))
		}
	}
}

func sameSet(a, b []string) bool {
	x, y := sorted(a), sorted(b)
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

func sorted(ids []string) []string {
	out := append([]string{}, ids...)
	sort.Strings(out)
	return out
}

// Find returns the scenario files under dir, optionally restricted to
// names matching the glob filter.
func Find(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != dir && info.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}
