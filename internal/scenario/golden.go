package scenario

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/till/internal/audit"
	"github.com/roach88/till/internal/ledger"
	"github.com/roach88/till/internal/pricing"
)

// Snapshot is the part of a run recorded in golden files. The fingerprint
// and diagnostic messages are left out so wording changes do not churn
// the fixtures.
type Snapshot struct {
	Name           string              `json:"name"`
	Totals         ledger.Totals       `json:"totals"`
	Status         ledger.Status       `json:"status"`
	AppliedRuleIDs []string            `json:"applied_rule_ids"`
	Candidates     []pricing.Candidate `json:"candidates"`
	Skipped        []string            `json:"skipped"`
}

// SnapshotOf extracts the golden view of a result.
func SnapshotOf(r *Result) Snapshot {
	s := Snapshot{
		Name:           r.Name,
		Totals:         r.Quote.Totals,
		Status:         r.Quote.Status,
		AppliedRuleIDs: r.Quote.AppliedRuleIDs,
		Candidates:     r.Quote.Candidates,
		Skipped:        []string{},
	}
	if s.AppliedRuleIDs == nil {
		s.AppliedRuleIDs = []string{}
	}
	if s.Candidates == nil {
		s.Candidates = []pricing.Candidate{}
	}
	for _, d := range r.Quote.Diagnostics {
		s.Skipped = append(s.Skipped, d.RuleID)
	}
	return s
}

// MarshalSnapshot returns the canonical JSON of a result's snapshot.
func MarshalSnapshot(r *Result) ([]byte, error) {
	return audit.Canonical(SnapshotOf(r))
}

// RunWithGolden runs scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
