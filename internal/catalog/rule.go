package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/roach88/till/internal/money"
	"github.com/roach88/till/internal/pricing"
)

// ruleDoc is the decoded form shared by both formats.
type ruleDoc struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Category  string           `json:"category"`
	Type      string           `json:"type"`
	Value     *decimal.Decimal `json:"value"`
	Cap       *int64           `json:"cap"`
	Enabled   *bool            `json:"enabled"`
	Threshold thresholdDoc     `json:"threshold"`
}

type thresholdDoc struct {
	MinPoints   *int64   `json:"minPoints"`
	MinUnits    *int64   `json:"minUnits"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	Tiers       []string `json:"tiers"`
	EventActive *bool    `json:"eventActive"`
}

// decodeRule turns the JSON form of one rule into a PricingRule. The result
// may still fail PricingRule.Validate; that is reported by the engine.
func decodeRule(data []byte, defaultID string) (pricing.PricingRule, *pricing.Diagnostic) {
	var doc ruleDoc
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return pricing.PricingRule{}, &pricing.Diagnostic{
			RuleID:  defaultID,
			Code:    pricing.DiagInvalidDocument,
			Message: err.Error(),
		}
	}
	if doc.ID == "" {
		doc.ID = defaultID
	}

	rule := pricing.PricingRule{
		ID:       doc.ID,
		Name:     doc.Name,
		Category: pricing.Category(doc.Category),
		Enabled:  doc.Enabled == nil || *doc.Enabled,
	}
	diag := func(code pricing.DiagnosticCode, field, msg string) *pricing.Diagnostic {
		return &pricing.Diagnostic{RuleID: rule.ID, Category: rule.Category, Code: code, Field: field, Message: msg}
	}

	if doc.Value == nil {
		return rule, diag(pricing.DiagInvalidValue, "value", "value is required")
	}
	switch pricing.ValueKind(doc.Type) {
	case pricing.ValuePercentage:
		rule.Value = pricing.Percentage(*doc.Value)
	case pricing.ValueFixed:
		if !doc.Value.IsInteger() {
			return rule, diag(pricing.DiagInvalidValue, "value", fmt.Sprintf("fixed value %s is not whole minor units", doc.Value))
		}
		rule.Value = pricing.Fixed(money.Amount(doc.Value.IntPart()))
	default:
		rule.Value = pricing.RuleValue{Kind: pricing.ValueKind(doc.Type)}
	}

	if doc.Cap != nil {
		rule.Cap = pricing.CapOf(money.Amount(*doc.Cap))
	}

	th := doc.Threshold
	rule.Threshold = pricing.Threshold{
		MinPoints:   th.MinPoints,
		MinUnits:    th.MinUnits,
		Tiers:       th.Tiers,
		EventActive: th.EventActive,
	}
	if th.Start != "" || th.End != "" {
		start, err := pricing.ParseClock(th.Start)
		if err != nil {
			return rule, diag(pricing.DiagInvalidDocument, "threshold.start", err.Error())
		}
		end, err := pricing.ParseClock(th.End)
		if err != nil {
			return rule, diag(pricing.DiagInvalidDocument, "threshold.end", err.Error())
		}
		rule.Threshold.Window = &pricing.ClockWindow{Start: start, End: end}
	}
	return rule, nil
}
