package pricing

import (
	"errors"
	"fmt"
)

// DiagnosticCode categorizes a configuration problem with a rule.
type DiagnosticCode string

const (
	// DiagMissingID indicates a rule without an id.
	DiagMissingID DiagnosticCode = "MISSING_ID"

	// DiagDuplicateID indicates a second rule reusing an earlier id.
	DiagDuplicateID DiagnosticCode = "DUPLICATE_ID"

	// DiagUnknownCategory indicates a category outside the closed set.
	DiagUnknownCategory DiagnosticCode = "UNKNOWN_CATEGORY"

	// DiagInvalidValue indicates a bad percentage, a negative fixed amount or an unknown value type.
	DiagInvalidValue DiagnosticCode = "INVALID_VALUE"

	// DiagInvalidCap indicates a negative cap.
	DiagInvalidCap DiagnosticCode = "INVALID_CAP"

	// DiagMissingThreshold indicates the threshold field for the category is absent.
	DiagMissingThreshold DiagnosticCode = "MISSING_THRESHOLD"

	// DiagInvalidDocument indicates a rule document that could not be decoded at all.
	DiagInvalidDocument DiagnosticCode = "INVALID_DOCUMENT"
)

// Diagnostic is a non-fatal report about a skipped rule.
type Diagnostic struct {
	RuleID   string         `json:"rule_id,omitempty"`
	Category Category       `json:"category,omitempty"`
	Code     DiagnosticCode `json:"code"`
	Field    string         `json:"field,omitempty"`
	Message  string         `json:"message"`
}

func (d Diagnostic) String() string {
	if d.RuleID != "" {
		return fmt.Sprintf("%s: %s (rule=%s)", d.Code, d.Message, d.RuleID)
	}
	return fmt.Sprintf("%s: %s", d.Code, d.Message)
}

// RuleError is returned by PricingRule.Validate.
type RuleError struct {
	Code    DiagnosticCode
	Field   string
	Message string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// diagnosticFor turns a validation error into a Diagnostic for rule r.
func diagnosticFor(r PricingRule, err error) Diagnostic {
	d := Diagnostic{RuleID: r.ID, Category: r.Category, Code: DiagInvalidDocument, Message: err.Error()}
	var re *RuleError
	if errors.As(err, &re) {
		d.Code = re.Code
		d.Field = re.Field
		d.Message = re.Message
	}
	return d
}
