package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/till/internal/pricing"
)

type yamlFile struct {
	Rules []yaml.Node `yaml:"rules"`
}

// LoadYAML loads a rules list from a YAML (or JSON) file.
func LoadYAML(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Path: path, Message: err.Error()}
	}
	res, err := ParseYAML(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Path = path
		}
		return nil, err
	}
	return res, nil
}

// ParseYAML decodes a rules document held in memory.
func ParseYAML(data []byte) (*Result, error) {
	var doc yamlFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, &LoadError{Code: ErrCodeParseFailed, Message: err.Error()}
	}

	result := &Result{Files: 1}
	var rules []pricing.PricingRule
	for i := range doc.Rules {
		node := &doc.Rules[i]
		fallbackID := fmt.Sprintf("rules[%d]", i)

		var m map[string]any
		if err := node.Decode(&m); err != nil {
			result.Diagnostics = append(result.Diagnostics, pricing.Diagnostic{
				RuleID:  fallbackID,
				Code:    pricing.DiagInvalidDocument,
				Message: fmt.Sprintf("line %d: %v", node.Line, err),
			})
			continue
		}
		raw, err := json.Marshal(m)
		if err != nil {
			result.Diagnostics = append(result.Diagnostics, pricing.Diagnostic{
				RuleID:  fallbackID,
				Code:    pricing.DiagInvalidDocument,
				Message: fmt.Sprintf("line %d: %v", node.Line, err),
			})
			continue
		}
		rule, diag := decodeRule(raw, "")
		if diag != nil {
			if diag.RuleID == "" {
				diag.RuleID = fallbackID
			}
			diag.Message = fmt.Sprintf("line %d: %s", node.Line, diag.Message)
			result.Diagnostics = append(result.Diagnostics, *diag)
			continue
		}
		rules = append(rules, rule)
	}

	result.Catalog = pricing.NewCatalog(rules...)
	return result, nil
}
