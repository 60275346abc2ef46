package scenario

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/till/internal/ledger"
	"github.com/roach88/till/internal/money"
	"github.com/roach88/till/internal/pricing"
)

// Scenario is one checkout to price and verify.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Rules is the path of the rule catalog, relative to the scenario file.
	// Empty means no rules.
	Rules string `yaml:"rules,omitempty"`

	// TaxRate is a decimal fraction such as "0.0825". Empty means no tax.
	TaxRate string `yaml:"tax_rate,omitempty"`

	DeliveryFee money.Amount `yaml:"delivery_fee,omitempty"`

	// At is the RFC 3339 time of sale. Empty leaves time-window rules unmet.
	At string `yaml:"at,omitempty"`

	Customer       *CustomerSpec     `yaml:"customer,omitempty"`
	ManualDiscount *DiscountSpec     `yaml:"manual_discount,omitempty"`
	Items          []ledger.CartItem `yaml:"items"`

	Expect Expect `yaml:"expect"`
}

// CustomerSpec is the loyalty view of the shopper.
type CustomerSpec struct {
	ID            string `yaml:"id"`
	PointsBalance int64  `yaml:"points_balance"`
	Tier          string `yaml:"tier,omitempty"`
}

// DiscountSpec is a manual discount as typed by the operator.
type DiscountSpec struct {
	Type  string `yaml:"type"`
	Value string `yaml:"value"`
}

// Expect holds the expected outcome. Nil fields are not checked.
type Expect struct {
	Subtotal          *money.Amount `yaml:"subtotal,omitempty"`
	AutomaticDiscount *money.Amount `yaml:"automatic_discount,omitempty"`
	ManualDiscount    *money.Amount `yaml:"manual_discount,omitempty"`
	TotalDiscount     *money.Amount `yaml:"total_discount,omitempty"`
	Tax               *money.Amount `yaml:"tax,omitempty"`
	Total             *money.Amount `yaml:"total,omitempty"`
	Status            string        `yaml:"status,omitempty"`

	// AppliedRules is compared as a set. An explicit empty list asserts
	// that no rule applied.
	AppliedRules []string `yaml:"applied_rules,omitempty"`

	// Diagnostics lists the ids of rules expected to be skipped as malformed.
	Diagnostics []string `yaml:"diagnostics,omitempty"`
}

func (e Expect) empty() bool {
	return e.Subtotal == nil && e.AutomaticDiscount == nil && e.ManualDiscount == nil &&
		e.TotalDiscount == nil && e.Tax == nil && e.Total == nil && e.Status == "" &&
		e.AppliedRules == nil && e.Diagnostics == nil
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected, and the rules path is resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if s.Rules != "" && !filepath.IsAbs(s.Rules) {
		s.Rules = filepath.Join(filepath.Dir(path), s.Rules)
	}
	if s.Rules != "" {
		if _, err := os.Stat(s.Rules); err != nil {
			return nil, fmt.Errorf("invalid scenario: rules not found: %s", s.Rules)
		}
	}
	return s, nil
}

// ParseScenario decodes a scenario from YAML without touching the filesystem.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.TaxRate != "" {
		if _, err := money.ParseRate(s.TaxRate); err != nil {
			return fmt.Errorf("tax_rate: %w", err)
		}
	}
	if s.DeliveryFee < 0 {
		return fmt.Errorf("delivery_fee must not be negative")
	}
	if s.At != "" {
		if _, err := time.Parse(time.RFC3339, s.At); err != nil {
			return fmt.Errorf("at: %w", err)
		}
	}
	if s.Customer != nil && strings.TrimSpace(s.Customer.ID) == "" {
		return fmt.Errorf("customer: id is required")
	}
	if s.ManualDiscount != nil {
		if _, err := ledger.ParseDiscount(s.ManualDiscount.Type, s.ManualDiscount.Value); err != nil {
			return fmt.Errorf("manual_discount: %w", err)
		}
	}
	for i, it := range s.Items {
		if err := it.Validate(); err != nil {
			return fmt.Errorf("items[%d]: %w", i, err)
		}
	}
	if s.Expect.Status != "" {
		switch ledger.Status(s.Expect.Status) {
		case ledger.StatusEmpty, ledger.StatusInsufficientStock, ledger.StatusInvalid, ledger.StatusReady:
		default:
			return fmt.Errorf("expect.status: unknown status %q", s.Expect.Status)
		}
	}
	if s.Expect.empty() {
		return fmt.Errorf("expect must check at least one field")
	}
	return nil
}

// Cart builds the cart the scenario describes.
func (s *Scenario) Cart() (ledger.Cart, error) {
	var opts []ledger.Option
	if s.Customer != nil {
		opts = append(opts, ledger.ForCustomer(pricing.Customer{
			ID:            s.Customer.ID,
			PointsBalance: s.Customer.PointsBalance,
			Tier:          s.Customer.Tier,
		}))
	}
	if s.ManualDiscount != nil {
		d, err := ledger.ParseDiscount(s.ManualDiscount.Type, s.ManualDiscount.Value)
		if err != nil {
			return ledger.Cart{}, err
		}
		opts = append(opts, ledger.WithManualDiscount(d))
	}
	if s.At != "" {
		at, err := time.Parse(time.RFC3339, s.At)
		if err != nil {
			return ledger.Cart{}, err
		}
		opts = append(opts, ledger.AtTime(at))
	}
	return ledger.NewCart(s.Items, opts...)
}

// QuoteOptions returns the store-level quote inputs.
func (s *Scenario) QuoteOptions() (ledger.QuoteOptions, error) {
	opts := ledger.QuoteOptions{DeliveryFee: s.DeliveryFee}
	if s.TaxRate != "" {
		rate, err := money.ParseRate(s.TaxRate)
		if err != nil {
			return ledger.QuoteOptions{}, err
		}
		opts.TaxRate = rate
	}
	return opts, nil
}
