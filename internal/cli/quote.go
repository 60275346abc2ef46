package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/till/internal/catalog"
	"github.com/roach88/till/internal/config"
	"github.com/roach88/till/internal/customer"
	"github.com/roach88/till/internal/ledger"
	"github.com/roach88/till/internal/money"
	"github.com/roach88/till/internal/pricing"
	"github.com/roach88/till/internal/scenario"
)

// QuoteOptions holds flags for the quote command.
type QuoteOptions struct {
	*RootOptions
	Rules       string
	TaxRate     string
	DeliveryFee int64
}

// CartFile is the on-disk form of a cart. JSON is accepted as YAML.
type CartFile struct {
	Items []ledger.CartItem `yaml:"items"`

	// CustomerID is looked up in the configured store.
	CustomerID string `yaml:"customer_id,omitempty"`

	// Customer gives the loyalty view inline, without a store.
	Customer *scenario.CustomerSpec `yaml:"customer,omitempty"`

	ManualDiscount *scenario.DiscountSpec `yaml:"manual_discount,omitempty"`

	// At is the RFC 3339 time of sale. Empty means now.
	At string `yaml:"at,omitempty"`
}

// QuoteResult is the JSON payload of the quote command.
type QuoteResult struct {
	ledger.Quote
	Display map[string]string `json:"display"`
}

// NewQuoteCommand creates the quote command.
func NewQuoteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QuoteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "quote <cart-file>",
		Short: "Price a cart",
		Long: `Price a cart file against the configured discount rules.

Prints subtotal, automatic and manual discounts, tax, delivery fee, total
and the cart status. Malformed rules are skipped and listed as warnings.

Examples:
  till quote cart.yaml
  till quote cart.yaml --rules ./rules --tax-rate 0.0825
  till quote cart.json --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuote(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Rules, "rules", "", "rules directory or file (overrides config)")
	cmd.Flags().StringVar(&opts.TaxRate, "tax-rate", "", "tax rate as a decimal fraction (overrides config)")
	cmd.Flags().Int64Var(&opts.DeliveryFee, "delivery-fee", 0, "delivery fee in minor units (overrides config)")

	return cmd
}

func runQuote(opts *QuoteOptions, cartPath string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.Rules != "" {
		cfg.Rules = opts.Rules
	}
	if opts.TaxRate != "" {
		cfg.TaxRate = opts.TaxRate
	}
	if cmd.Flags().Changed("delivery-fee") {
		cfg.DeliveryFee = money.Amount(opts.DeliveryFee)
	}
	if err := cfg.Validate(); err != nil {
		return out.Fail(ExitCommandError, "E_CONFIG", err.Error(), nil)
	}

	rules, decodeDiags, err := loadRules(cfg.Rules)
	if err != nil {
		return out.Fail(ExitCommandError, "E_RULES", err.Error(), nil)
	}
	out.VerboseLog("Loaded %d rule(s) from %s", rules.Len(), cfg.Rules)

	file, err := readCartFile(cartPath)
	if err != nil {
		return out.Fail(ExitCommandError, "E_CART", err.Error(), nil)
	}
	cart, err := buildCart(cmd, cfg, file)
	if err != nil {
		return out.Fail(ExitCommandError, "E_CART", err.Error(), nil)
	}

	rate, err := cfg.Rate()
	if err != nil {
		return out.Fail(ExitCommandError, "E_CONFIG", err.Error(), nil)
	}
	quote, err := ledger.NewQuote(cart, rules, ledger.QuoteOptions{DeliveryFee: cfg.DeliveryFee, TaxRate: rate})
	if err != nil {
		return out.Fail(ExitCommandError, "E_CART", err.Error(), nil)
	}
	quote.Diagnostics = append(decodeDiags, quote.Diagnostics...)

	fm, err := cfg.Formatter()
	if err != nil {
		return out.Fail(ExitCommandError, "E_CONFIG", err.Error(), nil)
	}
	result := QuoteResult{Quote: quote, Display: map[string]string{
		"subtotal":           fm.Format(quote.Totals.Subtotal),
		"automatic_discount": fm.Format(quote.Totals.AutomaticDiscount),
		"manual_discount":    fm.Format(quote.Totals.ManualDiscount),
		"tax":                fm.Format(quote.Totals.Tax),
		"delivery_fee":       fm.Format(quote.Totals.DeliveryFee),
		"total":              fm.Format(quote.Totals.Total),
	}}

	return out.Render(result, func(w io.Writer) {
		d := result.Display
		fmt.Fprintf(w, "Status:              %s\n", quote.Status)
		fmt.Fprintf(w, "Subtotal:            %s\n", d["subtotal"])
		applied := ""
		if len(quote.AppliedRuleIDs) > 0 {
			applied = " (" + strings.Join(quote.AppliedRuleIDs, ", ") + ")"
		}
		fmt.Fprintf(w, "Automatic discount:  %s%s\n", d["automatic_discount"], applied)
		fmt.Fprintf(w, "Manual discount:     %s\n", d["manual_discount"])
		fmt.Fprintf(w, "Tax:                 %s\n", d["tax"])
		fmt.Fprintf(w, "Delivery fee:        %s\n", d["delivery_fee"])
		fmt.Fprintf(w, "Total:               %s\n", d["total"])
		fmt.Fprintf(w, "Fingerprint:         %s\n", quote.Fingerprint)
		for _, diag := range quote.Diagnostics {
			fmt.Fprintf(w, "⚠ %s\n", diag)
		}
	})
}

// loadRules loads a catalog, or an empty one for an empty path.
func loadRules(path string) (pricing.Catalog, []pricing.Diagnostic, error) {
	if path == "" {
		return pricing.NewCatalog(), nil, nil
	}
	loaded, err := catalog.Load(path)
	if err != nil {
		return pricing.Catalog{}, nil, err
	}
	return loaded.Catalog, loaded.Diagnostics, nil
}

func readCartFile(path string) (*CartFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cart file: %w", err)
	}
	var file CartFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse cart file: %w", err)
	}
	if file.CustomerID != "" && file.Customer != nil {
		return nil, fmt.Errorf("cart file sets both customer_id and customer")
	}
	return &file, nil
}

func buildCart(cmd *cobra.Command, cfg config.Config, file *CartFile) (ledger.Cart, error) {
	at := time.Now()
	if file.At != "" {
		parsed, err := time.Parse(time.RFC3339, file.At)
		if err != nil {
			return ledger.Cart{}, fmt.Errorf("at: %w", err)
		}
		at = parsed
	}
	opts := []ledger.Option{ledger.AtTime(at)}

	if file.ManualDiscount != nil {
		d, err := ledger.ParseDiscount(file.ManualDiscount.Type, file.ManualDiscount.Value)
		if err != nil {
			return ledger.Cart{}, fmt.Errorf("manual_discount: %w", err)
		}
		opts = append(opts, ledger.WithManualDiscount(d))
	}

	switch {
	case file.Customer != nil:
		opts = append(opts, ledger.ForCustomer(pricing.Customer{
			ID:            file.Customer.ID,
			PointsBalance: file.Customer.PointsBalance,
			Tier:          file.Customer.Tier,
		}))
	case file.CustomerID != "":
		st, err := openBackend(cmd.Context(), cfg.Store)
		if err != nil {
			return ledger.Cart{}, err
		}
		defer st.Close()
		cust, err := customer.Resolve(cmd.Context(), st, file.CustomerID)
		if err != nil {
			return ledger.Cart{}, fmt.Errorf("customer %q: %w", file.CustomerID, err)
		}
		opts = append(opts, ledger.ForCustomer(*cust))
	}

	return ledger.NewCart(file.Items, opts...)
}
