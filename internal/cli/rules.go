package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/till/internal/catalog"
	"github.com/roach88/till/internal/pricing"
)

// RulesResult is the JSON payload of rules validate.
type RulesResult struct {
	Valid       bool                 `json:"valid"`
	Files       int                  `json:"files"`
	Rules       int                  `json:"rules"`
	Diagnostics []pricing.Diagnostic `json:"diagnostics"`
}

// NewRulesCommand creates the rules command group.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect discount rules",
	}
	cmd.AddCommand(newRulesValidateCommand(rootOpts))
	return cmd
}

func newRulesValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [rules-path]",
		Short: "Validate discount rules",
		Long: `Load a rules directory or file and report every rule the engine would skip.

The path defaults to the rules setting of the config file.

Exit codes:
  0 - All rules valid
  1 - One or more rules are malformed
  2 - Command error (path not found, CUE syntax error, etc.)`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runRulesValidate(rootOpts, path, cmd)
		},
	}
}

func runRulesValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	if path == "" {
		cfg, err := opts.loadConfig()
		if err != nil {
			return err
		}
		path = cfg.Rules
	}
	if path == "" {
		return out.Fail(ExitCommandError, catalog.ErrCodeNotFound, "no rules path given and none configured", nil)
	}

	loaded, err := catalog.Load(path)
	if err != nil {
		var loadErr *catalog.LoadError
		if errors.As(err, &loadErr) {
			return out.Fail(ExitCommandError, loadErr.Code, loadErr.Message, loadErr.Path)
		}
		return out.Fail(ExitCommandError, catalog.ErrCodeGeneric, err.Error(), nil)
	}
	out.VerboseLog("Found %d rule file(s) in %s", loaded.Files, path)

	diags := loaded.AllDiagnostics()
	result := RulesResult{
		Valid:       len(diags) == 0,
		Files:       loaded.Files,
		Rules:       loaded.Catalog.Len(),
		Diagnostics: diags,
	}
	if result.Diagnostics == nil {
		result.Diagnostics = []pricing.Diagnostic{}
	}

	if err := out.Render(result, func(w io.Writer) {
		if result.Valid {
			fmt.Fprintf(w, "✓ All %d rule(s) valid\n", result.Rules)
			return
		}
		fmt.Fprintf(w, "✗ %d rule problem(s)\n", len(diags))
		for _, d := range diags {
			id := d.RuleID
			if id == "" {
				id = "(no id)"
			}
			field := ""
			if d.Field != "" {
				field = " [" + d.Field + "]"
			}
			fmt.Fprintf(w, "  %s: %s%s %s\n", id, d.Code, field, d.Message)
		}
	}); err != nil {
		return err
	}
	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("%d invalid rule(s)", len(diags)))
	}
	return nil
}
