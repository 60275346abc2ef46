package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/till/internal/inventory"
)

// UnitsFile is the import format: a list of units.
type UnitsFile struct {
	Units []inventory.Unit `yaml:"units"`
}

// UnitsListOptions holds flags for units list.
type UnitsListOptions struct {
	*RootOptions
	ProductID string
	VariantID string
	Status    string
}

// NewUnitsCommand creates the units command group.
func NewUnitsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "units",
		Short: "Manage serialized units",
	}
	cmd.AddCommand(newUnitsImportCommand(rootOpts))
	cmd.AddCommand(newUnitsListCommand(rootOpts))
	return cmd
}

func newUnitsImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <units-file>",
		Short: "Insert or replace units in the store",
		Long: `Import serialized units from a YAML file:

  units:
    - id: SN-0001
      kind: serial
      product_id: phone
      variant_id: black-128
      status: available`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnitsImport(rootOpts, args[0], cmd)
		},
	}
}

func newUnitsListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UnitsListOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List units in the store",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnitsList(opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.ProductID, "product", "", "filter by product id")
	cmd.Flags().StringVar(&opts.VariantID, "variant", "", "filter by variant id")
	cmd.Flags().StringVar(&opts.Status, "status", "", "filter by status")
	return cmd
}

func readUnitsFile(path string) ([]inventory.Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read units file: %w", err)
	}
	var file UnitsFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse units file: %w", err)
	}

	for i := range file.Units {
		u := &file.Units[i]
		if strings.TrimSpace(u.ID) == "" || u.ProductID == "" {
			return nil, fmt.Errorf("units[%d]: id and product_id are required", i)
		}
		kind, err := inventory.ParseIdentifierKind(string(u.Kind))
		if err != nil {
			return nil, fmt.Errorf("units[%d]: %w", i, err)
		}
		u.Kind = kind
		if u.Status == "" {
			u.Status = inventory.StatusAvailable
		}
		status, err := inventory.ParseUnitStatus(string(u.Status))
		if err != nil {
			return nil, fmt.Errorf("units[%d]: %w", i, err)
		}
		u.Status = status
	}
	return file.Units, nil
}

func runUnitsImport(opts *RootOptions, path string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	units, err := readUnitsFile(path)
	if err != nil {
		return out.Fail(ExitCommandError, "E_UNITS", err.Error(), nil)
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	st, err := openBackend(cmd.Context(), cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.PutUnits(cmd.Context(), units); err != nil {
		return WrapExitError(ExitCommandError, "failed to import units", err)
	}

	return out.Render(map[string]int{"imported": len(units)}, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Imported %d unit(s)\n", len(units))
	})
}

func runUnitsList(opts *UnitsListOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	filter := inventory.ListFilter{ProductID: opts.ProductID, VariantID: opts.VariantID}
	if opts.Status != "" {
		status, err := inventory.ParseUnitStatus(opts.Status)
		if err != nil {
			return out.Fail(ExitCommandError, "E_UNITS", err.Error(), nil)
		}
		filter.Status = status
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	st, err := openBackend(cmd.Context(), cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	units, err := st.ListUnits(cmd.Context(), filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list units", err)
	}
	if units == nil {
		units = []inventory.Unit{}
	}

	return out.Render(units, func(w io.Writer) {
		if len(units) == 0 {
			fmt.Fprintln(w, "No units found.")
			return
		}
		for _, u := range units {
			line := inventory.LineItem{ProductID: u.ProductID, VariantID: u.VariantID}
			fmt.Fprintf(w, "%-20s %-8s %-24s %s\n", u.ID, u.Kind, line, u.Status)
		}
	})
}
