package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/till/internal/inventory"
)

// AllocateOptions holds flags for the allocate command.
type AllocateOptions struct {
	*RootOptions
	Variant  string
	Quantity int
	Picks    []string
	Stage    string
}

// TransitionOptions holds flags for finalize and release.
type TransitionOptions struct {
	*RootOptions
	Variant string
	Units   []string
}

// NewAllocateCommand creates the allocate command.
func NewAllocateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AllocateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "allocate <product-id>",
		Short: "Bind serialized units to a sale",
		Long: `Select and commit serialized units of a product variant.

Without --pick the first available units are taken. The commit is
conditional: if any unit changed status since it was listed, nothing is
committed and the command exits 1 so the operator can select again.

Examples:
  till allocate phone --variant black-128 --quantity 2
  till allocate phone --variant black-128 --quantity 1 --pick SN-0042
  till allocate phone --quantity 1 --stage sell`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAllocate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Variant, "variant", "", "variant id")
	cmd.Flags().IntVarP(&opts.Quantity, "quantity", "n", 1, "number of units")
	cmd.Flags().StringSliceVar(&opts.Picks, "pick", nil, "scanned unit identifier (repeatable)")
	cmd.Flags().StringVar(&opts.Stage, "stage", string(inventory.StageReserve), "reserve or sell")

	return cmd
}

// NewFinalizeCommand creates the finalize command.
func NewFinalizeCommand(rootOpts *RootOptions) *cobra.Command {
	return newTransitionCommand(rootOpts, "finalize", "Mark reserved units as sold",
		func(a *inventory.Allocator) transitionFunc { return a.Finalize })
}

// NewReleaseCommand creates the release command.
func NewReleaseCommand(rootOpts *RootOptions) *cobra.Command {
	return newTransitionCommand(rootOpts, "release", "Return reserved units to available",
		func(a *inventory.Allocator) transitionFunc { return a.Release })
}

type transitionFunc func(ctx context.Context, line inventory.LineItem, unitIDs []string) (inventory.Allocation, error)

func newTransitionCommand(rootOpts *RootOptions, name, short string, pick func(*inventory.Allocator) transitionFunc) *cobra.Command {
	opts := &TransitionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           name + " <product-id>",
		Short:         short,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAllocator(opts.RootOptions, cmd, func(a *inventory.Allocator) (inventory.Allocation, error) {
				line := inventory.LineItem{ProductID: args[0], VariantID: opts.Variant}
				return pick(a)(cmd.Context(), line, opts.Units)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Variant, "variant", "", "variant id")
	cmd.Flags().StringSliceVar(&opts.Units, "unit", nil, "unit identifier (repeatable)")
	_ = cmd.MarkFlagRequired("unit")

	return cmd
}

func runAllocate(opts *AllocateOptions, productID string, cmd *cobra.Command) error {
	stage, err := inventory.ParseStage(opts.Stage)
	if err != nil || (stage != inventory.StageReserve && stage != inventory.StageSell) {
		return NewExitError(ExitCommandError, fmt.Sprintf("--stage must be %s or %s", inventory.StageReserve, inventory.StageSell))
	}

	return withAllocator(opts.RootOptions, cmd, func(a *inventory.Allocator) (inventory.Allocation, error) {
		line := inventory.LineItem{ProductID: productID, VariantID: opts.Variant}
		candidates, err := a.Candidates(cmd.Context(), line)
		if err != nil {
			return inventory.Allocation{}, err
		}
		opts.formatter(cmd).VerboseLog("%d candidate(s) for %s", len(candidates), line)
		return a.Allocate(cmd.Context(), line, opts.Quantity, candidates, opts.Picks, stage)
	})
}

// withAllocator opens the store, runs fn with an allocator over it and
// renders the allocation or the typed failure.
func withAllocator(opts *RootOptions, cmd *cobra.Command, fn func(*inventory.Allocator) (inventory.Allocation, error)) error {
	out := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger, err := opts.logger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	st, err := openBackend(cmd.Context(), cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	alloc, err := fn(inventory.NewAllocator(st, inventory.WithLogger(logger)))
	if err != nil {
		if code := inventory.CodeOf(err); code != "" {
			return out.Fail(ExitFailure, string(code), err.Error(), nil)
		}
		return WrapExitError(ExitCommandError, "allocation failed", err)
	}

	return out.Render(alloc, func(w io.Writer) {
		fmt.Fprintf(w, "✓ %s %s: %s\n", alloc.Stage, alloc.Line, strings.Join(alloc.UnitIDs(), ", "))
		fmt.Fprintf(w, "  allocation %s\n", alloc.ID)
	})
}
