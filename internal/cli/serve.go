package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/till/internal/ledger"
	"github.com/roach88/till/internal/metrics"
	"github.com/roach88/till/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the quote and allocation API",
		Long: `Start the HTTP API used by the cart UI.

Routes:
  POST /v1/quote
  GET  /v1/units
  POST /v1/allocations
  POST /v1/allocations/finalize
  POST /v1/allocations/release
  GET  /metrics
  GET  /health`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides config)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.Addr != "" {
		cfg.Server.Addr = opts.Addr
	}
	logger, err := opts.logger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	rules, diags, err := loadRules(cfg.Rules)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load rules", err)
	}
	for _, d := range append(diags, rules.Validate()...) {
		logger.Warn("pricing rule skipped", zap.String("rule_id", d.RuleID), zap.String("code", string(d.Code)), zap.String("reason", d.Message))
	}
	logger.Info("rules loaded", zap.String("path", cfg.Rules), zap.Int("rules", rules.Len()))

	formatter, err := cfg.Formatter()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid currency", err)
	}
	rate, err := cfg.Rate()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid tax rate", err)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openBackend(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing store", zap.Error(closeErr))
		}
	}()
	logger.Info("store ready", zap.String("driver", cfg.Store.Driver))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv := server.New(server.Config{
		Catalog:   rules,
		Quote:     ledger.QuoteOptions{DeliveryFee: cfg.DeliveryFee, TaxRate: rate},
		Inventory: st,
		Customers: st,
		Formatter: formatter,
		Metrics:   metrics.New(reg),
		Gatherer:  reg,
		Logger:    logger,
	})
	if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
		return WrapExitError(ExitCommandError, "server failed", err)
	}
	return nil
}
