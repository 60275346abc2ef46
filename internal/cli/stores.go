package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/till/internal/config"
	"github.com/roach88/till/internal/customer"
	"github.com/roach88/till/internal/inventory"
	"github.com/roach88/till/internal/pricing"
	"github.com/roach88/till/internal/redisstore"
	"github.com/roach88/till/internal/store"
)

// backend is what every store driver provides.
type backend interface {
	inventory.Repository
	customer.Directory
	PutCustomer(ctx context.Context, c pricing.Customer) error
	Close() error
}

var (
	_ backend = (*store.Store)(nil)
	_ backend = (*redisstore.Store)(nil)
)

// openBackend connects to the configured store.
func openBackend(ctx context.Context, cfg config.StoreConfig) (backend, error) {
	driver := strings.ToLower(cfg.Driver)
	if driver == config.DriverRedis {
		st, err := redisstore.Open(ctx, cfg.DSN, cfg.Prefix)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open store", err)
		}
		return st, nil
	}

	dialect, err := store.ParseDialect(driver)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}
	st, err := store.OpenDialect(dialect, cfg.DSN)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to open %s store", dialect), err)
	}
	return st, nil
}
