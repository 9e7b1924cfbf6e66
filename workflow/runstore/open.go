package runstore

import (
	"context"

	"github.com/YuminosukeSato/adpipe/pkg/errors"
)

// Open returns the Store selected by driver ("memory" or "postgres").
func Open(ctx context.Context, driver, url string, maxOpenConns int) (Store, error) {
	switch driver {
	case "", "memory":
		return NewMemory(), nil
	case "postgres":
		return OpenPostgres(ctx, PostgresConfig{URL: url, MaxOpenConns: maxOpenConns})
	default:
		return nil, errors.NewValidationError("run_store.driver", "must be memory or postgres", driver)
	}
}
