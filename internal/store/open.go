package store

import (
	"context"
	"fmt"
)

// OpenOptions selects a store implementation.
type OpenOptions struct {
	Driver     string
	URL        string // postgres connection string
	SQLitePath string
	Pool       PoolOptions
}

// Open returns the store named by opts.Driver.
func Open(ctx context.Context, opts OpenOptions) (Store, error) {
	switch opts.Driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverPostgres:
		return NewPostgres(ctx, opts.URL, opts.Pool)
	case DriverSQLite:
		return NewSQLite(ctx, opts.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}
