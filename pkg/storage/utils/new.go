// Package storageutils builds the configured storage.Driver.
package storageutils

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/pkg/storage/inmemory"
	"github.com/papercomputeco/chatrelay/pkg/storage/postgres"
	"github.com/papercomputeco/chatrelay/pkg/storage/sqlite"
)

type NewStorageDriverOpts struct {
	ProviderType string
	PostgresDSN  string
	SQLitePath   string
	MaxConns     int32
}

// NewStorageDriver builds the configured storage.Driver. The returned pool is
// non-nil for the postgres provider so other components can share it.
func NewStorageDriver(ctx context.Context, o *NewStorageDriverOpts) (storage.Driver, *pgxpool.Pool, error) {
	switch o.ProviderType {
	case "postgres":
		if o.PostgresDSN == "" {
			return nil, nil, fmt.Errorf("postgres storage requires a connection string")
		}
		d, err := postgres.NewDriver(ctx, postgres.Config{
			ConnString: o.PostgresDSN,
			MaxConns:   o.MaxConns,
		})
		if err != nil {
			return nil, nil, err
		}
		return d, d.Pool, nil

	case "sqlite":
		if o.SQLitePath == "" {
			return nil, nil, fmt.Errorf("sqlite storage requires a database path")
		}
		d, err := sqlite.NewDriver(o.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return d, nil, nil

	case "inmemory", "memory":
		return inmemory.NewDriver(), nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported storage provider: %q", o.ProviderType)
	}
}
