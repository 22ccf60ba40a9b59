package vectorutils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/papercomputeco/chatrelay/pkg/vector"
	"github.com/papercomputeco/chatrelay/pkg/vector/pgvector"
	"github.com/papercomputeco/chatrelay/pkg/vector/qdrant"
	"github.com/papercomputeco/chatrelay/pkg/vector/sqlitevec"
)

type NewVectorDriverOpts struct {
	ProviderType string

	// Target is a database path (sqlite-vec), a connection string
	// (pgvector) or a host:port (qdrant).
	Target string

	Collection string
	Dimensions uint

	// Pool lets pgvector share the storage pool.
	Pool *pgxpool.Pool

	APIKey string
	Logger *slog.Logger
}

// NewVectorDriver builds the configured vector.Driver. An empty provider
// means retrieval is disabled and returns nil, nil.
func NewVectorDriver(ctx context.Context, o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case "":
		return nil, nil
	case "sqlite-vec", "sqlitevec":
		return sqlitevec.NewDriver(sqlitevec.Config{
			DBPath:     o.Target,
			Dimensions: o.Dimensions,
		}, o.Logger)
	case "pgvector":
		return pgvector.NewDriver(ctx, pgvector.Config{
			Pool:       o.Pool,
			ConnString: o.Target,
			Dimensions: o.Dimensions,
		}, o.Logger)
	case "qdrant":
		return qdrant.NewDriver(ctx, qdrant.Config{
			Addr:       o.Target,
			APIKey:     o.APIKey,
			Collection: o.Collection,
			Dimensions: o.Dimensions,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
