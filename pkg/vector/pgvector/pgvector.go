// Package pgvector provides a vector.Driver on PostgreSQL with the pgvector
// extension.
package pgvector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/papercomputeco/chatrelay/pkg/vector"
)

// Config holds configuration for the pgvector driver.
type Config struct {
	// Pool is an existing process-owned pool. When set the driver borrows it
	// and Close leaves it open.
	Pool *pgxpool.Pool

	// ConnString opens a dedicated pool when Pool is nil.
	ConnString string

	// Dimensions is the number of dimensions for the embedding vectors.
	Dimensions uint
}

// Driver implements vector.Driver with cosine distance over a documents
// table.
type Driver struct {
	pool       *pgxpool.Pool
	ownsPool   bool
	dimensions uint
	logger     *slog.Logger
}

// NewDriver connects and ensures the extension and documents table exist.
func NewDriver(ctx context.Context, c Config, logger *slog.Logger) (*Driver, error) {
	if c.Dimensions == 0 {
		return nil, errors.New("pgvector embedding dimensions cannot be 0, must be configured")
	}

	d := &Driver{
		pool:       c.Pool,
		dimensions: c.Dimensions,
		logger:     logger,
	}

	if d.pool == nil {
		if c.ConnString == "" {
			return nil, errors.New("pgvector requires a pool or a connection string")
		}

		pool, err := pgxpool.New(ctx, c.ConnString)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", vector.ErrConnection, err)
		}
		d.pool = pool
		d.ownsPool = true
	}

	err := d.withConn(ctx, func(conn *pgxpool.Conn) error {
		if _, err := conn.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
			return fmt.Errorf("enabling pgvector: %w", err)
		}

		_, err := conn.Exec(ctx, fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS documents (
				id         text PRIMARY KEY,
				text       text NOT NULL,
				n_tokens   integer NOT NULL DEFAULT 0,
				embeddings vector(%d) NOT NULL
			)`, c.Dimensions))
		if err != nil {
			return fmt.Errorf("creating documents table: %w", err)
		}
		return nil
	})
	if err != nil {
		d.Close()
		return nil, err
	}

	logger.Info("pgvector driver initialized", "dimensions", c.Dimensions)

	return d, nil
}

func (d *Driver) withConn(ctx context.Context, fn func(conn *pgxpool.Conn) error) error {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", vector.ErrConnection, err)
	}
	defer conn.Release()

	return fn(conn)
}

// Add upserts documents in one batch.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, doc := range docs {
		if uint(len(doc.Embedding)) != d.dimensions {
			return fmt.Errorf("document %s: %w: got %d, want %d",
				doc.ID, vector.ErrDimensions, len(doc.Embedding), d.dimensions)
		}

		batch.Queue(`
			INSERT INTO documents (id, text, n_tokens, embeddings)
			VALUES ($1, $2, $3, $4::vector)
			ON CONFLICT (id) DO UPDATE
			SET text = EXCLUDED.text, n_tokens = EXCLUDED.n_tokens, embeddings = EXCLUDED.embeddings`,
			doc.ID, doc.Text, doc.Tokens, Literal(doc.Embedding),
		)
	}

	err := d.withConn(ctx, func(conn *pgxpool.Conn) error {
		return conn.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}

	d.logger.Debug("added documents to pgvector", "count", len(docs))
	return nil
}

// Query finds the topK documents closest to the given embedding by cosine
// distance.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = vector.DefaultTopK
	}
	if uint(len(embedding)) != d.dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", vector.ErrDimensions, len(embedding), d.dimensions)
	}

	var results []vector.QueryResult
	err := d.withConn(ctx, func(conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT id, text, n_tokens, embeddings <=> $1::vector AS distance
			FROM documents
			ORDER BY distance
			LIMIT $2`,
			Literal(embedding), topK,
		)
		if err != nil {
			return err
		}

		results, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (vector.QueryResult, error) {
			var (
				r        vector.QueryResult
				distance float64
			)
			err := row.Scan(&r.ID, &r.Text, &r.Tokens, &distance)
			r.Distance = float32(distance)
			return r, err
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}

	d.logger.Debug("queried pgvector", "results", len(results))
	return results, nil
}

// Close closes the pool if the driver opened it.
func (d *Driver) Close() error {
	if d.ownsPool {
		d.pool.Close()
	}
	return nil
}

// Literal formats v as a pgvector text literal, e.g. "[0.1,0.2]". It is
// always sent as a bound parameter.
func Literal(v []float32) string {
	var b strings.Builder
	b.Grow(len(v)*10 + 2)
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
