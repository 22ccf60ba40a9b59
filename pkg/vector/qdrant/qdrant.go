// Package qdrant provides a vector.Driver backed by a Qdrant collection over
// gRPC.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/papercomputeco/chatrelay/pkg/vector"
)

const (
	// DefaultPort is Qdrant's gRPC port.
	DefaultPort = 6334

	// DefaultCollection stores documents when no collection is configured.
	DefaultCollection = "chatrelay_documents"

	payloadDocID  = "doc_id"
	payloadText   = "text"
	payloadTokens = "n_tokens"
)

// idNamespace derives stable point UUIDs from document IDs.
var idNamespace = uuid.MustParse("6f1c2d1e-5b8a-4c39-9d0e-3a7f4b2c8e61")

// Config holds configuration for the Qdrant driver.
type Config struct {
	// Addr is host[:port] of the gRPC endpoint.
	Addr string

	APIKey string
	UseTLS bool

	Collection string

	// Dimensions sizes the collection when it has to be created.
	Dimensions uint
}

// Driver implements vector.Driver on a Qdrant collection with cosine
// distance.
type Driver struct {
	client     *qdrant.Client
	collection string
	logger     *slog.Logger
}

// NewDriver connects and creates the collection if it does not exist.
func NewDriver(ctx context.Context, c Config, logger *slog.Logger) (*Driver, error) {
	if c.Dimensions == 0 {
		return nil, errors.New("qdrant embedding dimensions cannot be 0, must be configured")
	}

	host, port, err := SplitAddr(c.Addr)
	if err != nil {
		return nil, err
	}

	collection := c.Collection
	if collection == "" {
		collection = DefaultCollection
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: c.APIKey,
		UseTLS: c.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vector.ErrConnection, err)
	}

	exists, err := client.CollectionExists(ctx, collection)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: checking collection %s: %w", vector.ErrConnection, collection, err)
	}

	if !exists {
		err = client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(c.Dimensions),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("creating collection %s: %w", collection, err)
		}
		logger.Info("created qdrant collection", "collection", collection, "dimensions", c.Dimensions)
	}

	return &Driver{
		client:     client,
		collection: collection,
		logger:     logger,
	}, nil
}

// SplitAddr parses host[:port], defaulting the port to DefaultPort.
func SplitAddr(addr string) (string, int, error) {
	if addr == "" {
		return "", 0, errors.New("qdrant address is required")
	}

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		// No port given.
		return addr, DefaultPort, nil
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid qdrant port %q: %w", portStr, err)
	}
	return host, port, nil
}

// PointID maps a document ID onto the UUID used as its Qdrant point ID.
func PointID(docID string) string {
	return uuid.NewSHA1(idNamespace, []byte(docID)).String()
}

// Add upserts documents as points carrying their text in the payload.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for _, doc := range docs {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(PointID(doc.ID)),
			Vectors: qdrant.NewVectors(doc.Embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				payloadDocID:  doc.ID,
				payloadText:   doc.Text,
				payloadTokens: doc.Tokens,
			}),
		})
	}

	_, err := d.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: d.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	d.logger.Debug("added documents to qdrant", "count", len(docs))
	return nil
}

// Query finds the topK nearest points. Qdrant reports cosine similarity,
// which is converted to a distance.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = vector.DefaultTopK
	}

	points, err := d.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: d.collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying points: %w", err)
	}

	results := make([]vector.QueryResult, 0, len(points))
	for _, p := range points {
		results = append(results, ScoredToResult(p))
	}

	d.logger.Debug("queried qdrant", "results", len(results))
	return results, nil
}

// ScoredToResult converts a Qdrant hit into a QueryResult.
func ScoredToResult(p *qdrant.ScoredPoint) vector.QueryResult {
	payload := p.GetPayload()
	return vector.QueryResult{
		Document: vector.Document{
			ID:     payload[payloadDocID].GetStringValue(),
			Text:   payload[payloadText].GetStringValue(),
			Tokens: int(payload[payloadTokens].GetIntegerValue()),
		},
		Distance: 1 - p.GetScore(),
	}
}

// Close closes the gRPC connection.
func (d *Driver) Close() error {
	return d.client.Close()
}
