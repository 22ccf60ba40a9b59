// Package ingestcmder provides the ingest command that loads reference
// documents into the vector store used for retrieval.
package ingestcmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/chatrelay/pkg/cliui"
	"github.com/papercomputeco/chatrelay/pkg/config"
	"github.com/papercomputeco/chatrelay/pkg/embeddings"
	embeddingutils "github.com/papercomputeco/chatrelay/pkg/embeddings/utils"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/tokens"
	"github.com/papercomputeco/chatrelay/pkg/vector"
	vectorutils "github.com/papercomputeco/chatrelay/pkg/vector/utils"
)

type ingestFlags struct {
	postgresDSN    string
	vectorProvider string
	vectorTarget   string
	vectorColl     string
	embedProvider  string
	embedTarget    string
	embedModel     string
	embedDims      uint
}

type IngestCommander struct {
	flags     ingestFlags
	configDir string
	debug     bool

	viper  *viper.Viper
	logger *slog.Logger
}

var ingestFlagKeys = []string{
	config.FlagPostgresDSN,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagVectorCollection,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
}

const ingestLongDesc string = `Ingest reference documents for retrieval.

Each file is split into paragraphs on blank lines. Every paragraph is
token counted, embedded and added to the configured vector store with the
id <path>#<n>, so ingesting a file again updates its paragraphs in place.

Examples:
  chatrelay ingest docs/*.md
  chatrelay ingest --vector-store-provider qdrant --vector-store-target localhost:6334 handbook.txt`

const ingestShortDesc string = "Ingest reference documents for retrieval"

func NewIngestCmd() *cobra.Command {
	cmder := &IngestCommander{}

	cmd := &cobra.Command{
		Use:   "ingest <files...>",
		Short: ingestShortDesc,
		Long:  ingestLongDesc,
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.viper, err = config.InitViper(cmder.configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(cmder.viper, cmd, config.Flags, ingestFlagKeys)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			return cmder.run(cmd, config.FromViper(cmder.viper), args)
		},
	}

	f := &cmder.flags
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgresDSN, &f.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreProv, &f.vectorProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreTgt, &f.vectorTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorCollection, &f.vectorColl)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &f.embedProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &f.embedTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &f.embedModel)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &f.embedDims)

	return cmd
}

func (c *IngestCommander) run(cmd *cobra.Command, cfg *config.Config, paths []string) error {
	c.logger = logger.New(logger.WithDebug(c.debug), logger.WithPretty(true), logger.WithWriter(cmd.ErrOrStderr()))
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if cfg.VectorStore.Provider == "" {
		return errors.New("no vector store configured: set vector_store.provider")
	}

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
		APIKey:       cfg.Upstream.APIKey,
		Dimensions:   cfg.Embedding.Dimensions,
	})
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	if embedder == nil {
		return errors.New("no embedding provider configured: set embedding.provider")
	}
	defer embedder.Close()

	target, err := cfg.VectorTarget(c.configDir)
	if err != nil {
		return err
	}

	vectors, err := vectorutils.NewVectorDriver(ctx, &vectorutils.NewVectorDriverOpts{
		ProviderType: cfg.VectorStore.Provider,
		Target:       target,
		Collection:   cfg.VectorStore.Collection,
		Dimensions:   cfg.Embedding.Dimensions,
		Logger:       c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating vector store: %w", err)
	}
	defer vectors.Close()

	counter, err := tokens.NewCounter("")
	if err != nil {
		return err
	}

	ing := &Ingester{
		Embedder: embedder,
		Driver:   vectors,
		Counter:  counter,
	}

	out := cmd.OutOrStdout()
	total := 0
	for _, path := range paths {
		var n int
		err := cliui.Step(out, fmt.Sprintf("Ingesting %s", filepath.Base(path)), func() error {
			var ingestErr error
			n, ingestErr = ing.IngestFile(ctx, path)
			return ingestErr
		})
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", path, err)
		}
		total += n
	}

	fmt.Fprintf(out, "\n  %s Ingested %d paragraphs from %d files\n\n", cliui.SuccessMark, total, len(paths))
	return nil
}

// Ingester embeds paragraphs and stores them as vector documents.
type Ingester struct {
	Embedder embeddings.Embedder
	Driver   vector.Driver
	Counter  tokens.Counter
}

// IngestFile adds every paragraph of the file at path and returns how many
// were added.
func (i *Ingester) IngestFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return i.Ingest(ctx, path, string(data))
}

// Ingest adds the paragraphs of text with ids derived from source.
func (i *Ingester) Ingest(ctx context.Context, source, text string) (int, error) {
	paragraphs := Paragraphs(text)
	if len(paragraphs) == 0 {
		return 0, nil
	}

	docs := make([]vector.Document, 0, len(paragraphs))
	for n, p := range paragraphs {
		embedding, err := i.Embedder.Embed(ctx, p)
		if err != nil {
			return 0, fmt.Errorf("embedding paragraph %d: %w", n, err)
		}

		docs = append(docs, vector.Document{
			ID:        fmt.Sprintf("%s#%d", source, n),
			Text:      p,
			Tokens:    i.Counter.Count(p),
			Embedding: embedding,
		})
	}

	if err := i.Driver.Add(ctx, docs); err != nil {
		return 0, err
	}
	return len(docs), nil
}
