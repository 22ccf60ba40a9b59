// Package servecmder provides the serve command that runs the chat relay
// HTTP server.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/chatrelay/api"
	"github.com/papercomputeco/chatrelay/pkg/completion"
	"github.com/papercomputeco/chatrelay/pkg/config"
	"github.com/papercomputeco/chatrelay/pkg/embeddings"
	embeddingutils "github.com/papercomputeco/chatrelay/pkg/embeddings/utils"
	eventstreamutils "github.com/papercomputeco/chatrelay/pkg/eventstream/utils"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/retrieval"
	"github.com/papercomputeco/chatrelay/pkg/storage"
	storageutils "github.com/papercomputeco/chatrelay/pkg/storage/utils"
	"github.com/papercomputeco/chatrelay/pkg/tokens"
	vectorutils "github.com/papercomputeco/chatrelay/pkg/vector/utils"
	"github.com/papercomputeco/chatrelay/relay"
	"github.com/papercomputeco/chatrelay/relay/worker"
)

type serveFlags struct {
	listen          string
	upstream        string
	model           string
	storageProvider string
	postgresDSN     string
	sqlitePath      string
	vectorProvider  string
	vectorTarget    string
	vectorColl      string
	embedProvider   string
	embedTarget     string
	embedModel      string
	embedDims       uint
	maxContext      int
	maxHistory      int
	teeBuffer       int
	eventProvider   string
	eventBrokers    string
	eventTopic      string
}

type ServeCommander struct {
	flags     serveFlags
	configDir string
	debug     bool
	json      bool
	logFile   string

	viper  *viper.Viper
	logger *slog.Logger

	// closers run in reverse order on shutdown.
	closers []io.Closer
}

var serveFlagKeys = []string{
	config.FlagListen,
	config.FlagUpstream,
	config.FlagModel,
	config.FlagStorageProvider,
	config.FlagPostgresDSN,
	config.FlagSQLite,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagVectorCollection,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagMaxContext,
	config.FlagMaxHistory,
	config.FlagTeeBuffer,
	config.FlagEventProvider,
	config.FlagEventBrokers,
	config.FlagEventTopic,
}

const serveLongDesc string = `Run the chatrelay HTTP server.

The server relays chat completions from the upstream API to the browser as a
plain text stream, persists conversation history and, when a vector store is
configured, augments questions with retrieved context.

Configuration is read from flags, CHATRELAY_* environment variables and
.chatrelay/config.toml, in that order of precedence.

Examples:
  chatrelay serve
  chatrelay serve --storage postgres --postgres postgres://localhost/chatrelay
  chatrelay serve --vector-store-provider qdrant --vector-store-target localhost:6334`

const serveShortDesc string = "Run the chatrelay HTTP server"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.viper, err = config.InitViper(cmder.configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(cmder.viper, cmd, config.Flags, serveFlagKeys)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run(config.FromViper(cmder.viper))
		},
	}

	f := &cmder.flags
	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &f.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagUpstream, &f.upstream)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &f.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageProvider, &f.storageProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgresDSN, &f.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &f.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreProv, &f.vectorProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreTgt, &f.vectorTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorCollection, &f.vectorColl)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &f.embedProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &f.embedTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &f.embedModel)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &f.embedDims)
	config.AddIntFlag(cmd, config.Flags, config.FlagMaxContext, &f.maxContext)
	config.AddIntFlag(cmd, config.Flags, config.FlagMaxHistory, &f.maxHistory)
	config.AddIntFlag(cmd, config.Flags, config.FlagTeeBuffer, &f.teeBuffer)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventProvider, &f.eventProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventBrokers, &f.eventBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventTopic, &f.eventTopic)
	cmd.Flags().BoolVar(&cmder.json, "json-logs", false, "Emit JSON logs instead of pretty output")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")

	return cmd
}

func (c *ServeCommander) run(cfg *config.Config) error {
	c.logger = logger.New(logger.WithDebug(c.debug), logger.WithPretty(!c.json), logger.WithJSON(c.json))
	ctx := context.Background()
	defer c.closeAll()

	if c.logFile != "" {
		f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		c.closers = append(c.closers, f)
		c.logger = logger.Multi(c.logger, logger.New(logger.WithDebug(c.debug), logger.WithJSON(true), logger.WithWriter(f)))
	}

	driver, pool, err := c.newStorageDriver(ctx, cfg)
	if err != nil {
		return err
	}

	counter, err := tokens.NewCounter("")
	if err != nil {
		return err
	}

	publisher, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		ProviderType: cfg.EventStream.Provider,
		Brokers:      cfg.EventStream.Brokers,
		Topic:        cfg.EventStream.Topic,
	})
	if err != nil {
		return fmt.Errorf("creating event publisher: %w", err)
	}
	c.closers = append(c.closers, publisher)

	wp, err := worker.NewPool(&worker.Config{
		Driver:    driver,
		Publisher: publisher,
		Counter:   counter,
		Logger:    c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating worker pool: %w", err)
	}

	recorder := relay.NewRecorder(relay.RecorderConfig{
		Enqueuer:  wp,
		TeeBuffer: cfg.Stream.TeeBuffer,
		Logger:    c.logger,
	})

	// Drains finish before the pool stops accepting jobs.
	defer func() {
		recorder.Wait()
		wp.Close()
	}()

	client, err := completion.NewClient(completion.Config{
		URL:    cfg.Upstream.URL,
		APIKey: cfg.Upstream.APIKey,
		Model:  cfg.Upstream.Model,
		Logger: c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating completion client (set upstream.api_key or OPENAI_API_KEY): %w", err)
	}

	embedder, retriever, err := c.newRetrieval(ctx, cfg, pool)
	if err != nil {
		return err
	}

	apiConfig := api.Config{
		ListenAddr:       cfg.Server.Listen,
		MaxHistoryTokens: cfg.Context.MaxHistoryTokens,
		Completer:        client,
		Persister:        wp,
		Recorder:         recorder,
		Retriever:        retriever,
		Embedder:         embedder,
	}
	server, err := api.NewServer(apiConfig, driver, c.logger)
	if err != nil {
		return fmt.Errorf("creating api server: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
	}

	if err := server.Shutdown(); err != nil {
		c.logger.Warn("api server shutdown", "error", err)
	}
	return nil
}

func (c *ServeCommander) newStorageDriver(ctx context.Context, cfg *config.Config) (storage.Driver, *pgxpool.Pool, error) {
	sqlitePath, err := cfg.SQLitePath(c.configDir)
	if err != nil {
		return nil, nil, err
	}

	driver, pool, err := storageutils.NewStorageDriver(ctx, &storageutils.NewStorageDriverOpts{
		ProviderType: cfg.Storage.Provider,
		PostgresDSN:  cfg.Storage.PostgresDSN,
		SQLitePath:   sqlitePath,
		MaxConns:     cfg.Storage.MaxConns,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating storage driver: %w", err)
	}
	c.closers = append(c.closers, driver)

	c.logger.Info("using storage", "provider", cfg.Storage.Provider, "sqlite_path", sqlitePath)
	return driver, pool, nil
}

// newRetrieval builds the embedder and, when a vector store is configured,
// the retriever. Either may be nil.
func (c *ServeCommander) newRetrieval(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (embeddings.Embedder, *retrieval.Retriever, error) {
	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
		APIKey:       cfg.Upstream.APIKey,
		Dimensions:   cfg.Embedding.Dimensions,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating embedder: %w", err)
	}
	if embedder != nil {
		c.closers = append(c.closers, embedder)
	}

	target, err := cfg.VectorTarget(c.configDir)
	if err != nil {
		return nil, nil, err
	}

	vectors, err := vectorutils.NewVectorDriver(ctx, &vectorutils.NewVectorDriverOpts{
		ProviderType: cfg.VectorStore.Provider,
		Target:       target,
		Collection:   cfg.VectorStore.Collection,
		Dimensions:   cfg.Embedding.Dimensions,
		Pool:         pool,
		Logger:       c.logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating vector store: %w", err)
	}
	if vectors == nil {
		c.logger.Info("retrieval disabled, no vector store configured")
		return embedder, nil, nil
	}
	c.closers = append(c.closers, vectors)

	if embedder == nil {
		return nil, nil, errors.New("a vector store requires an embedding provider")
	}

	retriever, err := retrieval.New(retrieval.Config{
		Embedder:  embedder,
		Driver:    vectors,
		MaxTokens: cfg.Context.MaxContextTokens,
		Logger:    c.logger,
	})
	if err != nil {
		return nil, nil, err
	}

	c.logger.Info("retrieval enabled",
		"vector_store", cfg.VectorStore.Provider,
		"embedding_model", embedder.Model(),
		"max_context_tokens", retriever.MaxTokens(),
	)
	return embedder, retriever, nil
}

func (c *ServeCommander) closeAll() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			c.logger.Warn("closing resource", "error", err)
		}
	}
}
