package config

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., the
// embedding flags on both "chatrelay serve" and "chatrelay ingest").
type Flag struct {
	// Name is the long flag name (e.g. "listen").
	Name string

	// Shorthand is the one-letter short flag (e.g. "l"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "server.listen").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag, AddIntFlag
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagListen           = "listen"
	FlagUpstream         = "upstream"
	FlagModel            = "model"
	FlagStorageProvider  = "storage"
	FlagPostgresDSN      = "postgres"
	FlagSQLite           = "sqlite"
	FlagVectorStoreProv  = "vector-store-provider"
	FlagVectorStoreTgt   = "vector-store-target"
	FlagVectorCollection = "vector-store-collection"
	FlagEmbeddingProv    = "embedding-provider"
	FlagEmbeddingTgt     = "embedding-target"
	FlagEmbeddingModel   = "embedding-model"
	FlagEmbeddingDims    = "embedding-dimensions"
	FlagMaxContext       = "max-context-tokens"
	FlagMaxHistory       = "max-history-tokens"
	FlagTeeBuffer        = "tee-buffer"
	FlagEventProvider    = "eventstream-provider"
	FlagEventBrokers     = "eventstream-brokers"
	FlagEventTopic       = "eventstream-topic"
)

// Flags is the registry of every flag shared by chatrelay commands.
var Flags = FlagSet{
	FlagListen:           {Name: "listen", Shorthand: "l", ViperKey: "server.listen", Description: "Address for the HTTP server to listen on"},
	FlagUpstream:         {Name: "upstream", Shorthand: "u", ViperKey: "upstream.url", Description: "Chat completions endpoint URL"},
	FlagModel:            {Name: "model", Shorthand: "m", ViperKey: "upstream.model", Description: "Chat model to request upstream"},
	FlagStorageProvider:  {Name: "storage", ViperKey: "storage.provider", Description: "Message store (postgres, sqlite, inmemory)"},
	FlagPostgresDSN:      {Name: "postgres", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string"},
	FlagSQLite:           {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to SQLite database (default: .chatrelay/chatrelay.db)"},
	FlagVectorStoreProv:  {Name: "vector-store-provider", ViperKey: "vector_store.provider", Description: "Vector store provider (sqlite-vec, pgvector, qdrant)"},
	FlagVectorStoreTgt:   {Name: "vector-store-target", ViperKey: "vector_store.target", Description: "Vector store target (file path, DSN or host:port)"},
	FlagVectorCollection: {Name: "vector-store-collection", ViperKey: "vector_store.collection", Description: "Vector store collection name (qdrant)"},
	FlagEmbeddingProv:    {Name: "embedding-provider", ViperKey: "embedding.provider", Description: "Embedding provider (openai, ollama)"},
	FlagEmbeddingTgt:     {Name: "embedding-target", ViperKey: "embedding.target", Description: "Embedding provider base URL"},
	FlagEmbeddingModel:   {Name: "embedding-model", ViperKey: "embedding.model", Description: "Embedding model name"},
	FlagEmbeddingDims:    {Name: "embedding-dimensions", ViperKey: "embedding.dimensions", Description: "Embedding vector dimensions"},
	FlagMaxContext:       {Name: "max-context-tokens", ViperKey: "context.max_context_tokens", Description: "Token budget for retrieved context"},
	FlagMaxHistory:       {Name: "max-history-tokens", ViperKey: "context.max_history_tokens", Description: "Token budget for conversation history"},
	FlagTeeBuffer:        {Name: "tee-buffer", ViperKey: "stream.tee_buffer", Description: "Chunks one stream branch may run ahead of the other"},
	FlagEventProvider:    {Name: "eventstream-provider", ViperKey: "eventstream.provider", Description: "Event publisher (kafka, or empty to disable)"},
	FlagEventBrokers:     {Name: "eventstream-brokers", ViperKey: "eventstream.brokers", Description: "Comma separated Kafka brokers"},
	FlagEventTopic:       {Name: "eventstream-topic", ViperKey: "eventstream.topic", Description: "Kafka topic for message events"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddIntFlag registers an int flag on cmd from the given FlagSet.
func AddIntFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *int) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultInt(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().IntVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().IntVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

func defaults() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
}

// defaultString returns the default string value for a viper key from
// NewDefaultConfig. List values are joined with commas.
func defaultString(viperKey string) string {
	v := defaults()
	if list, ok := v.Get(viperKey).([]string); ok {
		return strings.Join(list, ",")
	}
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	return defaults().GetUint(viperKey)
}

// defaultInt returns the default int value for a viper key from NewDefaultConfig.
func defaultInt(viperKey string) int {
	return defaults().GetInt(viperKey)
}
