package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/chatrelay/pkg/dotdir"
)

// EnvPrefix prefixes every environment variable read by InitViper.
const EnvPrefix = "CHATRELAY"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the CHATRELAY_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (CHATRELAY_SERVER_LISTEN, CHATRELAY_STORAGE_PROVIDER, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: CHATRELAY_SERVER_LISTEN, CHATRELAY_STORAGE_SQLITE_PATH, etc.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The upstream key also honors the conventional OpenAI variable.
	if err := v.BindEnv("upstream.api_key", EnvPrefix+"_UPSTREAM_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, fmt.Errorf("binding upstream key env: %w", err)
	}

	return v, nil
}

// FromViper assembles a Config from the resolved values in v.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Server: ServerConfig{
			Listen: v.GetString("server.listen"),
		},
		Upstream: UpstreamConfig{
			URL:    v.GetString("upstream.url"),
			Model:  v.GetString("upstream.model"),
			APIKey: v.GetString("upstream.api_key"),
		},
		Storage: StorageConfig{
			Provider:    v.GetString("storage.provider"),
			PostgresDSN: v.GetString("storage.postgres_dsn"),
			SQLitePath:  v.GetString("storage.sqlite_path"),
			MaxConns:    v.GetInt32("storage.max_conns"),
		},
		VectorStore: VectorStoreConfig{
			Provider:   v.GetString("vector_store.provider"),
			Target:     v.GetString("vector_store.target"),
			Collection: v.GetString("vector_store.collection"),
		},
		Embedding: EmbeddingConfig{
			Provider:   v.GetString("embedding.provider"),
			Target:     v.GetString("embedding.target"),
			Model:      v.GetString("embedding.model"),
			Dimensions: v.GetUint("embedding.dimensions"),
		},
		Context: ContextConfig{
			MaxContextTokens: v.GetInt("context.max_context_tokens"),
			MaxHistoryTokens: v.GetInt("context.max_history_tokens"),
		},
		Stream: StreamConfig{
			TeeBuffer: v.GetInt("stream.tee_buffer"),
		},
		EventStream: EventStreamConfig{
			Provider: v.GetString("eventstream.provider"),
			Brokers:  stringList(v, "eventstream.brokers"),
			Topic:    v.GetString("eventstream.topic"),
		},
	}
}

// stringList reads key as a list. Environment variables and flags arrive as
// a single comma separated string.
func stringList(v *viper.Viper, key string) []string {
	if s, ok := v.Get(key).(string); ok {
		return splitList(s)
	}
	return v.GetStringSlice(key)
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	v.SetDefault("server.listen", d.Server.Listen)

	v.SetDefault("upstream.url", d.Upstream.URL)
	v.SetDefault("upstream.model", d.Upstream.Model)
	v.SetDefault("upstream.api_key", d.Upstream.APIKey)

	v.SetDefault("storage.provider", d.Storage.Provider)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.max_conns", d.Storage.MaxConns)

	v.SetDefault("vector_store.provider", d.VectorStore.Provider)
	v.SetDefault("vector_store.target", d.VectorStore.Target)
	v.SetDefault("vector_store.collection", d.VectorStore.Collection)

	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)

	v.SetDefault("context.max_context_tokens", d.Context.MaxContextTokens)
	v.SetDefault("context.max_history_tokens", d.Context.MaxHistoryTokens)

	v.SetDefault("stream.tee_buffer", d.Stream.TeeBuffer)

	v.SetDefault("eventstream.provider", d.EventStream.Provider)
	v.SetDefault("eventstream.brokers", d.EventStream.Brokers)
	v.SetDefault("eventstream.topic", d.EventStream.Topic)
}
