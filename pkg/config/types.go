package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent chatrelay configuration stored as
// config.toml in the .chatrelay/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Server      ServerConfig      `toml:"server"`
	Upstream    UpstreamConfig    `toml:"upstream"`
	Storage     StorageConfig     `toml:"storage"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Context     ContextConfig     `toml:"context"`
	Stream      StreamConfig      `toml:"stream"`
	EventStream EventStreamConfig `toml:"eventstream"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// UpstreamConfig holds the chat completion endpoint settings.
type UpstreamConfig struct {
	URL   string `toml:"url,omitempty"`
	Model string `toml:"model,omitempty"`

	// APIKey falls back to OPENAI_API_KEY when empty.
	APIKey string `toml:"api_key,omitempty"`
}

// StorageConfig selects and configures the message store.
type StorageConfig struct {
	// Provider is one of "postgres", "sqlite" or "inmemory".
	Provider    string `toml:"provider,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	MaxConns    int32  `toml:"max_conns,omitempty"`
}

// VectorStoreConfig holds vector store settings.
type VectorStoreConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Collection string `toml:"collection,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// ContextConfig holds the token budgets for retrieved context and history.
type ContextConfig struct {
	MaxContextTokens int `toml:"max_context_tokens,omitempty"`
	MaxHistoryTokens int `toml:"max_history_tokens,omitempty"`
}

// StreamConfig holds completion streaming settings.
type StreamConfig struct {
	// TeeBuffer is the number of chunks one branch may run ahead of the other.
	TeeBuffer int `toml:"tee_buffer,omitempty"`
}

// EventStreamConfig selects where message-persisted events are published.
type EventStreamConfig struct {
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func intKey(name string, field func(c *Config) *int) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.Itoa(*field(c))
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			if n < 0 {
				return fmt.Errorf("invalid value for %s: must not be negative", name)
			}
			*field(c) = n
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"server.listen":    stringKey(func(c *Config) *string { return &c.Server.Listen }),
	"upstream.url":     stringKey(func(c *Config) *string { return &c.Upstream.URL }),
	"upstream.model":   stringKey(func(c *Config) *string { return &c.Upstream.Model }),
	"upstream.api_key": stringKey(func(c *Config) *string { return &c.Upstream.APIKey }),

	"storage.provider":     stringKey(func(c *Config) *string { return &c.Storage.Provider }),
	"storage.postgres_dsn": stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),
	"storage.sqlite_path":  stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.max_conns": {
		get: func(c *Config) string {
			if c.Storage.MaxConns == 0 {
				return ""
			}
			return strconv.FormatInt(int64(c.Storage.MaxConns), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseInt(v, 10, 32)
			if err != nil {
				return fmt.Errorf("invalid value for storage.max_conns: %w", err)
			}
			c.Storage.MaxConns = int32(n)
			return nil
		},
	},

	"vector_store.provider":   stringKey(func(c *Config) *string { return &c.VectorStore.Provider }),
	"vector_store.target":     stringKey(func(c *Config) *string { return &c.VectorStore.Target }),
	"vector_store.collection": stringKey(func(c *Config) *string { return &c.VectorStore.Collection }),

	"embedding.provider": stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":   stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":    stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},

	"context.max_context_tokens": intKey("context.max_context_tokens", func(c *Config) *int { return &c.Context.MaxContextTokens }),
	"context.max_history_tokens": intKey("context.max_history_tokens", func(c *Config) *int { return &c.Context.MaxHistoryTokens }),
	"stream.tee_buffer":          intKey("stream.tee_buffer", func(c *Config) *int { return &c.Stream.TeeBuffer }),

	"eventstream.provider": stringKey(func(c *Config) *string { return &c.EventStream.Provider }),
	"eventstream.brokers": {
		get: func(c *Config) string { return strings.Join(c.EventStream.Brokers, ",") },
		set: func(c *Config, v string) error {
			c.EventStream.Brokers = splitList(v)
			return nil
		},
	},
	"eventstream.topic": stringKey(func(c *Config) *string { return &c.EventStream.Topic }),
}

// orderedKeys lists every key in the order of the TOML section layout.
var orderedKeys = []string{
	"server.listen",
	"upstream.url",
	"upstream.model",
	"upstream.api_key",
	"storage.provider",
	"storage.postgres_dsn",
	"storage.sqlite_path",
	"storage.max_conns",
	"vector_store.provider",
	"vector_store.target",
	"vector_store.collection",
	"embedding.provider",
	"embedding.target",
	"embedding.model",
	"embedding.dimensions",
	"context.max_context_tokens",
	"context.max_history_tokens",
	"stream.tee_buffer",
	"eventstream.provider",
	"eventstream.brokers",
	"eventstream.topic",
}

// splitList parses a comma separated list, dropping empty entries.
func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
