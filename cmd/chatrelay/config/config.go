// Package configcmder provides the config command for managing persistent
// chatrelay configuration stored in the .chatrelay/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent chatrelay configuration.

Configuration is stored as config.toml in the .chatrelay/ directory and
provides default values for command flags. Environment variables prefixed
with CHATRELAY_ override the file, and CLI flags override both.

Keys use dotted notation matching the TOML section structure:
  server.listen,
  upstream.url, upstream.model, upstream.api_key,
  storage.provider, storage.postgres_dsn, storage.sqlite_path, storage.max_conns,
  vector_store.provider, vector_store.target, vector_store.collection,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  context.max_context_tokens, context.max_history_tokens,
  stream.tee_buffer,
  eventstream.provider, eventstream.brokers, eventstream.topic

Use subcommands to get, set, or list configuration values:
  chatrelay config set <key> <value>    Set a configuration value
  chatrelay config get <key>            Get a configuration value
  chatrelay config list                 List all configuration values

Examples:
  chatrelay config set storage.provider postgres
  chatrelay config set vector_store.provider qdrant
  chatrelay config get upstream.model
  chatrelay config list`

const configShortDesc string = "Manage persistent chatrelay configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

// secretKeys are masked when printed.
var secretKeys = map[string]bool{
	"upstream.api_key":     true,
	"storage.postgres_dsn": true,
}

func display(key, value string) string {
	if value != "" && secretKeys[key] {
		return "<redacted>"
	}
	return value
}
