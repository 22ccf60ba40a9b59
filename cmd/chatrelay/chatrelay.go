// Package chatrelaycmder
package chatrelaycmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/config"
	ingestcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/ingest"
	servecmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/serve"
	versioncmder "github.com/papercomputeco/chatrelay/cmd/version"
)

const chatrelayLongDesc string = `Chatrelay streams chat completions to the browser and remembers the conversation.

Run services using:
  chatrelay serve              Run the HTTP server
  chatrelay ingest <files...>  Load reference documents for retrieval
  chatrelay config list        Show the resolved configuration`

const chatrelayShortDesc string = "Chatrelay - streaming chat completion relay"

func NewChatrelayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "chatrelay",
		Short:         chatrelayShortDesc,
		Long:          chatrelayLongDesc,
		SilenceUsage:  true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Directory holding config.toml (default: ./.chatrelay or ~/.chatrelay)")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(ingestcmder.NewIngestCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
