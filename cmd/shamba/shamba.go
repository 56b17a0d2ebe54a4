// Package shambacmder is the root of the shamba command tree.
package shambacmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/shamba-ai/shamba/cmd/shamba/chat"
	configcmder "github.com/shamba-ai/shamba/cmd/shamba/config"
	initcmder "github.com/shamba-ai/shamba/cmd/shamba/init"
	servecmder "github.com/shamba-ai/shamba/cmd/shamba/serve"
	versioncmder "github.com/shamba-ai/shamba/cmd/version"
)

const shambaLongDesc string = `Shamba AI chat proxy for land and vegetation analysis.

Run services using:
  shamba serve          Run the chat proxy and transcript API together
  shamba serve proxy    Run the chat proxy
  shamba serve api      Run the transcript API

Talk to a running proxy with:
  shamba chat`

const shambaShortDesc string = "Shamba AI - Chat Proxy"

func NewShambaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "shamba",
		Short:         shambaShortDesc,
		Long:          shambaLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .shamba/ directory holding config.toml")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
