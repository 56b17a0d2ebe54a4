package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shamba-ai/shamba/pkg/cliui"
)

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Long: `Print the effective value of one key. Keys the file does not set show
their default.

Examples:
  shamba config get proxy.mode
  shamba config get assistant.max_poll_attempts`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeKey,
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if err := checkKey(key); err != nil {
				return err
			}

			cfger, err := openConfiger(cmd)
			if err != nil {
				return err
			}

			value, err := cfger.GetConfigValue(key)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "  %s  %s\n\n", cliui.KeyStyle.Render(key), renderValue(value))
			return nil
		},
	}
}
