package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shamba-ai/shamba/pkg/cliui"
)

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Validate a value and write it to config.toml.

proxy.mode takes mock, completion or assistant. assistant.poll_interval takes
a duration such as 500ms. assistant.max_poll_attempts takes a positive
integer.

Examples:
  shamba config set proxy.mode completion
  shamba config set storage.sqlite_path ~/.shamba/shamba.db
  shamba config set eventstream.kafka_brokers localhost:9092`,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeKey,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			if err := checkKey(key); err != nil {
				return err
			}

			cfger, err := openConfiger(cmd)
			if err != nil {
				return err
			}

			if err := cfger.SetConfigValue(key, value); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "  %s Set %s = %s\n\n",
				cliui.SuccessMark, cliui.KeyStyle.Render(key), cliui.ValueStyle.Render(value))
			return nil
		},
	}
}
