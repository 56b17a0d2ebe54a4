package configcmder

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shamba-ai/shamba/pkg/cliui"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration values",
		Long:  "Print every configuration key with its effective value.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfger, err := openConfiger(cmd)
			if err != nil {
				return err
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return err
			}

			entries := cfg.Entries()
			width := 0
			for _, e := range entries {
				width = max(width, len(e.Key))
			}

			w := cmd.OutOrStdout()
			for _, e := range entries {
				value := e.Value
				if value != "" {
					value = strconv.Quote(value)
				}
				fmt.Fprintf(w, "  %s  %s\n", cliui.KeyStyle.Render(fmt.Sprintf("%-*s", width, e.Key)), renderValue(value))
			}
			fmt.Fprintln(w)
			return nil
		},
	}
}
