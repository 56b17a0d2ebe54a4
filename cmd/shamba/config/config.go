// Package configcmder provides the config command for managing persistent
// shamba configuration stored in the .shamba/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shamba-ai/shamba/pkg/cliui"
	"github.com/shamba-ai/shamba/pkg/config"
)

const configLongDesc string = `Manage persistent shamba configuration.

Values live in .shamba/config.toml and act as defaults for command flags.
SHAMBA_* environment variables override the file and CLI flags override
both. Keys use dotted section.name notation; run "shamba config list" to see
them all.

OPENAI_API_KEY is never stored here. Keep it in the environment or a .env
file.

Examples:
  shamba config set proxy.mode assistant
  shamba config set assistant.poll_interval 500ms
  shamba config get proxy.mode
  shamba config list`

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage persistent shamba configuration",
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

// openConfiger resolves config.toml from --config-dir and reports which file
// the command works on.
func openConfiger(cmd *cobra.Command) (*config.Configer, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	printSource(cmd.OutOrStdout(), cfger)
	return cfger, nil
}

func printSource(w io.Writer, cfger *config.Configer) {
	if path := cfger.Path(); path != "" {
		fmt.Fprintf(w, "\n  %s %s\n\n", cliui.KeyStyle.Render("Config file:"), cliui.DimStyle.Render(path))
		return
	}
	fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
}

func checkKey(key string) error {
	if config.IsValidConfigKey(key) {
		return nil
	}
	return fmt.Errorf("unknown config key: %q\n\nValid keys: %s", key, strings.Join(config.ValidConfigKeys(), ", "))
}

// completeKey completes the first positional argument with config keys.
func completeKey(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func renderValue(value string) string {
	if value == "" {
		return cliui.DimStyle.Render("<not set>")
	}
	return cliui.ValueStyle.Render(value)
}
