// Package initcmder provides the init command for initializing a local
// .shamba directory in the current working directory.
package initcmder

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shamba-ai/shamba/pkg/cliui"
	"github.com/shamba-ai/shamba/pkg/config"
)

const (
	dirName    = ".shamba"
	configFile = "config.toml"

	presetFetchTimeout = 30 * time.Second
)

const initLongDesc string = `Initialize a new .shamba/ directory in the current working directory.

Creates a local .shamba/ directory that takes precedence over the default
~/.shamba/ directory for configuration and the SQLite store, and writes a
config.toml with default values.

Use --preset to start from a named proxy mode (mock, completion, assistant)
or from a config.toml served over http(s). Re-running init with a preset
overwrites the existing config.toml.

Examples:
  shamba init
  shamba init --preset assistant
  shamba init --preset https://example.com/shamba/config.toml`

const initShortDesc string = "Initialize a local .shamba/ directory"

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.Context(), cmd.OutOrStdout(), preset)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "", "Proxy mode preset or URL of a config.toml")

	return cmd
}

func runInit(ctx context.Context, w io.Writer, preset string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)
	path := filepath.Join(dir, configFile)

	info, statErr := os.Stat(dir)
	existed := statErr == nil && info.IsDir()

	if existed && preset == "" {
		fmt.Fprintf(w, "Already initialized: %s\n", dir)
		return nil
	}

	cfg, err := resolvePreset(ctx, preset)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .shamba directory: %w", err)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	if existed {
		fmt.Fprintf(w, "  %s Wrote %s\n", cliui.SuccessMark, cliui.ValueStyle.Render(path))
	} else {
		fmt.Fprintf(w, "  %s Initialized .shamba directory: %s\n", cliui.SuccessMark, cliui.ValueStyle.Render(dir))
	}
	fmt.Fprintf(w, "  %s %s\n", cliui.KeyStyle.Render("Mode:"), cfg.Proxy.Mode)

	return nil
}

func resolvePreset(ctx context.Context, preset string) (*config.Config, error) {
	switch {
	case preset == "":
		return config.NewDefaultConfig(), nil
	case strings.HasPrefix(preset, "http://"), strings.HasPrefix(preset, "https://"):
		return fetchPreset(ctx, preset)
	default:
		return config.PresetConfig(preset)
	}
}

func fetchPreset(ctx context.Context, url string) (*config.Config, error) {
	ctx, cancel := context.WithTimeout(ctx, presetFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating preset request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching preset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching preset: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading preset: %w", err)
	}

	return config.ParseConfigTOML(data)
}
