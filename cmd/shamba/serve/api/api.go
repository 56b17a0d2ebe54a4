// Package apicmder provides the transcript API server cobra command.
package apicmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shamba-ai/shamba/api"
	"github.com/shamba-ai/shamba/cmd/shamba/wiring"
	"github.com/shamba-ai/shamba/pkg/config"
	"github.com/shamba-ai/shamba/pkg/logger"
)

type apiCommander struct {
	listen      string
	sqlitePath  string
	postgresDSN string

	cfg   *config.Config
	debug bool

	logger *zap.Logger
}

var apiFlagKeys = []string{
	config.FlagAPIListenStandalone,
	config.FlagSQLite,
	config.FlagPostgres,
}

const apiLongDesc string = `Run the transcript API for browsing recorded chat turns.

The API reads the same store the proxy writes to, so point both at the same
SQLite file or PostgreSQL database when running them separately.`

const apiShortDesc string = "Run the shamba transcript API"

func NewAPICmd() *cobra.Command {
	cmder := &apiCommander{}

	cmd := &cobra.Command{
		Use:   "api",
		Short: apiShortDesc,
		Long:  apiLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.cfg, _, err = wiring.LoadConfig(cmd, apiFlagKeys...)
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListenStandalone, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresDSN)

	return cmd
}

func (c *apiCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	driver, err := wiring.NewStorageDriver(context.Background(), c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	server, err := api.NewServer(api.Config{ListenAddr: c.cfg.API.Listen}, driver, c.logger)
	if err != nil {
		return err
	}

	return server.Run()
}
