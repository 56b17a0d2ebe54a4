// Package proxycmder provides the chat proxy server command.
package proxycmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shamba-ai/shamba/cmd/shamba/wiring"
	"github.com/shamba-ai/shamba/pkg/config"
	"github.com/shamba-ai/shamba/pkg/logger"
	"github.com/shamba-ai/shamba/proxy"
)

type proxyCommander struct {
	listen          string
	mode            string
	upstream        string
	model           string
	systemPrompt    string
	pollInterval    string
	maxPollAttempts int
	sqlitePath      string
	postgresDSN     string
	kafkaBrokers    string
	kafkaTopic      string

	cfg   *config.Config
	debug bool

	logger *zap.Logger
}

var proxyFlagKeys = []string{
	config.FlagProxyListenStandalone,
	config.FlagMode,
	config.FlagUpstream,
	config.FlagModel,
	config.FlagSystemPrompt,
	config.FlagPollInterval,
	config.FlagMaxPollAttempts,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
}

const proxyLongDesc string = `Run the chat proxy server.

The proxy accepts {"prompt": "...", "thread_id": null} on POST /api/chat and
streams the reply back as text. Every completed prompt and reply is recorded
to the configured store.

Modes: mock, completion, assistant.`

const proxyShortDesc string = "Run the shamba chat proxy"

func NewProxyCmd() *cobra.Command {
	cmder := &proxyCommander{}

	cmd := &cobra.Command{
		Use:   "proxy",
		Short: proxyShortDesc,
		Long:  proxyLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.cfg, _, err = wiring.LoadConfig(cmd, proxyFlagKeys...)
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

	config.AddStringFlag(cmd, config.Flags, config.FlagProxyListenStandalone, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagMode, &cmder.mode)
	config.AddStringFlag(cmd, config.Flags, config.FlagUpstream, &cmder.upstream)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagSystemPrompt, &cmder.systemPrompt)
	config.AddStringFlag(cmd, config.Flags, config.FlagPollInterval, &cmder.pollInterval)
	config.AddIntFlag(cmd, config.Flags, config.FlagMaxPollAttempts, &cmder.maxPollAttempts)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaBrokers, &cmder.kafkaBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.kafkaTopic)

	return cmd
}

func (c *proxyCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	driver, err := wiring.NewStorageDriver(context.Background(), c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	publisher, err := wiring.NewPublisher(c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	proxyConfig, err := wiring.ProxyConfig(c.cfg, publisher)
	if err != nil {
		return err
	}

	p, err := proxy.New(proxyConfig, driver, c.logger)
	if err != nil {
		return fmt.Errorf("creating proxy: %w", err)
	}
	defer p.Close()

	return p.Run()
}
