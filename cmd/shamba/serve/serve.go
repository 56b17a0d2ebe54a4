// Package servecmder provides the serve command with subcommands for running services.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shamba-ai/shamba/api"
	apicmder "github.com/shamba-ai/shamba/cmd/shamba/serve/api"
	proxycmder "github.com/shamba-ai/shamba/cmd/shamba/serve/proxy"
	"github.com/shamba-ai/shamba/cmd/shamba/wiring"
	"github.com/shamba-ai/shamba/pkg/config"
	"github.com/shamba-ai/shamba/pkg/logger"
	"github.com/shamba-ai/shamba/proxy"
)

type serveCommander struct {
	flags serveFlags
	cfg   *config.Config
	debug bool

	logger *zap.Logger
}

// serveFlags only exist so cobra has somewhere to write; values are read
// back through viper.
type serveFlags struct {
	proxyListen     string
	apiListen       string
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
}

var serveFlagKeys = []string{
	config.FlagProxyListen,
	config.FlagAPIListen,
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

const serveLongDesc string = `Run shamba services.

Use subcommands to run individual services or all services together:
  shamba serve          Run both the chat proxy and the transcript API
  shamba serve api      Run just the transcript API
  shamba serve proxy    Run just the chat proxy

The proxy answers POST /api/chat in one of three modes:
  mock         canned replies, no credentials needed
  completion   streamed OpenAI chat completions (needs OPENAI_API_KEY)
  assistant    OpenAI assistant threads (needs OPENAI_API_KEY and OPENAI_ASSISTANT_ID)

Credentials are read from the environment and from ./.env.`

const serveShortDesc string = "Run shamba services"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.cfg, _, err = wiring.LoadConfig(cmd, serveFlagKeys...)
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

	f := &cmder.flags
	config.AddStringFlag(cmd, config.Flags, config.FlagProxyListen, &f.proxyListen)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &f.apiListen)
	config.AddStringFlag(cmd, config.Flags, config.FlagMode, &f.mode)
	config.AddStringFlag(cmd, config.Flags, config.FlagUpstream, &f.upstream)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &f.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagSystemPrompt, &f.systemPrompt)
	config.AddStringFlag(cmd, config.Flags, config.FlagPollInterval, &f.pollInterval)
	config.AddIntFlag(cmd, config.Flags, config.FlagMaxPollAttempts, &f.maxPollAttempts)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &f.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &f.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaBrokers, &f.kafkaBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &f.kafkaTopic)

	cmd.AddCommand(apicmder.NewAPICmd())
	cmd.AddCommand(proxycmder.NewProxyCmd())

	return cmd
}

func (c *serveCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	ctx := context.Background()

	// Shared between the recorder and the transcript API
	driver, err := wiring.NewStorageDriver(ctx, c.cfg, c.logger)
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

	apiServer, err := api.NewServer(api.Config{ListenAddr: c.cfg.API.Listen}, driver, c.logger)
	if err != nil {
		return fmt.Errorf("creating api server: %w", err)
	}
	defer apiServer.Shutdown()

	c.logger.Info("starting services",
		zap.String("proxy_addr", c.cfg.Proxy.Listen),
		zap.String("api_addr", c.cfg.API.Listen),
		zap.String("mode", string(p.Mode())),
	)

	errChan := make(chan error, 2)

	go func() {
		if err := p.Run(); err != nil {
			errChan <- fmt.Errorf("proxy error: %w", err)
		}
	}()

	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return nil
	}
}
