// Package wiring builds the long-lived services the shamba commands share:
// the storage driver, the turn event publisher, and the proxy configuration.
package wiring

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/shamba-ai/shamba/pkg/config"
	"github.com/shamba-ai/shamba/pkg/eventstream"
	"github.com/shamba-ai/shamba/pkg/eventstream/kafka"
	"github.com/shamba-ai/shamba/pkg/eventstream/nop"
	"github.com/shamba-ai/shamba/pkg/storage"
	"github.com/shamba-ai/shamba/pkg/storage/inmemory"
	"github.com/shamba-ai/shamba/pkg/storage/postgres"
	"github.com/shamba-ai/shamba/pkg/storage/sqlite"
	"github.com/shamba-ai/shamba/proxy"
)

// LoadConfig resolves the merged configuration for cmd: registered flags
// that were bound win over SHAMBA_* environment variables, which win over
// config.toml, which wins over defaults.
func LoadConfig(cmd *cobra.Command, flagKeys ...string) (*config.Config, *viper.Viper, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, flagKeys)

	cfg, err := config.FromViper(v)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	creds, err := config.LoadCredentials()
	if err != nil {
		return nil, nil, err
	}
	cfg.Credentials = creds

	return cfg, v, nil
}

// NewStorageDriver opens the configured store. A postgres DSN takes precedence
// over a sqlite path; with neither, turns are kept in memory.
func NewStorageDriver(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Driver, error) {
	switch {
	case cfg.Storage.PostgresDSN != "":
		driver, err := postgres.NewDriver(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL driver: %w", err)
		}
		logger.Info("using PostgreSQL storage")
		return driver, nil

	case cfg.Storage.SQLitePath != "":
		driver, err := sqlite.NewDriver(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite driver: %w", err)
		}
		logger.Info("using SQLite storage", zap.String("path", cfg.Storage.SQLitePath))
		return driver, nil

	default:
		logger.Info("using in-memory storage")
		return inmemory.NewDriver(), nil
	}
}

// NewPublisher returns a Kafka publisher when brokers are configured and a
// no-op publisher otherwise.
func NewPublisher(cfg *config.Config, logger *zap.Logger) (eventstream.Publisher, error) {
	brokers := cfg.EventStream.KafkaBrokerList()
	if len(brokers) == 0 {
		return nop.NewPublisher(), nil
	}

	pub, err := kafka.NewPublisher(kafka.Config{
		Brokers: brokers,
		Topic:   cfg.EventStream.KafkaTopic,
	})
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}

	logger.Info("publishing turn events to kafka",
		zap.Strings("brokers", brokers),
		zap.String("topic", cfg.EventStream.KafkaTopic),
	)
	return pub, nil
}

// ProxyConfig maps the merged configuration onto proxy.Config.
func ProxyConfig(cfg *config.Config, publisher eventstream.Publisher) (proxy.Config, error) {
	mode, err := proxy.ParseMode(cfg.Proxy.Mode)
	if err != nil {
		return proxy.Config{}, err
	}

	interval, err := cfg.Assistant.PollIntervalDuration()
	if err != nil {
		return proxy.Config{}, err
	}

	return proxy.Config{
		ListenAddr:      cfg.Proxy.Listen,
		Mode:            mode,
		UpstreamURL:     cfg.Proxy.Upstream,
		Model:           cfg.Proxy.Model,
		SystemPrompt:    cfg.Proxy.SystemPrompt,
		APIKey:          cfg.Credentials.APIKey,
		AssistantID:     cfg.AssistantID(),
		PollInterval:    interval,
		MaxPollAttempts: cfg.Assistant.MaxPollAttempts,
		Publisher:       publisher,
	}, nil
}
