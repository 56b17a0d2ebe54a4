package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/shamba-ai/shamba/pkg/dotdir"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "SHAMBA"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the SHAMBA_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (SHAMBA_PROXY_MODE, SHAMBA_API_LISTEN, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: SHAMBA_PROXY_LISTEN, SHAMBA_STORAGE_SQLITE_PATH, etc.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Storage
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)

	// Proxy
	v.SetDefault("proxy.mode", d.Proxy.Mode)
	v.SetDefault("proxy.upstream", d.Proxy.Upstream)
	v.SetDefault("proxy.listen", d.Proxy.Listen)
	v.SetDefault("proxy.model", d.Proxy.Model)
	v.SetDefault("proxy.system_prompt", d.Proxy.SystemPrompt)

	// Assistant
	v.SetDefault("assistant.id", d.Assistant.ID)
	v.SetDefault("assistant.poll_interval", d.Assistant.PollInterval)
	v.SetDefault("assistant.max_poll_attempts", d.Assistant.MaxPollAttempts)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Event stream
	v.SetDefault("eventstream.kafka_brokers", d.EventStream.KafkaBrokers)
	v.SetDefault("eventstream.kafka_topic", d.EventStream.KafkaTopic)

	// Client
	v.SetDefault("client.proxy_target", d.Client.ProxyTarget)
	v.SetDefault("client.api_target", d.Client.APITarget)
}

// FromViper builds a Config from the merged viper state. Credentials are not
// part of viper; see LoadCredentials.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Version: v.GetInt("version"),
		Storage: StorageConfig{
			SQLitePath:  v.GetString("storage.sqlite_path"),
			PostgresDSN: v.GetString("storage.postgres_dsn"),
		},
		Proxy: ProxyConfig{
			Mode:         v.GetString("proxy.mode"),
			Upstream:     v.GetString("proxy.upstream"),
			Listen:       v.GetString("proxy.listen"),
			Model:        v.GetString("proxy.model"),
			SystemPrompt: v.GetString("proxy.system_prompt"),
		},
		Assistant: AssistantConfig{
			ID:              v.GetString("assistant.id"),
			PollInterval:    v.GetString("assistant.poll_interval"),
			MaxPollAttempts: v.GetInt("assistant.max_poll_attempts"),
		},
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
		EventStream: EventStreamConfig{
			KafkaBrokers: v.GetString("eventstream.kafka_brokers"),
			KafkaTopic:   v.GetString("eventstream.kafka_topic"),
		},
		Client: ClientConfig{
			ProxyTarget: v.GetString("client.proxy_target"),
			APITarget:   v.GetString("client.api_target"),
		},
	}

	if cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}
	if _, err := cfg.Assistant.PollIntervalDuration(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// KafkaBrokerList splits the comma separated broker list.
func (e EventStreamConfig) KafkaBrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(e.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
