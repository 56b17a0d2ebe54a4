package config

import (
	"fmt"
	"strconv"
	"time"
)

// Config represents the persistent shamba configuration stored as config.toml
// in the .shamba/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	Proxy       ProxyConfig       `toml:"proxy"`
	Assistant   AssistantConfig   `toml:"assistant"`
	API         APIConfig         `toml:"api"`
	EventStream EventStreamConfig `toml:"eventstream"`
	Client      ClientConfig      `toml:"client"`

	// Credentials come from the environment only and are never written to
	// config.toml.
	Credentials Credentials `toml:"-"`
}

// StorageConfig holds shared storage settings used by both proxy and API.
// PostgresDSN takes precedence over SQLitePath. With neither set, turns are
// kept in memory.
type StorageConfig struct {
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// ProxyConfig holds chat proxy settings.
type ProxyConfig struct {
	Mode         string `toml:"mode,omitempty"`
	Upstream     string `toml:"upstream,omitempty"`
	Listen       string `toml:"listen,omitempty"`
	Model        string `toml:"model,omitempty"`
	SystemPrompt string `toml:"system_prompt,omitempty"`
}

// AssistantConfig holds settings for assistant mode. ID is overridden by
// OPENAI_ASSISTANT_ID when that is set.
type AssistantConfig struct {
	ID              string `toml:"id,omitempty"`
	PollInterval    string `toml:"poll_interval,omitempty"`
	MaxPollAttempts int    `toml:"max_poll_attempts,omitempty"`
}

// PollIntervalDuration parses PollInterval, returning zero when it is empty.
func (a AssistantConfig) PollIntervalDuration() (time.Duration, error) {
	if a.PollInterval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(a.PollInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid assistant.poll_interval: %w", err)
	}
	return d, nil
}

// APIConfig holds transcript API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// EventStreamConfig holds turn event publishing settings. Publishing is
// disabled while KafkaBrokers is empty.
type EventStreamConfig struct {
	KafkaBrokers string `toml:"kafka_brokers,omitempty"`
	KafkaTopic   string `toml:"kafka_topic,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to the running
// proxy and API servers (e.g. shamba chat).
// Values are full URLs (scheme + host + port).
type ClientConfig struct {
	ProxyTarget string `toml:"proxy_target,omitempty"`
	APITarget   string `toml:"api_target,omitempty"`
}

// configKey is one dotted key of config.toml with its accessors.
type configKey struct {
	name string
	get  func(c *Config) string
	set  func(c *Config, v string) error
}

// configKeys lists every supported key in TOML section order.
var configKeys = []configKey{
	{
		name: "storage.sqlite_path",
		get:  func(c *Config) string { return c.Storage.SQLitePath },
		set:  func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	{
		name: "storage.postgres_dsn",
		get:  func(c *Config) string { return c.Storage.PostgresDSN },
		set:  func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	{
		name: "proxy.mode",
		get:  func(c *Config) string { return c.Proxy.Mode },
		set:  func(c *Config, v string) error {
			switch v {
			case "mock", "completion", "assistant":
				c.Proxy.Mode = v
				return nil
			default:
				return fmt.Errorf("invalid value for proxy.mode: %q (expected mock, completion or assistant)", v)
			}
		},
	},
	{
		name: "proxy.upstream",
		get:  func(c *Config) string { return c.Proxy.Upstream },
		set:  func(c *Config, v string) error { c.Proxy.Upstream = v; return nil },
	},
	{
		name: "proxy.listen",
		get:  func(c *Config) string { return c.Proxy.Listen },
		set:  func(c *Config, v string) error { c.Proxy.Listen = v; return nil },
	},
	{
		name: "proxy.model",
		get:  func(c *Config) string { return c.Proxy.Model },
		set:  func(c *Config, v string) error { c.Proxy.Model = v; return nil },
	},
	{
		name: "proxy.system_prompt",
		get:  func(c *Config) string { return c.Proxy.SystemPrompt },
		set:  func(c *Config, v string) error { c.Proxy.SystemPrompt = v; return nil },
	},
	{
		name: "assistant.id",
		get:  func(c *Config) string { return c.Assistant.ID },
		set:  func(c *Config, v string) error { c.Assistant.ID = v; return nil },
	},
	{
		name: "assistant.poll_interval",
		get:  func(c *Config) string { return c.Assistant.PollInterval },
		set:  func(c *Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid value for assistant.poll_interval: %w", err)
			}
			if d <= 0 {
				return fmt.Errorf("invalid value for assistant.poll_interval: must be positive")
			}
			c.Assistant.PollInterval = v
			return nil
		},
	},
	{
		name: "assistant.max_poll_attempts",
		get:  func(c *Config) string {
			if c.Assistant.MaxPollAttempts == 0 {
				return ""
			}
			return strconv.Itoa(c.Assistant.MaxPollAttempts)
		},
		set:  func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for assistant.max_poll_attempts: %w", err)
			}
			if n <= 0 {
				return fmt.Errorf("invalid value for assistant.max_poll_attempts: must be positive")
			}
			c.Assistant.MaxPollAttempts = n
			return nil
		},
	},
	{
		name: "api.listen",
		get:  func(c *Config) string { return c.API.Listen },
		set:  func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	{
		name: "eventstream.kafka_brokers",
		get:  func(c *Config) string { return c.EventStream.KafkaBrokers },
		set:  func(c *Config, v string) error { c.EventStream.KafkaBrokers = v; return nil },
	},
	{
		name: "eventstream.kafka_topic",
		get:  func(c *Config) string { return c.EventStream.KafkaTopic },
		set:  func(c *Config, v string) error { c.EventStream.KafkaTopic = v; return nil },
	},
	{
		name: "client.proxy_target",
		get:  func(c *Config) string { return c.Client.ProxyTarget },
		set:  func(c *Config, v string) error { c.Client.ProxyTarget = v; return nil },
	},
	{
		name: "client.api_target",
		get:  func(c *Config) string { return c.Client.APITarget },
		set:  func(c *Config, v string) error { c.Client.APITarget = v; return nil },
	},
}
