package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/shamba-ai/shamba/pkg/dotdir"
)

const configFile = "config.toml"

// CurrentV is the only config.toml layout version.
const CurrentV = 0

var presetNames = []string{"mock", "completion", "assistant"}

// Configer reads and writes config.toml inside the resolved .shamba/
// directory. With no directory resolved it serves defaults and refuses to
// save.
type Configer struct {
	path string
}

func NewConfiger(override string) (*Configer, error) {
	dir, err := dotdir.NewManager().Target(override)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return &Configer{}, nil
	}

	path := filepath.Join(dir, configFile)
	if _, err := os.Stat(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return &Configer{path: path}, nil
}

// Path is the config.toml location, empty when no .shamba/ directory exists.
func (c *Configer) Path() string {
	return c.path
}

// ValidConfigKeys returns every supported key in TOML section order.
func ValidConfigKeys() []string {
	names := make([]string, len(configKeys))
	for i, k := range configKeys {
		names[i] = k.name
	}
	return names
}

func IsValidConfigKey(key string) bool {
	_, err := lookupKey(key)
	return err == nil
}

func lookupKey(name string) (configKey, error) {
	i := slices.IndexFunc(configKeys, func(k configKey) bool { return k.name == name })
	if i < 0 {
		return configKey{}, fmt.Errorf("unknown config key: %q", name)
	}
	return configKeys[i], nil
}

// LoadConfig returns the defaults overlaid with whatever config.toml sets.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.path == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return NewDefaultConfig(), nil
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return ParseConfigTOML(data)
}

// SaveConfig writes cfg through a temporary file so a failed write never
// leaves a truncated config.toml behind.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}
	if c.path == "" {
		return errors.New("no .shamba directory to save config in")
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), configFile+".*")
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// SetConfigValue validates value for key and persists it.
func (c *Configer) SetConfigValue(key, value string) error {
	k, err := lookupKey(key)
	if err != nil {
		return err
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}
	if err := k.set(cfg, value); err != nil {
		return err
	}
	return c.SaveConfig(cfg)
}

// GetConfigValue returns the effective value of key, defaults included.
func (c *Configer) GetConfigValue(key string) (string, error) {
	k, err := lookupKey(key)
	if err != nil {
		return "", err
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}
	return k.get(cfg), nil
}

// PresetConfig returns the defaults with the proxy switched to the named
// mode.
func PresetConfig(name string) (*Config, error) {
	mode := strings.ToLower(name)
	if !slices.Contains(presetNames, mode) {
		return nil, fmt.Errorf("unknown preset: %q (available: %s)", name, strings.Join(presetNames, ", "))
	}

	cfg := NewDefaultConfig()
	cfg.Proxy.Mode = mode
	return cfg, nil
}

// ParseConfigTOML decodes data on top of the defaults, so keys the document
// leaves out keep their default values.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := NewDefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}
	return cfg, nil
}

// Entry is one key of config.toml with its effective value.
type Entry struct {
	Key   string
	Value string
}

// Entries returns every key of cfg in section order. Unset keys have an
// empty Value.
func (c *Config) Entries() []Entry {
	entries := make([]Entry, len(configKeys))
	for i, k := range configKeys {
		entries[i] = Entry{Key: k.name, Value: k.get(c)}
	}
	return entries
}
