package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

const (
	// EnvAPIKey holds the provider API key.
	EnvAPIKey = "OPENAI_API_KEY"

	// EnvAssistantID holds the assistant used in assistant mode.
	EnvAssistantID = "OPENAI_ASSISTANT_ID"

	// DefaultEnvFile is loaded when no env file is named.
	DefaultEnvFile = ".env"
)

// Credentials are the provider secrets read from the environment.
type Credentials struct {
	APIKey      string
	AssistantID string
}

// LoadCredentials loads the given env files into the process environment and
// then reads the credentials from it. Variables already set in the
// environment win over file values. Missing files are skipped. With no files
// named, ./.env is tried.
func LoadCredentials(envFiles ...string) (Credentials, error) {
	if len(envFiles) == 0 {
		envFiles = []string{DefaultEnvFile}
	}

	for _, f := range envFiles {
		if f == "" {
			continue
		}
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Credentials{}, fmt.Errorf("loading env file %s: %w", f, err)
		}
	}

	return Credentials{
		APIKey:      os.Getenv(EnvAPIKey),
		AssistantID: os.Getenv(EnvAssistantID),
	}, nil
}

// AssistantID returns the assistant to run, preferring the environment over
// the config file.
func (c *Config) AssistantID() string {
	if c.Credentials.AssistantID != "" {
		return c.Credentials.AssistantID
	}
	return c.Assistant.ID
}
