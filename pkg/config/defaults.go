package config

const (
	defaultMode         = "mock"
	defaultUpstream     = "https://api.openai.com/v1"
	defaultModel        = "gpt-4o-mini"
	defaultProxyListen  = ":8080"
	defaultAPIListen    = ":8081"
	defaultPollInterval = "1s"
	defaultMaxPolls     = 120
	defaultKafkaTopic   = "shamba.turns"

	defaultClientProxyTarget = "http://localhost:8080"
	defaultClientAPITarget   = "http://localhost:8081"

	defaultSystemPrompt = "You are Shamba AI, an assistant for land and vegetation analysis. " +
		"Answer concisely and format figures in Markdown."
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Proxy: ProxyConfig{
			Mode:         defaultMode,
			Upstream:     defaultUpstream,
			Listen:       defaultProxyListen,
			Model:        defaultModel,
			SystemPrompt: defaultSystemPrompt,
		},
		Assistant: AssistantConfig{
			PollInterval:    defaultPollInterval,
			MaxPollAttempts: defaultMaxPolls,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		EventStream: EventStreamConfig{
			KafkaTopic: defaultKafkaTopic,
		},
		Client: ClientConfig{
			ProxyTarget: defaultClientProxyTarget,
			APITarget:   defaultClientAPITarget,
		},
	}
}
