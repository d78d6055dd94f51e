package provider

import (
	"fmt"
	"strings"

	"companion/model"
)

type constructor func(cfg Config) (model.Provider, error)

// constructors builds each backend. OpenAI and OpenRouter share the
// openai-go client and its streaming path; OpenRouter differs in its default
// endpoint and model, rewrites tool names to the characters its upstreams
// accept, and leaves out the tool instruction prompt for models that already
// call tools natively. Anthropic uses its own SDK and sends system turns
// out of band. Ollama talks to a local server and needs no key.
var constructors = map[ProviderType]constructor{
	ProviderTypeOllama: func(cfg Config) (model.Provider, error) {
		return NewOllamaProvider(cfg.BaseURL, cfg.Model)
	},
	ProviderTypeOpenAI: func(cfg Config) (model.Provider, error) {
		return NewOpenAIProvider(cfg.BaseURL, cfg.APIKey, cfg.Model)
	},
	ProviderTypeOpenRouter: func(cfg Config) (model.Provider, error) {
		return NewOpenRouterProvider(cfg.BaseURL, cfg.APIKey, cfg.Model)
	},
	ProviderTypeAnthropic: func(cfg Config) (model.Provider, error) {
		return NewAnthropicProvider(cfg.BaseURL, cfg.APIKey, cfg.Model)
	},
}

// NewProvider builds the backend named by cfg.Type. Empty BaseURL and Model
// select the backend's defaults. Hosted backends fail without an API key.
func NewProvider(cfg Config) (model.Provider, error) {
	build, ok := constructors[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
	return build(cfg)
}

// RequiresAPIKey reports whether the backend is a hosted API.
func RequiresAPIKey(t ProviderType) bool {
	return t != ProviderTypeOllama
}

// MapProviderIDToType maps the [provider] type from config.toml to a
// ProviderType, case-insensitively. An empty id means Ollama and "claude"
// is accepted for Anthropic. Unknown ids pass through so NewProvider can
// report them.
func MapProviderIDToType(id string) ProviderType {
	switch norm := strings.ToLower(strings.TrimSpace(id)); norm {
	case "", "ollama":
		return ProviderTypeOllama
	case "claude":
		return ProviderTypeAnthropic
	default:
		if _, ok := constructors[ProviderType(norm)]; ok {
			return ProviderType(norm)
		}
		return ProviderType(id)
	}
}
