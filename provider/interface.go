// Package provider implements model.Provider for the supported language
// model backends.
//
// Every backend speaks the provider-agnostic types from the model package:
// messages with optional images, tool calls carrying their identifiers, and
// tool-result turns. Conversions to and from each SDK's wire types live next
// to the backend that needs them.
//
// Backend failures are normalized: unreachable servers and timeouts wrap
// model.ErrConnection, an unknown model id wraps model.ErrModelNotFound.
//
// # Usage
//
//	cfg := provider.Config{
//	    Type:    provider.ProviderTypeOllama,
//	    BaseURL: "http://localhost:11434",
//	    Model:   "llama3.1",
//	}
//	p, err := provider.NewProvider(cfg)
//	if err != nil {
//	    // handle error
//	}
//	err = p.Chat(ctx, messages, callback)
package provider

// Note: The Provider interface and StreamCallback are defined in the model package
// (model/provider.go) to avoid import cycles. This package implements model.Provider.

// ProviderType identifies the provider implementation.
type ProviderType string

const (
	ProviderTypeOllama     ProviderType = "ollama"
	ProviderTypeOpenRouter ProviderType = "openrouter"
	ProviderTypeOpenAI     ProviderType = "openai"
	ProviderTypeAnthropic  ProviderType = "anthropic"
)

// Config holds provider-specific configuration.
type Config struct {
	Type    ProviderType
	BaseURL string
	Model   string
	APIKey  string // For OpenAI/OpenRouter/Anthropic (unused for Ollama)
}
