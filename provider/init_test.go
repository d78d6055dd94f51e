package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion/config"
)

func TestInitializeProvider(t *testing.T) {
	p, err := InitializeProvider(&config.Config{ProviderType: "ollama", BaseURL: "http://localhost:11434", Model: "qwen3"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &OllamaProvider{}, p)
	assert.Equal(t, "qwen3", p.GetModel())

	p, err = InitializeProvider(&config.Config{ProviderType: "openai", BaseURL: "http://localhost:11434", Model: "llama3.1:latest", APIKey: "k"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIProvider{}, p)
	assert.Equal(t, "gpt-4o-mini", p.GetModel(), "ollama defaults do not leak into cloud providers")

	_, err = InitializeProvider(&config.Config{ProviderType: "anthropic"}, nil)
	assert.Error(t, err)

	_, err = InitializeProvider(&config.Config{ProviderType: "bogus"}, nil)
	assert.ErrorContains(t, err, "unknown provider type")
}
