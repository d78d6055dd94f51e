package provider

import (
	"fmt"

	"go.uber.org/zap"

	"companion/config"
	"companion/model"
	"companion/ollama"
)

// InitializeProvider builds the provider named by the configuration.
//
// The user config template ships with the local Ollama URL, so a cloud
// provider configured without its own base URL falls back to the vendor
// default instead of talking to Ollama. The model is left to the provider
// default when unset.
func InitializeProvider(cfg *config.Config, logger *zap.Logger) (model.Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	typ := MapProviderIDToType(cfg.ProviderType)

	baseURL := cfg.BaseURL
	if RequiresAPIKey(typ) && baseURL == ollama.DefaultBaseURL {
		baseURL = ""
	}
	modelName := cfg.Model
	if RequiresAPIKey(typ) && modelName == ollama.DefaultModel {
		modelName = ""
	}

	p, err := NewProvider(Config{
		Type:    typ,
		BaseURL: baseURL,
		APIKey:  cfg.APIKey,
		Model:   modelName,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize %s provider: %w", typ, err)
	}

	logger.Named("provider").Debug("provider initialized",
		zap.String("type", string(typ)),
		zap.String("model", p.GetModel()),
	)
	return p, nil
}
