package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ollama/ollama/api"

	"companion/model"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.1:latest"
)

type Client struct {
	client  *api.Client
	baseURL string

	mu    sync.RWMutex
	model string
	// noTools remembers models the server rejected tool definitions for.
	noTools map[string]bool
}

type StreamCallback func(chunk string, toolCalls []api.ToolCall) error

func NewClient(baseURL, model string) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid Ollama URL %q: scheme and host are required", baseURL)
	}

	client := api.NewClient(parsedURL, http.DefaultClient)

	return &Client{
		client:  client,
		model:   model,
		baseURL: baseURL,
		noTools: make(map[string]bool),
	}, nil
}

func (c *Client) Chat(ctx context.Context, messages []api.Message, callback StreamCallback) error {
	return c.ChatWithTools(ctx, messages, nil, callback)
}

// ChatWithTools sends a chat request with optional tool definitions. Tools
// are dropped for models known not to support them; a model that rejects
// them is remembered and the request retried without tools.
func (c *Client) ChatWithTools(ctx context.Context, messages []api.Message, tools []api.Tool, callback StreamCallback) error {
	modelName := c.GetModel()
	if len(tools) > 0 && !c.toolsAllowed(modelName) {
		tools = nil
	}

	err := c.chat(ctx, modelName, messages, tools, callback)
	if err != nil && len(tools) > 0 && isToolsUnsupported(err) {
		c.mu.Lock()
		c.noTools[modelName] = true
		c.mu.Unlock()
		return c.chat(ctx, modelName, messages, nil, callback)
	}
	return err
}

func (c *Client) chat(ctx context.Context, modelName string, messages []api.Message, tools []api.Tool, callback StreamCallback) error {
	req := &api.ChatRequest{
		Model:    modelName,
		Messages: messages,
		Tools:    tools,
		Stream:   func(b bool) *bool { return &b }(true),
	}

	respFunc := func(resp api.ChatResponse) error {
		if callback != nil {
			// Pass tool calls if present, otherwise nil
			return callback(resp.Message.Content, resp.Message.ToolCalls)
		}
		return nil
	}

	return c.client.Chat(ctx, req, respFunc)
}

func (c *Client) toolsAllowed(modelName string) bool {
	c.mu.RLock()
	rejected := c.noTools[modelName]
	c.mu.RUnlock()
	if rejected {
		return false
	}
	supported, known := ToolSupport(modelName)
	return supported || !known
}

func isToolsUnsupported(err error) bool {
	var status api.StatusError
	if !asStatusError(err, &status) {
		return false
	}
	return status.StatusCode == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(status.ErrorMessage), "does not support tools")
}

func (c *Client) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	resp, err := c.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	models := make([]model.ModelInfo, len(resp.Models))
	for i, m := range resp.Models {
		models[i] = model.ModelInfo{
			Name:         m.Name,
			Size:         m.Size,
			Provider:     "ollama",
			InternalName: m.Name, // Ollama uses same name for display and API
		}
	}

	return models, nil
}

// HasModel asks the server whether the active model has been pulled.
func (c *Client) HasModel(ctx context.Context) error {
	_, err := c.client.Show(ctx, &api.ShowRequest{Model: c.GetModel()})
	return err
}

func (c *Client) SetModel(model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = model
}

func (c *Client) GetModel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := c.client.List(ctx)
	return err
}

// toolCallingModels tracks which model families support tool calling.
// This is a curated list based on Ollama documentation and community testing
var toolCallingModels = map[string]bool{
	"qwen":      true, // qwen2.5-coder, qwen3-coder
	"llama3.1":  true,
	"llama3.2":  true,
	"llama3.3":  true,
	"mistral":   true, // mistral:latest, mistral-nemo
	"command-r": true,
	"nemotron":  true,
	"granite3":  true,
	"gpt-oss":   true,

	"llama3-gradient": false,
	"llama3":          false, // Original llama3 (not 3.1/3.2/3.3)
	"phi":             false,
	"gemma":           false,
	"codellama":       false,
	"deepseek":        false,
}

// orderedPrefixes defines the order to check model prefixes.
// Most specific prefixes come first so "llama3.2" is not matched as "llama3".
var orderedPrefixes = []string{
	"llama3.3", "llama3.2", "llama3.1",
	"llama3-gradient",
	"command-r", "qwen", "mistral", "nemotron", "granite3", "gpt-oss",
	"codellama",
	"llama3",
	"deepseek", "phi", "gemma",
}

// ToolSupport reports whether a model family is known to support Ollama's
// tool calling API, and whether the family is known at all.
func ToolSupport(modelName string) (supported, known bool) {
	modelName = strings.ToLower(modelName)
	for _, prefix := range orderedPrefixes {
		if strings.HasPrefix(modelName, prefix) {
			return toolCallingModels[prefix], true
		}
	}
	return false, false
}
