package provider_test

import (
	"context"
	"fmt"
	"log"

	"companion/model"
	"companion/provider"
)

// ExampleNewProvider demonstrates creating an Ollama provider using the factory.
func ExampleNewProvider() {
	cfg := provider.Config{
		Type:    provider.ProviderTypeOllama,
		BaseURL: "http://localhost:11434",
		Model:   "llama3.1",
	}

	p, err := provider.NewProvider(cfg)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Provider created: %T\n", p)
	// Output: Provider created: *provider.OllamaProvider
}

// ExampleNewOllamaProvider demonstrates creating an Ollama provider directly.
func ExampleNewOllamaProvider() {
	p, err := provider.NewOllamaProvider("http://localhost:11434", "llama3.1")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Current model: %s\n", p.GetModel())

	p.SetModel("llama3.2:latest")
	fmt.Printf("New model: %s\n", p.GetModel())

	// Output:
	// Current model: llama3.1
	// New model: llama3.2:latest
}

// ExampleOllamaProvider_Chat demonstrates basic chat without tools.
//
// Note: This example doesn't run because it requires a live Ollama server.
func ExampleOllamaProvider_Chat() {
	p, err := provider.NewOllamaProvider("http://localhost:11434", "llama3.1")
	if err != nil {
		log.Fatal(err)
	}

	messages := []model.Message{
		{Role: model.RoleUser, Content: "Hello! How are you?"},
	}

	err = p.Chat(context.Background(), messages, func(chunk string, toolCalls []model.ToolCall) error {
		fmt.Print(chunk)
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}
}

// ExampleTestConnectivity demonstrates the startup connectivity probe.
//
// Note: This example doesn't run because it requires a live Ollama server.
func ExampleTestConnectivity() {
	p, err := provider.NewOllamaProvider("http://localhost:11434", "llama3.1")
	if err != nil {
		log.Fatal(err)
	}

	res := provider.TestConnectivity(context.Background(), p)
	switch {
	case res.OK:
		fmt.Println("ready")
	case res.Kind == model.FailureModelNotFound:
		fmt.Println("pull the model first:", res.Err)
	default:
		fmt.Println("server unreachable:", res.Err)
	}
}

// ExampleConfig demonstrates different provider configurations.
func ExampleConfig() {
	ollamaCfg := provider.Config{
		Type:    provider.ProviderTypeOllama,
		BaseURL: "http://localhost:11434",
		Model:   "llama3.1",
	}

	openaiCfg := provider.Config{
		Type:    provider.ProviderTypeOpenAI,
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
		APIKey:  "sk-...",
	}

	anthropicCfg := provider.Config{
		Type:    provider.ProviderTypeAnthropic,
		BaseURL: "https://api.anthropic.com",
		Model:   "claude-sonnet-4-5-20250929",
		APIKey:  "sk-ant-...",
	}

	fmt.Printf("Ollama: %s\n", ollamaCfg.Type)
	fmt.Printf("OpenAI: %s\n", openaiCfg.Type)
	fmt.Printf("Anthropic: %s\n", anthropicCfg.Type)

	// Output:
	// Ollama: ollama
	// OpenAI: openai
	// Anthropic: anthropic
}
