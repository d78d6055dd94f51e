package config

func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		DataDirectory: "~/.local/share/companion",
	}
}

func DefaultUserConfig() *UserConfig {
	return &UserConfig{
		Provider: ProviderConfig{
			Type:    "ollama",
			BaseURL: "http://localhost:11434",
			Model:   "llama3.1:latest",
		},
		Scheduler: SchedulerConfig{
			CooldownSeconds:     30,
			MaxHistory:          20,
			ToolsEnabled:        true,
			MaxToolRounds:       5,
			RoundTimeoutSeconds: 60,
		},
		ActivePersona: "default",
	}
}

func GenerateSystemConfigTemplate() string {
	return `# Companion System Configuration
# Location: ~/.config/companion/settings.toml
# This file uses TOML format: https://toml.io

# Directory where the user config, debug log and seen-items database live
data_directory = "~/.local/share/companion"
`
}

func GenerateUserConfigTemplate() string {
	return `# Companion User Configuration
# Location: <data_directory>/config.toml
# This file uses TOML format: https://toml.io
# API keys are never stored here. Export COMPANION_API_KEY instead.

# Persona used at startup. Unknown ids fall back to the built-in companion.
active_persona = "default"

[provider]
# One of: ollama, openai, openrouter, anthropic
type = "ollama"
base_url = "http://localhost:11434"
model = "llama3.1:latest"

[scheduler]
# Minimum seconds between two companion replies (at least 5)
cooldown_seconds = 30

# Conversation turns kept, system prompt included (at least 1)
max_history = 20

# Let the model call tools such as suggest_quick_replies
tools_enabled = true

# Tool round-trips allowed per reply (1 to 8)
max_tool_rounds = 5

# Speak up on a timer even without editor activity (0 disables, otherwise at least 10)
periodic_seconds = 0

# Seconds to wait for each model call
round_timeout_seconds = 60

# [[personas]]
# id = "pirate"
# name = "Captain"
# system_prompt = "You are a pirate who reviews code. Keep it short."

# Per-generator overrides. weight < 0 means "use the generator default".
# [candidates.news]
# enabled = true
# weight = 0.5
# options = { feed_url = "https://go.dev/blog/feed.atom" }
#
# [candidates.weather]
# options = { location = "Berlin", interval_minutes = "120" }
#
# [candidates.breaks]
# options = { interval_minutes = "50" }
#
# [candidates.screenshot]
# enabled = false
`
}
