package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"companion/candidate"
	"companion/dispatch"
)

type SystemConfig struct {
	DataDirectory string `toml:"data_directory"`
}

type ProviderConfig struct {
	Type    string `toml:"type"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
}

type SchedulerConfig struct {
	CooldownSeconds     int  `toml:"cooldown_seconds"`
	MaxHistory          int  `toml:"max_history"`
	ToolsEnabled        bool `toml:"tools_enabled"`
	MaxToolRounds       int  `toml:"max_tool_rounds"`
	PeriodicSeconds     int  `toml:"periodic_seconds"`
	RoundTimeoutSeconds int  `toml:"round_timeout_seconds"`
}

type PersonaConfig struct {
	ID           string `toml:"id"`
	Name         string `toml:"name"`
	SystemPrompt string `toml:"system_prompt"`
}

type UserConfig struct {
	Provider      ProviderConfig                `toml:"provider"`
	Scheduler     SchedulerConfig               `toml:"scheduler"`
	ActivePersona string                        `toml:"active_persona"`
	Personas      []PersonaConfig               `toml:"personas"`
	Candidates    map[string]candidate.Settings `toml:"candidates"`
}

// Config is the merged result of settings.toml, config.toml and the
// COMPANION_* environment.
type Config struct {
	DataDirectory string
	Debug         bool

	ProviderType string
	BaseURL      string
	Model        string
	// APIKey is only ever read from COMPANION_API_KEY.
	APIKey string

	SchedulerConfig SchedulerConfig
	ActivePersona   string
	Personas        []PersonaConfig
	Candidates      map[string]candidate.Settings
}

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

// Scheduler returns the clamped scheduling settings.
func (c *Config) Scheduler() dispatch.Settings {
	s := c.SchedulerConfig
	return dispatch.Settings{
		Cooldown:         time.Duration(s.CooldownSeconds) * time.Second,
		MaxHistory:       s.MaxHistory,
		ToolsEnabled:     s.ToolsEnabled,
		MaxToolRounds:    s.MaxToolRounds,
		PeriodicInterval: time.Duration(s.PeriodicSeconds) * time.Second,
		RoundTimeout:     time.Duration(s.RoundTimeoutSeconds) * time.Second,
	}.Clamped()
}

// PersonaList converts the configured personas, skipping entries without an id.
func (c *Config) PersonaList() []dispatch.Persona {
	out := make([]dispatch.Persona, 0, len(c.Personas))
	for _, p := range c.Personas {
		if strings.TrimSpace(p.ID) == "" {
			continue
		}
		name := p.Name
		if name == "" {
			name = p.ID
		}
		out = append(out, dispatch.Persona{ID: p.ID, Name: name, SystemPrompt: p.SystemPrompt})
	}
	return out
}

func (c *Config) CandidateSettings() candidate.SettingsMap {
	out := make(candidate.SettingsMap, len(c.Candidates))
	for id, s := range c.Candidates {
		out[id] = s
	}
	return out
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("COMPANION_PROVIDER"); v != "" {
		c.ProviderType = v
	}
	if v := os.Getenv("COMPANION_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("COMPANION_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("COMPANION_API_KEY"); v != "" {
		c.APIKey = v
	}
	c.Debug = CheckDebug()
}

func CheckDebug() bool {
	debug := os.Getenv("COMPANION_DEBUG")
	return debug == "true" || debug == "1"
}

func (c *Config) applyUserConfig(u *UserConfig) {
	c.ProviderType = u.Provider.Type
	c.BaseURL = u.Provider.BaseURL
	c.Model = u.Provider.Model
	c.SchedulerConfig = u.Scheduler
	c.ActivePersona = u.ActivePersona
	c.Personas = u.Personas
	c.Candidates = u.Candidates
}

// Load reads both configuration files, creating commented defaults when they
// are missing, and applies environment overrides. COMPANION_DATA_DIR skips
// settings.toml entirely.
func Load() (*Config, error) {
	cfg := &Config{DataDirectory: GetDefaultDataDir()}

	if dataDir := os.Getenv("COMPANION_DATA_DIR"); dataDir != "" {
		cfg.DataDirectory = dataDir
	} else {
		systemCfg, err := LoadSystemConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load system config: %w", err)
		}
		cfg.DataDirectory = systemCfg.DataDirectory
	}

	dataDir := cfg.DataDir()
	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to prepare data directory: %w", err)
	}

	userCfg, err := LoadUserConfig(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}
	cfg.applyUserConfig(userCfg)
	cfg.applyEnvOverrides()

	return cfg, nil
}
