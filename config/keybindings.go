package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// KeyBindingsConfig holds modifier customization and optional per-action overrides
type KeyBindingsConfig struct {
	Modifiers ModifierConfig    `toml:"modifiers"`
	Actions   map[string]string `toml:"actions"`
}

type ModifierConfig struct {
	Primary   string `toml:"primary"`   // e.g., "alt", "ctrl", "meta", "super"
	Secondary string `toml:"secondary"` // e.g., "alt+shift", "ctrl+shift"
}

type actionDef struct {
	modifier string // "primary", "secondary", or "none"
	key      string
}

// actionRegistry maps action names to their default keybindings.
// Users can override any of these in the [actions] section of keybindings.toml
var actionRegistry = map[string]actionDef{
	"quit":            {"primary", "q"},
	"copy_last_reply": {"primary", "y"},
	"reset_history":   {"primary", "r"},
	"random_trigger":  {"primary", "t"},
	"help":            {"primary", "h"},

	"scroll_down":      {"primary", "j"},
	"scroll_up":        {"primary", "k"},
	"half_page_down":   {"secondary", "j"},
	"half_page_up":     {"secondary", "k"},
	"scroll_to_bottom": {"secondary", "g"},
}

// Actions lists every bindable action name.
func Actions() []string {
	names := make([]string, 0, len(actionRegistry))
	for name := range actionRegistry {
		names = append(names, name)
	}
	return names
}

func DefaultKeybindings() *KeyBindingsConfig {
	return &KeyBindingsConfig{
		Modifiers: ModifierConfig{
			Primary:   "alt",
			Secondary: "alt+shift",
		},
	}
}

// LoadKeybindings loads keybindings from data directory
func LoadKeybindings(dataDir string) (*KeyBindingsConfig, error) {
	cfg := DefaultKeybindings()
	keybindingsPath := filepath.Join(dataDir, "keybindings.toml")

	if !FileExists(keybindingsPath) {
		if err := CreateDefaultKeybindings(dataDir); err != nil {
			return nil, fmt.Errorf("failed to create keybindings: %w", err)
		}
		return cfg, nil
	}

	if _, err := toml.DecodeFile(keybindingsPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse keybindings: %w", err)
	}

	if cfg.Modifiers.Primary == "" {
		cfg.Modifiers.Primary = "alt"
	}
	if cfg.Modifiers.Secondary == "" {
		cfg.Modifiers.Secondary = "alt+shift"
	}

	if ok, warning := cfg.Validate(); !ok {
		return nil, fmt.Errorf("invalid keybindings: %s", warning)
	}

	return cfg, nil
}

func CreateDefaultKeybindings(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	keybindingsPath := filepath.Join(dataDir, "keybindings.toml")
	if FileExists(keybindingsPath) {
		return nil
	}

	if err := os.WriteFile(keybindingsPath, []byte(GenerateKeybindingsTemplate()), 0600); err != nil {
		return fmt.Errorf("failed to write keybindings: %w", err)
	}

	return nil
}

func GenerateKeybindingsTemplate() string {
	return `# Companion Keybindings Configuration
# Location: <data_directory>/keybindings.toml
# This file uses TOML format: https://toml.io

[modifiers]
primary = "alt"          # Default: alt (Options: alt, ctrl, meta, super)
secondary = "alt+shift"  # Default: alt+shift

# For tmux users (Alt may conflict):
#   primary = "ctrl"
#   secondary = "ctrl+shift"

[actions]
# Override single actions. Available actions:
#   quit, copy_last_reply, reset_history, random_trigger, help,
#   scroll_down, scroll_up, half_page_down, half_page_up, scroll_to_bottom
#
# Examples:
#   scroll_down = "ctrl+n"
#   scroll_up = "ctrl+p"
#   quit = "ctrl+shift+q"
`
}

func (kb *KeyBindingsConfig) Primary() string {
	if kb.Modifiers.Primary == "" {
		return "alt"
	}
	return kb.Modifiers.Primary
}

func (kb *KeyBindingsConfig) Secondary() string {
	if kb.Modifiers.Secondary == "" {
		return "alt+shift"
	}
	return kb.Modifiers.Secondary
}

// PrimaryKey builds a keybinding string with primary modifier
// Example: PrimaryKey("y") returns "alt+y"
func (kb *KeyBindingsConfig) PrimaryKey(key string) string {
	return kb.Primary() + "+" + key
}

// SecondaryKey builds a keybinding string with secondary modifier.
// A shifted single letter is reported the way terminals send it:
// SecondaryKey("j") returns "alt+J", not "alt+shift+j".
func (kb *KeyBindingsConfig) SecondaryKey(key string) string {
	secondary := kb.Secondary()

	if strings.Contains(strings.ToLower(secondary), "shift") && len(key) == 1 && key[0] >= 'a' && key[0] <= 'z' {
		var mods []string
		for _, part := range strings.Split(secondary, "+") {
			if strings.ToLower(part) != "shift" {
				mods = append(mods, part)
			}
		}
		if len(mods) > 0 {
			return strings.Join(mods, "+") + "+" + strings.ToUpper(key)
		}
		return strings.ToUpper(key)
	}

	return secondary + "+" + key
}

// GetActionKey returns the keybinding for a specific action, preferring the
// user override.
func (kb *KeyBindingsConfig) GetActionKey(action string) string {
	if override, ok := kb.Actions[action]; ok && override != "" {
		return override
	}

	if def, ok := actionRegistry[action]; ok {
		switch def.modifier {
		case "primary":
			return kb.PrimaryKey(def.key)
		case "secondary":
			return kb.SecondaryKey(def.key)
		case "none":
			return def.key
		}
	}

	return ""
}

// DisplayActionKey returns a display-friendly version of an action's keybinding
// Example: "alt+J" -> "Alt+Shift+J"
func (kb *KeyBindingsConfig) DisplayActionKey(action string) string {
	key := kb.GetActionKey(action)
	if key == "" {
		return ""
	}
	return capitalizeKeybinding(key)
}

func capitalizeKeybinding(key string) string {
	parts := strings.Split(key, "+")
	hasShift := false
	for _, p := range parts {
		if strings.ToLower(p) == "shift" {
			hasShift = true
		}
	}

	var result []string
	for i, part := range parts {
		if part == "" {
			continue
		}
		if len(part) == 1 && part[0] >= 'A' && part[0] <= 'Z' {
			if !hasShift && i > 0 {
				result = append(result, "Shift")
			}
			result = append(result, part)
			continue
		}
		result = append(result, strings.ToUpper(part[:1])+part[1:])
	}

	return strings.Join(result, "+")
}

// Validate reports whether the modifiers are usable, with a warning for
// combinations that work but may clash with the terminal.
func (kb *KeyBindingsConfig) Validate() (bool, string) {
	primary := kb.Primary()
	secondary := kb.Secondary()

	if primary == "shift" || secondary == "shift" {
		return false, "Shift alone conflicts with typing"
	}

	if strings.Contains(primary, "ctrl") || strings.Contains(secondary, "ctrl") {
		return true, "Warning: Ctrl may conflict with terminal shortcuts (Ctrl+C, Ctrl+Z, Ctrl+D)"
	}

	return true, ""
}
