package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all fielddx configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Conversation engine tuning
	Engine EngineConfig `yaml:"engine"`

	// Context store
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// EngineConfig tunes the diagnostic conversation engine.
type EngineConfig struct {
	// Feature toggles
	EnableClarificationSubflows bool `yaml:"enable_clarification_subflows"`
	EnableReplan                bool `yaml:"enable_replan"`
	EnableNonBlockingLabor      bool `yaml:"enable_non_blocking_labor"`

	// Loop guard limits
	MaxConsecutiveFallbacks int `yaml:"max_consecutive_fallbacks"` // fallbacks tolerated before a violation (default 1)
	MaxStepRepeatCount      int `yaml:"max_step_repeat_count"`     // times one step may be asked (default 2)
	TopicCooldownTurns      int `yaml:"topic_cooldown_turns"`      // soft cooldown window in actions (default 3)
	MaxActionHistory        int `yaml:"max_action_history"`        // bounded agent action history (default 10)
}

// StoreConfig configures context persistence.
type StoreConfig struct {
	// Backend selects "memory" or "sqlite".
	Backend string `yaml:"backend"`

	// DatabasePath is the sqlite file location when Backend is "sqlite".
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures structured logging output.
type LoggingConfig struct {
	Level      string `yaml:"level"` // debug, info, warn, error
	JSONFormat bool   `yaml:"json_format"`
}

// DefaultConfig returns the configuration used when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Name:    "fielddx",
		Version: "1.0.0",
		Engine: EngineConfig{
			EnableClarificationSubflows: true,
			EnableReplan:                true,
			EnableNonBlockingLabor:      true,
			MaxConsecutiveFallbacks:     1,
			MaxStepRepeatCount:          2,
			TopicCooldownTurns:          3,
			MaxActionHistory:            10,
		},
		Store: StoreConfig{
			Backend:      "memory",
			DatabasePath: ".fielddx/cases.db",
		},
		Logging: LoggingConfig{
			Level:      "info",
			JSONFormat: false,
		},
	}
}

// Load reads configuration from a YAML file, overlaying defaults.
// A missing file is not an error; defaults are returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.normalize()
	return cfg, nil
}

// normalize clamps zero or negative limits back to their defaults so that a
// partially filled config file cannot disable the loop guard outright.
func (c *Config) normalize() {
	def := DefaultConfig().Engine
	if c.Engine.MaxConsecutiveFallbacks < 0 {
		c.Engine.MaxConsecutiveFallbacks = def.MaxConsecutiveFallbacks
	}
	if c.Engine.MaxStepRepeatCount <= 0 {
		c.Engine.MaxStepRepeatCount = def.MaxStepRepeatCount
	}
	if c.Engine.TopicCooldownTurns <= 0 {
		c.Engine.TopicCooldownTurns = def.TopicCooldownTurns
	}
	if c.Engine.MaxActionHistory <= 0 {
		c.Engine.MaxActionHistory = def.MaxActionHistory
	}
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}
