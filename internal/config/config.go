package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/michaelbrown/mentor/internal/sandbox"
	"github.com/michaelbrown/mentor/internal/suggest"
)

type ProviderConfig struct {
	BaseURL string            `mapstructure:"base_url"`
	APIKey  string            `mapstructure:"api_key"`
	Models  map[string]string `mapstructure:"models"`
}

type SuggestConfig struct {
	Policy   string        `mapstructure:"policy"`
	Persona  string        `mapstructure:"persona"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Provider string        `mapstructure:"provider"`
}

type SandboxConfig struct {
	MaxDuration  time.Duration `mapstructure:"max_duration"` // 0 disables
	MaxCallStack int           `mapstructure:"max_call_stack"`
	Globals      []string      `mapstructure:"globals"`

	maxDurationSet bool
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

type Config struct {
	Providers       map[string]ProviderConfig `mapstructure:"providers"`
	DefaultProvider string                    `mapstructure:"default_provider"`
	Suggest         SuggestConfig             `mapstructure:"suggest"`
	Sandbox         SandboxConfig             `mapstructure:"sandbox"`
	Server          ServerConfig              `mapstructure:"server"`
	Storage         StorageConfig             `mapstructure:"storage"`
}

// Load reads mentor.yaml from the working directory or ~/.mentor. A missing
// file is not an error: every key has a default and MENTOR_* environment
// variables still apply.
func Load() (*Config, error) {
	v := newViper()
	v.SetConfigName("mentor")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.mentor")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	return decode(v)
}

// LoadFile reads the config at an explicit path. Unlike Load, the file must
// exist.
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("mentor")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := sandbox.DefaultPolicy()
	v.SetDefault("default_provider", "ollama")
	v.SetDefault("suggest.policy", string(suggest.PolicyAuto))
	v.SetDefault("suggest.timeout", 30*time.Second)
	v.SetDefault("sandbox.max_duration", def.MaxDuration)
	v.SetDefault("sandbox.max_call_stack", def.MaxCallStack)
	v.SetDefault("server.port", 8080)
	v.SetDefault("storage.db_path", filepath.Join(os.Getenv("HOME"), ".mentor", "mentor.db"))
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Sandbox.maxDurationSet = v.IsSet("sandbox.max_duration")

	// Expand environment variables in API keys
	for name, p := range cfg.Providers {
		p.APIKey = expandEnv(p.APIKey)
		cfg.Providers[name] = p
	}

	if _, err := suggest.ParsePolicy(cfg.Suggest.Policy); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// expandEnv resolves a value of the form ${VAR}; anything else is returned
// unchanged.
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	return s
}

// IsOllama returns true if this provider looks like an Ollama instance.
func (p ProviderConfig) IsOllama() bool {
	return strings.Contains(p.BaseURL, ":11434") || strings.Contains(strings.ToLower(p.BaseURL), "ollama")
}

// Model picks the model to request: override if set, then the provider's
// "suggest" model, then its "default".
func (p ProviderConfig) Model(override string) string {
	if override != "" {
		return override
	}
	if m := p.Models["suggest"]; m != "" {
		return m
	}
	return p.Models["default"]
}

// Provider returns the config for a named provider, falling back to the default.
func (c *Config) Provider(name string) (ProviderConfig, error) {
	if name == "" {
		name = c.Suggest.Provider
	}
	if name == "" {
		name = c.DefaultProvider
	}
	p, ok := c.Providers[name]
	if !ok {
		return ProviderConfig{}, fmt.Errorf("unknown provider: %s", name)
	}
	return p, nil
}

// SandboxPolicy overlays the sandbox section onto the default policy and
// validates the result. A max_duration of 0 read from config disables the
// time limit; on a Config built in code, 0 keeps the default.
func (c *Config) SandboxPolicy() (sandbox.Policy, error) {
	p := sandbox.DefaultPolicy()
	if len(c.Sandbox.Globals) > 0 {
		p.Globals = append([]string(nil), c.Sandbox.Globals...)
	}
	if c.Sandbox.maxDurationSet || c.Sandbox.MaxDuration != 0 {
		p.MaxDuration = c.Sandbox.MaxDuration
	}
	if c.Sandbox.MaxCallStack > 0 {
		p.MaxCallStack = c.Sandbox.MaxCallStack
	}
	if err := p.Validate(); err != nil {
		return sandbox.Policy{}, fmt.Errorf("sandbox policy: %w", err)
	}
	return p, nil
}
