// Package config loads provider settings from a YAML or JSONC file, a .env
// file and the environment.
//
// A *Config is the registry's ConfigSource and produces the fallback
// configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	llmprovider "github.com/starhound/null-llm-go"
	"github.com/starhound/null-llm-go/fallback"
)

// DefaultProvider is the active provider when nothing is configured.
const DefaultProvider = "ollama"

// Settings is the file format. YAML and JSON use the same keys.
type Settings struct {
	Provider     string                      `yaml:"provider" json:"provider"`
	SystemPrompt string                      `yaml:"system_prompt" json:"system_prompt"`
	ModelsFile   string                      `yaml:"models_file" json:"models_file"`
	Providers    map[string]ProviderSettings `yaml:"providers" json:"providers"`
	Generation   GenerationSettings          `yaml:"generation" json:"generation"`
	Fallback     FallbackSettings            `yaml:"fallback" json:"fallback"`
}

// ProviderSettings holds one provider's credentials and defaults.
type ProviderSettings struct {
	APIKey      string `yaml:"api_key" json:"api_key"`
	Endpoint    string `yaml:"endpoint" json:"endpoint"`
	Region      string `yaml:"region" json:"region"`
	Model       string `yaml:"model" json:"model"`
	APIVersion  string `yaml:"api_version" json:"api_version"`
	ProjectID   string `yaml:"project_id" json:"project_id"`
	Location    string `yaml:"location" json:"location"`
	AccountID   string `yaml:"account_id" json:"account_id"`
	AccessToken string `yaml:"access_token" json:"access_token"`
}

// GenerationSettings apply to every provider.
type GenerationSettings struct {
	MaxTokens      *int     `yaml:"max_tokens" json:"max_tokens"`
	Temperature    *float64 `yaml:"temperature" json:"temperature"`
	TopP           *float64 `yaml:"top_p" json:"top_p"`
	Stop           []string `yaml:"stop" json:"stop"`
	ConnectTimeout Duration `yaml:"connect_timeout" json:"connect_timeout"`
	ReadTimeout    Duration `yaml:"read_timeout" json:"read_timeout"`
}

// FallbackSettings mirror fallback.Config. Zero values take its defaults.
type FallbackSettings struct {
	Enabled           *bool    `yaml:"enabled" json:"enabled"`
	Providers         []string `yaml:"providers" json:"providers"`
	MaxRetries        int      `yaml:"max_retries" json:"max_retries"`
	InitialBackoff    Duration `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff        Duration `yaml:"max_backoff" json:"max_backoff"`
	BackoffMultiplier float64  `yaml:"backoff_multiplier" json:"backoff_multiplier"`
}

// Config is the loaded configuration. It is safe for concurrent use.
type Config struct {
	path string

	mu       sync.RWMutex
	settings Settings
}

// Parse decodes settings. JSON is detected by a leading '{' and may carry
// comments and trailing commas; anything else is YAML.
func Parse(data []byte) (Settings, error) {
	var s Settings
	trimmed := strings.TrimSpace(string(jsonc.ToJSON(data)))
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal([]byte(trimmed), &s); err != nil {
			return Settings{}, fmt.Errorf("parsing JSON config: %w", err)
		}
		return s, nil
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parsing YAML config: %w", err)
	}
	return s, nil
}

// DefaultPath returns the settings file location under the user config
// directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "null-llm", "config.yaml")
}

// Load reads the settings file at path (DefaultPath when empty), then
// applies the .env file and environment overrides. A missing file is not
// an error.
func Load(path string, opts ...LoadOption) (*Config, error) {
	o := loadOptions{lookup: os.LookupEnv, dotenv: true}
	for _, opt := range opts {
		opt(&o)
	}

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	var s Settings
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if s, err = Parse(data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if o.dotenv {
		if err := LoadDotEnv(o.dotenvDir); err != nil {
			return nil, err
		}
	}
	applyEnv(&s, o.lookup)

	c := &Config{path: path, settings: s}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// New wraps settings that were built in code.
func New(s Settings) *Config {
	return &Config{settings: s}
}

// LoadOption configures Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	lookup    func(string) (string, bool)
	dotenv    bool
	dotenvDir string
}

// WithLookupEnv replaces os.LookupEnv for environment overrides.
func WithLookupEnv(lookup func(string) (string, bool)) LoadOption {
	return func(o *loadOptions) { o.lookup = lookup }
}

// WithoutDotEnv skips the .env search.
func WithoutDotEnv() LoadOption {
	return func(o *loadOptions) { o.dotenv = false }
}

// WithDotEnvDir starts the .env search at dir instead of the working
// directory.
func WithDotEnvDir(dir string) LoadOption {
	return func(o *loadOptions) { o.dotenvDir = dir }
}

// Validate checks the generation options and fallback settings.
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.optionsLocked().Validate(); err != nil {
		return fmt.Errorf("generation: %w", err)
	}
	f := c.settings.Fallback
	if f.MaxRetries < 0 {
		return fmt.Errorf("fallback: max_retries must not be negative, got %d", f.MaxRetries)
	}
	if f.BackoffMultiplier != 0 && f.BackoffMultiplier < 1 {
		return fmt.Errorf("fallback: backoff_multiplier must be at least 1, got %g", f.BackoffMultiplier)
	}
	return nil
}

// Path returns the file the configuration was read from.
func (c *Config) Path() string {
	return c.path
}

// Settings returns a copy of the current settings.
func (c *Config) Settings() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.settings
	s.Providers = make(map[string]ProviderSettings, len(c.settings.Providers))
	for k, v := range c.settings.Providers {
		s.Providers[k] = v
	}
	return s
}

// ActiveProvider returns the configured provider, or DefaultProvider.
func (c *Config) ActiveProvider() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return llmprovider.GetOrDefault(c.settings.Provider, DefaultProvider)
}

// SetActiveProvider changes the active provider.
func (c *Config) SetActiveProvider(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings.Provider = name
}

// SetModel changes the model of one provider.
func (c *Config) SetModel(name, model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.settings.Providers == nil {
		c.settings.Providers = make(map[string]ProviderSettings)
	}
	p := c.settings.Providers[name]
	p.Model = model
	c.settings.Providers[name] = p
}

// SystemPrompt returns the configured system prompt, possibly empty.
func (c *Config) SystemPrompt() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings.SystemPrompt
}

// ProviderConfig builds the configuration bag for name. A configured access
// token becomes a static TokenSource.
func (c *Config) ProviderConfig(name string) llmprovider.ProviderConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p := c.settings.Providers[name]
	cfg := llmprovider.ProviderConfig{
		Name:       llmprovider.ProviderID(name),
		APIKey:     p.APIKey,
		Endpoint:   p.Endpoint,
		Region:     p.Region,
		Model:      p.Model,
		APIVersion: p.APIVersion,
		ProjectID:  p.ProjectID,
		Location:   p.Location,
		AccountID:  p.AccountID,
		Options:    c.optionsLocked(),
	}
	if p.AccessToken != "" {
		cfg.Tokens = llmprovider.StaticToken(p.AccessToken)
	}
	return cfg
}

func (c *Config) optionsLocked() *llmprovider.Options {
	g := c.settings.Generation
	o := &llmprovider.Options{
		MaxTokens:   g.MaxTokens,
		Temperature: g.Temperature,
		TopP:        g.TopP,
		Stop:        g.Stop,
	}
	if g.ConnectTimeout > 0 {
		o.ConnectTimeout = llmprovider.Duration(g.ConnectTimeout.Std())
	}
	if g.ReadTimeout > 0 {
		o.ReadTimeout = llmprovider.Duration(g.ReadTimeout.Std())
	}
	return o
}

// Fallback returns the orchestrator configuration.
func (c *Config) Fallback() fallback.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	f := c.settings.Fallback
	cfg := fallback.DefaultConfig()
	cfg.Providers = append([]string(nil), f.Providers...)
	if f.Enabled != nil {
		cfg.Enabled = *f.Enabled
	}
	if f.MaxRetries > 0 {
		cfg.MaxRetries = f.MaxRetries
	}
	if f.InitialBackoff > 0 {
		cfg.InitialBackoff = f.InitialBackoff.Std()
	}
	if f.MaxBackoff > 0 {
		cfg.MaxBackoff = f.MaxBackoff.Std()
	}
	if f.BackoffMultiplier > 0 {
		cfg.BackoffMultiplier = f.BackoffMultiplier
	}
	return cfg
}
