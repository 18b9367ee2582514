// Package config loads vizgen settings from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/vizgen/internal/llm"
	"github.com/roach88/vizgen/internal/pipeline"
	"github.com/roach88/vizgen/internal/render"
)

// Config holds all vizgen settings.
type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Render   RenderConfig   `yaml:"render"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	// DB is the sqlite run history path. Empty disables history.
	DB string `yaml:"db"`
	// DebugDir receives a copy of every generated scene source.
	DebugDir string `yaml:"debug_dir"`
}

// LLMConfig configures the generative text service.
type LLMConfig struct {
	Provider     string        `yaml:"provider"` // openai, gemini
	APIKey       string        `yaml:"api_key"`
	Model        string        `yaml:"model"`
	CodegenModel string        `yaml:"codegen_model"`
	BaseURL      string        `yaml:"base_url"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
}

// PipelineConfig bounds the generation loops.
type PipelineConfig struct {
	FeedbackRetries       int     `yaml:"feedback_retries"`
	EscalationTemperature float64 `yaml:"escalation_temperature"`
	CodegenAttempts       int     `yaml:"codegen_attempts"`
}

// RenderConfig configures the engine and the render controller.
type RenderConfig struct {
	Bin             string        `yaml:"bin"`
	Attempts        int           `yaml:"attempts"`
	Timeout         time.Duration `yaml:"timeout"`
	FallbackTimeout time.Duration `yaml:"fallback_timeout"`
	Scene           string        `yaml:"scene"`
	Format          string        `yaml:"format"`
	Quality         string        `yaml:"quality"`
	MediaDir        string        `yaml:"media_dir"`
	ScratchDir      string        `yaml:"scratch_dir"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, console
}

// ValidProviders lists the supported generative service providers.
var ValidProviders = []string{llm.ProviderOpenAI, llm.ProviderGemini}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:     llm.ProviderOpenAI,
			Model:        "gpt-4.1-mini",
			CodegenModel: "gpt-4o",
			Timeout:      120 * time.Second,
			MaxRetries:   3,
		},
		Pipeline: PipelineConfig{
			FeedbackRetries:       2,
			EscalationTemperature: 0.3,
			CodegenAttempts:       3,
		},
		Render: RenderConfig{
			Bin:             "manim",
			Attempts:        3,
			Timeout:         180 * time.Second,
			FallbackTimeout: 60 * time.Second,
			Scene:           "AlgorithmScene",
			Format:          "mp4",
			Quality:         "l",
			MediaDir:        "media",
		},
		Server:  ServerConfig{Addr: ":8080"},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides. The provider is
// settled first so the matching API key variable is picked.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("VIZGEN_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("VIZGEN_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("VIZGEN_LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}

	switch c.LLM.Provider {
	case llm.ProviderGemini:
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			c.LLM.APIKey = key
		}
	default:
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			c.LLM.APIKey = key
		}
	}

	if v := os.Getenv("VIZGEN_MANIM_BIN"); v != "" {
		c.Render.Bin = v
	}
	if v := os.Getenv("VIZGEN_MEDIA_DIR"); v != "" {
		c.Render.MediaDir = v
	}
	if v := os.Getenv("VIZGEN_DB"); v != "" {
		c.DB = v
	}
}

// Validate rejects settings the pipeline cannot run with. It does not
// require an API key; commands that call the service check that.
func (c *Config) Validate() error {
	var errs []error

	valid := false
	for _, p := range ValidProviders {
		if c.LLM.Provider == p {
			valid = true
			break
		}
	}
	if !valid {
		errs = append(errs, fmt.Errorf("invalid LLM provider: %q (valid: %v)", c.LLM.Provider, ValidProviders))
	}

	positive := []struct {
		name string
		ok   bool
	}{
		{"llm.timeout", c.LLM.Timeout > 0},
		{"pipeline.codegen_attempts", c.Pipeline.CodegenAttempts > 0},
		{"render.attempts", c.Render.Attempts > 0},
		{"render.timeout", c.Render.Timeout > 0},
		{"render.fallback_timeout", c.Render.FallbackTimeout > 0},
	}
	for _, p := range positive {
		if !p.ok {
			errs = append(errs, fmt.Errorf("%s must be positive", p.name))
		}
	}
	if c.Pipeline.FeedbackRetries < 0 {
		errs = append(errs, errors.New("pipeline.feedback_retries must not be negative"))
	}
	if c.LLM.MaxRetries < 0 {
		errs = append(errs, errors.New("llm.max_retries must not be negative"))
	}
	if t := c.Pipeline.EscalationTemperature; t < 0 || t > 2 {
		errs = append(errs, fmt.Errorf("pipeline.escalation_temperature %.2f out of range [0, 2]", t))
	}
	if c.Render.Scene == "" {
		errs = append(errs, errors.New("render.scene must be set"))
	}

	return errors.Join(errs...)
}

// RequireAPIKey reports a missing key for the configured provider.
func (c *Config) RequireAPIKey() error {
	if c.LLM.APIKey != "" {
		return nil
	}
	env := "OPENAI_API_KEY"
	if c.LLM.Provider == llm.ProviderGemini {
		env = "GEMINI_API_KEY"
	}
	return fmt.Errorf("LLM API key not configured (set %s or llm.api_key)", env)
}

// LLMSettings converts to the llm package's client config.
func (c *Config) LLMSettings() llm.Config {
	return llm.Config{
		Provider:   c.LLM.Provider,
		Model:      c.LLM.Model,
		BaseURL:    c.LLM.BaseURL,
		APIKey:     c.LLM.APIKey,
		Timeout:    c.LLM.Timeout,
		MaxRetries: c.LLM.MaxRetries,
	}
}

// PipelineSettings converts to the coordinator's config.
func (c *Config) PipelineSettings() pipeline.Config {
	return pipeline.Config{
		FeedbackRetries:       c.Pipeline.FeedbackRetries,
		EscalationTemperature: c.Pipeline.EscalationTemperature,
		CodegenAttempts:       c.Pipeline.CodegenAttempts,
		Model:                 c.LLM.Model,
		CodegenModel:          c.LLM.CodegenModel,
		DebugDir:              c.DebugDir,
	}
}

// RenderSettings converts to the render controller's config.
func (c *Config) RenderSettings() render.Config {
	return render.Config{
		Attempts:        c.Render.Attempts,
		Timeout:         c.Render.Timeout,
		FallbackTimeout: c.Render.FallbackTimeout,
		ScratchDir:      c.Render.ScratchDir,
		MediaDir:        c.Render.MediaDir,
		Scene:           c.Render.Scene,
		Format:          c.Render.Format,
		Quality:         c.Render.Quality,
	}
}
