package ai

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds AI classifier connection parameters.
type Config struct {
	BaseURL           string  `toml:"base_url"`
	APIKey            string  `toml:"api_key"`
	Model             string  `toml:"model"`
	Timeout           string  `toml:"timeout"`
	RequestsPerMinute float64 `toml:"requests_per_minute"`
	MaxPromptChars    int     `toml:"max_prompt_chars"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	BaseURL           string
	APIKey            string
	Model             string
	Timeout           string
	RequestsPerMinute string
	MaxPromptChars    string
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.APIKey != "" {
		c.APIKey = overlay.APIKey
	}
	if overlay.Model != "" {
		c.Model = overlay.Model
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
	if overlay.RequestsPerMinute != 0 {
		c.RequestsPerMinute = overlay.RequestsPerMinute
	}
	if overlay.MaxPromptChars != 0 {
		c.MaxPromptChars = overlay.MaxPromptChars
	}
}

func (c *Config) loadDefaults() {
	if c.Timeout == "" {
		c.Timeout = "2m"
	}
	if c.RequestsPerMinute == 0 {
		c.RequestsPerMinute = 30
	}
	if c.MaxPromptChars == 0 {
		c.MaxPromptChars = 24000
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.BaseURL != "" {
		if v := os.Getenv(env.BaseURL); v != "" {
			c.BaseURL = v
		}
	}
	if env.APIKey != "" {
		if v := os.Getenv(env.APIKey); v != "" {
			c.APIKey = v
		}
	}
	if env.Model != "" {
		if v := os.Getenv(env.Model); v != "" {
			c.Model = v
		}
	}
	if env.Timeout != "" {
		if v := os.Getenv(env.Timeout); v != "" {
			c.Timeout = v
		}
	}
	if env.RequestsPerMinute != "" {
		if v := os.Getenv(env.RequestsPerMinute); v != "" {
			if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 {
				c.RequestsPerMinute = n
			}
		}
	}
	if env.MaxPromptChars != "" {
		if v := os.Getenv(env.MaxPromptChars); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.MaxPromptChars = n
			}
		}
	}
}

func (c *Config) validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url required")
	}
	if c.Model == "" {
		return fmt.Errorf("model required")
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	return nil
}
