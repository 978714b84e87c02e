package extraction

import (
	"os"
	"strconv"
)

// Config holds extraction pipeline settings.
type Config struct {
	Workers        int  `toml:"workers"`
	QueueCapacity  int  `toml:"queue_capacity"`
	PeriodFallback bool `toml:"period_fallback"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Workers        string
	QueueCapacity  string
	PeriodFallback string
}

// Finalize applies defaults and environment variable overrides.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return nil
}

// Merge overwrites fields from overlay. The boolean field always applies;
// int fields only apply when non-zero.
func (c *Config) Merge(overlay *Config) {
	c.PeriodFallback = overlay.PeriodFallback

	if overlay.Workers != 0 {
		c.Workers = overlay.Workers
	}
	if overlay.QueueCapacity != 0 {
		c.QueueCapacity = overlay.QueueCapacity
	}
}

func (c *Config) loadDefaults() {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = 64
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Workers != "" {
		if v := os.Getenv(env.Workers); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.Workers = n
			}
		}
	}
	if env.QueueCapacity != "" {
		if v := os.Getenv(env.QueueCapacity); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.QueueCapacity = n
			}
		}
	}
	if env.PeriodFallback != "" {
		if v := os.Getenv(env.PeriodFallback); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.PeriodFallback = b
			}
		}
	}
}
