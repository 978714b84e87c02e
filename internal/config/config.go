package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/fundsight/tally/internal/ai"
	"github.com/fundsight/tally/internal/extraction"
	"github.com/fundsight/tally/pkg/database"
	"github.com/fundsight/tally/pkg/openapi"
	"github.com/fundsight/tally/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvTallyEnv             = "TALLY_ENV"
	EnvTallyShutdownTimeout = "TALLY_SHUTDOWN_TIMEOUT"
	EnvTallyVersion         = "TALLY_VERSION"
)

var databaseEnv = &database.Env{
	Host:            "TALLY_DB_HOST",
	Port:            "TALLY_DB_PORT",
	Name:            "TALLY_DB_NAME",
	User:            "TALLY_DB_USER",
	Password:        "TALLY_DB_PASSWORD",
	SSLMode:         "TALLY_DB_SSL_MODE",
	MaxOpenConns:    "TALLY_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "TALLY_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "TALLY_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "TALLY_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "TALLY_STORAGE_CONTAINER_NAME",
	ConnectionString: "TALLY_STORAGE_CONNECTION_STRING",
}

var aiEnv = &ai.Env{
	BaseURL:           "TALLY_AI_BASE_URL",
	APIKey:            "TALLY_AI_API_KEY",
	Model:             "TALLY_AI_MODEL",
	Timeout:           "TALLY_AI_TIMEOUT",
	RequestsPerMinute: "TALLY_AI_REQUESTS_PER_MINUTE",
	MaxPromptChars:    "TALLY_AI_MAX_PROMPT_CHARS",
}

var openapiEnv = &openapi.ConfigEnv{
	Title:       "TALLY_OPENAPI_TITLE",
	Description: "TALLY_OPENAPI_DESCRIPTION",
}

var extractionEnv = &extraction.Env{
	Workers:        "TALLY_EXTRACTION_WORKERS",
	QueueCapacity:  "TALLY_EXTRACTION_QUEUE_CAPACITY",
	PeriodFallback: "TALLY_EXTRACTION_PERIOD_FALLBACK",
}

// Config is the root configuration for the Tally service.
type Config struct {
	Server          ServerConfig      `toml:"server"`
	Database        database.Config   `toml:"database"`
	Storage         storage.Config    `toml:"storage"`
	API             APIConfig         `toml:"api"`
	AI              ai.Config         `toml:"ai"`
	Extraction      extraction.Config `toml:"extraction"`
	OpenAPI         openapi.Config    `toml:"openapi"`
	ShutdownTimeout string            `toml:"shutdown_timeout"`
	Version         string            `toml:"version"`
}

// Env returns the TALLY_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvTallyEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.AI.Merge(&overlay.AI)
	c.Extraction.Merge(&overlay.Extraction)
	c.OpenAPI.Merge(&overlay.OpenAPI)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.AI.Finalize(aiEnv); err != nil {
		return fmt.Errorf("ai: %w", err)
	}
	if err := c.Extraction.Finalize(extractionEnv); err != nil {
		return fmt.Errorf("extraction: %w", err)
	}
	if err := c.OpenAPI.Finalize(openapiEnv); err != nil {
		return fmt.Errorf("openapi: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvTallyShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvTallyVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvTallyEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
