// Package config holds the application's root configuration.
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	instance *Config
	once     sync.Once
)

// Config is the root configuration structure for the entire application.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Semgrep   SemgrepConfig   `mapstructure:"semgrep"`
	Network   NetworkConfig   `mapstructure:"network"`
	Output    OutputConfig    `mapstructure:"output"`
}

// ColorConfig defines the color settings for different log levels.
// These are used for console output to make logs more readable.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" json:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" json:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" json:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" json:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" json:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" json:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" json:"fatal" yaml:"fatal"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" json:"level" yaml:"level"`
	Format      string      `mapstructure:"format" json:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" json:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" json:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" json:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" json:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" json:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" json:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" json:"colors" yaml:"colors"`
}

// ProvidersConfig holds the credentials and endpoints for every supported
// version-control backend. Configuring zero, one, or two tokens is legal; a
// backend without a token is simply never registered.
type ProvidersConfig struct {
	GitLab GitLabConfig `mapstructure:"gitlab"`
	GitHub GitHubConfig `mapstructure:"github"`
	Local  LocalConfig  `mapstructure:"local"`
}

// GitLabConfig holds settings for the GitLab-backed blame provider.
type GitLabConfig struct {
	// BaseURL points at the API root, e.g. https://gitlab.example.com/api/v4.
	// Empty means the public gitlab.com endpoint.
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token"`
}

// GitHubConfig holds settings for the GitHub-backed blame provider.
type GitHubConfig struct {
	// BaseURL overrides the REST endpoint (GitHub Enterprise). Empty means
	// the public api.github.com endpoint.
	BaseURL string `mapstructure:"base_url"`
	// GraphQLURL overrides the GraphQL endpoint used for blame queries.
	GraphQLURL string `mapstructure:"graphql_url"`
	Token      string `mapstructure:"token"`
}

// LocalConfig holds settings for the local on-disk git provider.
type LocalConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// EngineConfig holds settings for the enrichment pipeline.
type EngineConfig struct {
	// Concurrency caps the number of blame lookups in flight.
	Concurrency int `mapstructure:"concurrency"`
	// LookupTimeout bounds a single blame lookup; on expiry the entry
	// degrades to unknown blame.
	LookupTimeout time.Duration `mapstructure:"lookup_timeout"`
}

// SemgrepConfig holds settings for the external semgrep invocation.
type SemgrepConfig struct {
	Binary    string        `mapstructure:"binary"`
	Timeout   time.Duration `mapstructure:"timeout"`
	ExtraArgs []string      `mapstructure:"extra_args"`
}

// NetworkConfig holds settings for outbound HTTP requests.
type NetworkConfig struct {
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	IgnoreTLSErrors bool          `mapstructure:"ignore_tls_errors"`
	ProxyURL        string        `mapstructure:"proxy_url"`
}

// OutputConfig holds settings for report output (populated by CLI flags or
// the config file).
type OutputConfig struct {
	// Path is the report destination; "-" means stdout.
	Path   string `mapstructure:"path"`
	Pretty bool   `mapstructure:"pretty"`
}

// SetDefaults registers default values so the app can run with a minimal
// config file (or none at all).
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "sast-blame")
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "red")

	v.SetDefault("providers.local.enabled", true)

	v.SetDefault("engine.concurrency", 4)
	v.SetDefault("engine.lookup_timeout", 15*time.Second)

	v.SetDefault("semgrep.binary", "semgrep")
	v.SetDefault("semgrep.timeout", 5*time.Minute)

	v.SetDefault("network.request_timeout", 30*time.Second)

	v.SetDefault("output.path", "-")
	v.SetDefault("output.pretty", true)
}

// Validate checks the configuration for values that would otherwise only
// fail deep inside a run.
func (c *Config) Validate() error {
	if c.Engine.Concurrency < 1 {
		return fmt.Errorf("engine.concurrency must be at least 1, got %d", c.Engine.Concurrency)
	}
	if c.Engine.LookupTimeout <= 0 {
		return fmt.Errorf("engine.lookup_timeout must be positive, got %s", c.Engine.LookupTimeout)
	}
	if strings.TrimSpace(c.Semgrep.Binary) == "" {
		return fmt.Errorf("semgrep.binary must not be empty")
	}
	if c.Semgrep.Timeout <= 0 {
		return fmt.Errorf("semgrep.timeout must be positive, got %s", c.Semgrep.Timeout)
	}
	return nil
}

// Load initializes the configuration singleton from Viper.
func Load(v *viper.Viper) error {
	var loadErr error
	once.Do(func() {
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			loadErr = fmt.Errorf("error unmarshaling config: %w", err)
			return
		}
		instance = &cfg
	})
	return loadErr
}

// Set stores an already-built configuration as the singleton, bypassing
// the once guard. Intended for tests.
func Set(cfg *Config) {
	instance = cfg
}

// Get returns the loaded configuration instance.
func Get() *Config {
	if instance == nil {
		panic("Configuration not initialized. Call config.Load() in the root command.")
	}
	return instance
}
