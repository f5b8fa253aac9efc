package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultBaseURL = "http://127.0.0.1:5000/api/chat"
	DefaultTimeout = 30 * time.Second
	DefaultLogDir  = "logs"
)

// Config holds application configuration
type Config struct {
	Backend   BackendConfig   `toml:"backend"`
	Chat      ChatConfig      `toml:"chat"`
	Logging   LoggingConfig   `toml:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Debug     bool            `toml:"debug"`
}

// BackendConfig locates the assistant service
type BackendConfig struct {
	BaseURL string        `toml:"base_url"`
	Timeout time.Duration `toml:"-"`

	// Raw string value for TOML decoding, e.g. "30s"
	TimeoutRaw string `toml:"timeout"`
}

// ChatConfig holds conversation texts and behaviour switches
type ChatConfig struct {
	Greeting string `toml:"greeting"`
	Apology  string `toml:"apology"`
	// ForwardSelections sends the intake answers with every free-text turn.
	ForwardSelections bool `toml:"forward_selections"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Dir   string `toml:"dir"`
	Level string `toml:"level"`
}

// TelemetryConfig toggles the OpenTelemetry file exporters
type TelemetryConfig struct {
	Enabled bool `toml:"enabled"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL: DefaultBaseURL,
			Timeout: DefaultTimeout,
		},
		Logging: LoggingConfig{
			Dir:   DefaultLogDir,
			Level: "info",
		},
		Telemetry: TelemetryConfig{Enabled: true},
	}
}

// Load reads a TOML config file on top of the defaults. ${VAR} references
// are expanded from the environment before decoding.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if _, err := toml.Decode(expandEnvVars(string(data)), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Backend.TimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.Backend.TimeoutRaw)
		if err != nil {
			return nil, fmt.Errorf("parsing backend.timeout: %w", err)
		}
		cfg.Backend.Timeout = d
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with environment variable values
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(name)
	})
}

// Validate checks that required fields are present and valid
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil {
		return fmt.Errorf("backend.base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("backend.base_url must use http or https scheme")
	}
	if u.Host == "" {
		return fmt.Errorf("backend.base_url must include a host")
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend.timeout must be positive")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}
	return nil
}
