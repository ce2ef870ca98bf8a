// Package config loads client settings from a TOML or YAML file and the
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/tapsdmc/fdsnclient/internal/client"
	"github.com/tapsdmc/fdsnclient/internal/telemetry"
)

const serviceName = "fdsn"

// Config holds the settings of the command line client.
type Config struct {
	BaseURL         string            `toml:"base_url" yaml:"base_url"`
	MajorVersions   map[string]int    `toml:"major_versions" yaml:"major_versions"`
	ServiceMappings map[string]string `toml:"service_mappings" yaml:"service_mappings"`
	Username        string            `toml:"user" yaml:"user"`
	Password        string            `toml:"password" yaml:"password"`
	AccessToken     string            `toml:"access_token" yaml:"access_token"`
	RefreshToken    string            `toml:"refresh_token" yaml:"refresh_token"`
	UserAgent       string            `toml:"user_agent" yaml:"user_agent"`
	Debug           bool              `toml:"debug" yaml:"debug"`

	// TimeoutSeconds bounds the wait for the first response byte.
	TimeoutSeconds float64 `toml:"timeout" yaml:"timeout"`

	Telemetry Telemetry `toml:"telemetry" yaml:"telemetry"`
}

// Telemetry holds OpenTelemetry export settings.
type Telemetry struct {
	Enabled      bool    `toml:"enabled" yaml:"enabled"`
	OTLPEndpoint string  `toml:"otlp_endpoint" yaml:"otlp_endpoint"`
	Environment  string  `toml:"environment" yaml:"environment"`
	Insecure     bool    `toml:"insecure" yaml:"insecure"`
	SampleRatio  float64 `toml:"sample_ratio" yaml:"sample_ratio"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		BaseURL:        client.DefaultBaseURL,
		TimeoutSeconds: client.DefaultTimeout.Seconds(),
		Telemetry: Telemetry{
			OTLPEndpoint: "localhost:4317",
			Environment:  "development",
			Insecure:     true,
		},
	}
}

// Load reads the config file at path, if any, over the defaults and then
// applies environment overrides. The format follows the file extension:
// .toml, .yaml or .yml. YAML files may reference environment variables as
// ${NAME}.
func Load(path string) (Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		resolved, err := expandPath(path)
		if err != nil {
			return Config{}, err
		}
		data, err := os.ReadFile(resolved)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}

		switch ext := strings.ToLower(filepath.Ext(resolved)); ext {
		case ".toml":
			err = toml.Unmarshal(data, &cfg)
		case ".yaml", ".yml":
			err = yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg)
		default:
			return Config{}, fmt.Errorf("unsupported config format %q", ext)
		}
		if err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides settings from FDSN_* and OTEL_* variables.
func (c *Config) applyEnv() error {
	c.BaseURL = getEnvOrDefault("FDSN_BASE_URL", c.BaseURL)
	c.Username = getEnvOrDefault("FDSN_USER", c.Username)
	c.Password = getEnvOrDefault("FDSN_PASSWORD", c.Password)
	c.AccessToken = getEnvOrDefault("FDSN_ACCESS_TOKEN", c.AccessToken)
	c.RefreshToken = getEnvOrDefault("FDSN_REFRESH_TOKEN", c.RefreshToken)
	c.UserAgent = getEnvOrDefault("FDSN_USER_AGENT", c.UserAgent)
	c.Telemetry.OTLPEndpoint = getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", c.Telemetry.OTLPEndpoint)
	c.Telemetry.Environment = getEnvOrDefault("APP_ENV", c.Telemetry.Environment)

	if v := os.Getenv("FDSN_DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("FDSN_DEBUG: %w", err)
		}
		c.Debug = debug
	}
	if v := os.Getenv("FDSN_TIMEOUT"); v != "" {
		timeout, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("FDSN_TIMEOUT: %w", err)
		}
		c.TimeoutSeconds = timeout
	}
	if v := os.Getenv("OTEL_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "true"
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_INSECURE"); v != "" {
		c.Telemetry.Insecure = v == "true"
	}
	return nil
}

// Timeout returns the request timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds * float64(time.Second))
}

// Client returns the client construction parameters.
func (c Config) Client() client.Config {
	return client.Config{
		BaseURL:         c.BaseURL,
		MajorVersions:   c.MajorVersions,
		Username:        c.Username,
		Password:        c.Password,
		AccessToken:     c.AccessToken,
		RefreshToken:    c.RefreshToken,
		UserAgent:       c.UserAgent,
		Debug:           c.Debug,
		Timeout:         c.Timeout(),
		ServiceMappings: c.ServiceMappings,
	}
}

// TelemetryConfig returns the telemetry setup for the given build version.
func (c Config) TelemetryConfig(version string) telemetry.Config {
	return telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    c.Telemetry.Environment,
		OTLPEndpoint:   c.Telemetry.OTLPEndpoint,
		Enabled:        c.Telemetry.Enabled,
		Insecure:       c.Telemetry.Insecure,
		SampleRatio:    c.Telemetry.SampleRatio,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
