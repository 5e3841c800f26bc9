// Package config loads server configuration from an optional YAML file, an
// optional .env file and the process environment, in that order of precedence
// (later wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Transport names accepted by Server.Transport
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config holds the complete application configuration
type Config struct {
	API     APIConfig     `yaml:"api"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig holds the Narrative API connection settings
type APIConfig struct {
	URL            string  `yaml:"url"`
	Token          string  `yaml:"token"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	RateLimit      float64 `yaml:"rate_limit"` // requests per second, 0 disables
}

// ServerConfig holds transport settings
type ServerConfig struct {
	Transport string `yaml:"transport"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Timeout returns the upstream request timeout
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// Defaults returns a configuration with every optional field populated
func Defaults() *Config {
	return &Config{
		API: APIConfig{
			TimeoutSeconds: 30,
		},
		Server: ServerConfig{
			Transport: TransportStdio,
			Host:      "127.0.0.1",
			Port:      3000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from configPath (optional), a .env file in the
// working directory (optional) and environment variable overrides, then
// validates the result.
func Load(configPath string) (*Config, error) {
	config := Defaults()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// A missing .env is the normal case outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := applyEnvOverrides(config, os.Getenv); err != nil {
		return nil, err
	}

	if err := Validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// FromEnv builds a configuration from defaults and the given lookup function
// only. It never touches the filesystem.
func FromEnv(getenv func(string) string) (*Config, error) {
	config := Defaults()
	if err := applyEnvOverrides(config, getenv); err != nil {
		return nil, err
	}
	if err := Validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

func applyEnvOverrides(config *Config, getenv func(string) string) error {
	if url := getenv("NARRATIVE_API_URL"); url != "" {
		config.API.URL = url
	}
	if token := getenv("NARRATIVE_API_TOKEN"); token != "" {
		config.API.Token = token
	}
	if timeout := getenv("NARRATIVE_API_TIMEOUT_SECONDS"); timeout != "" {
		n, err := strconv.Atoi(timeout)
		if err != nil {
			return fmt.Errorf("invalid NARRATIVE_API_TIMEOUT_SECONDS %q: %w", timeout, err)
		}
		config.API.TimeoutSeconds = n
	}
	if limit := getenv("NARRATIVE_API_RATE_LIMIT"); limit != "" {
		f, err := strconv.ParseFloat(limit, 64)
		if err != nil {
			return fmt.Errorf("invalid NARRATIVE_API_RATE_LIMIT %q: %w", limit, err)
		}
		config.API.RateLimit = f
	}

	if transport := getenv("MCP_TRANSPORT"); transport != "" {
		config.Server.Transport = strings.ToLower(transport)
	}
	if host := getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := getenv("SERVER_PORT"); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid SERVER_PORT %q: %w", port, err)
		}
		config.Server.Port = n
	}

	if level := getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	return nil
}

// Validate checks required settings. The server refuses to start, before any
// protocol handler is installed, when this fails.
func Validate(config *Config) error {
	if strings.TrimSpace(config.API.URL) == "" {
		return fmt.Errorf("NARRATIVE_API_URL environment variable is required")
	}
	if strings.TrimSpace(config.API.Token) == "" {
		return fmt.Errorf("NARRATIVE_API_TOKEN environment variable is required")
	}
	if config.API.TimeoutSeconds < 0 {
		return fmt.Errorf("api.timeout_seconds must not be negative")
	}
	if config.API.RateLimit < 0 {
		return fmt.Errorf("api.rate_limit must not be negative")
	}

	switch config.Server.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("unsupported transport %q (expected %s or %s)",
			config.Server.Transport, TransportStdio, TransportHTTP)
	}

	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", config.Server.Port)
	}
	return nil
}
