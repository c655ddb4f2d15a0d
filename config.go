package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the bridge daemon configuration
type Config struct {
	// BindAddress is the address the HTTP server listens on (e.g. "0.0.0.0:8080")
	BindAddress string `yaml:"bind_address"`
	// DeviceAddress is the host:port of the WattBox (e.g. "192.168.1.50:23")
	DeviceAddress string `yaml:"device_address"`
	// ConnectionType selects the transport: "telnet" or "ssh"
	ConnectionType string `yaml:"connection_type"`
	// Username authenticates the Integration Protocol session
	Username string `yaml:"username"`
	// Password authenticates the Integration Protocol session
	Password string `yaml:"password"`
	// CommandTimeout is the per-command response deadline
	CommandTimeout time.Duration `yaml:"command_timeout"`
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string `yaml:"log_level"`
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.BindAddress = "0.0.0.0:8080"
		c.ConnectionType = "telnet"
		c.Username = "wattbox"
		c.Password = "wattbox"
		c.CommandTimeout = 10 * time.Second
		c.LogLevel = "info"
		return nil
	}
}

// WithFile loads configuration from a YAML file. An empty path is a
// no-op so the option can be chained unconditionally.
func WithFile(path string) ConfigOption {
	return func(c *Config) error {
		if path == "" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse config file %s: %w", path, err)
		}
		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
			c.BindAddress = addr
		}

		if device := os.Getenv("DEVICE_ADDRESS"); device != "" {
			c.DeviceAddress = device
		}

		if conn := os.Getenv("CONNECTION_TYPE"); conn != "" {
			c.ConnectionType = conn
		}

		if user := os.Getenv("WATTBOX_USERNAME"); user != "" {
			c.Username = user
		}

		if pass := os.Getenv("WATTBOX_PASSWORD"); pass != "" {
			c.Password = pass
		}

		if timeout := os.Getenv("COMMAND_TIMEOUT"); timeout != "" {
			if d, err := time.ParseDuration(timeout); err == nil {
				c.CommandTimeout = d
			}
		}

		if level := os.Getenv("LOG_LEVEL"); level != "" {
			c.LogLevel = level
		}

		return nil
	}
}

// WithFlags loads configuration from command-line flags
func WithFlags(fSet *flag.FlagSet) ConfigOption {
	return func(c *Config) error {
		fSet.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "bind-address":
				c.BindAddress = f.Value.String()
			case "device-address":
				c.DeviceAddress = f.Value.String()
			case "connection-type":
				c.ConnectionType = f.Value.String()
			case "username":
				c.Username = f.Value.String()
			case "password":
				c.Password = f.Value.String()
			case "command-timeout":
				if d, err := time.ParseDuration(f.Value.String()); err == nil {
					c.CommandTimeout = d
				}
			case "log-level":
				c.LogLevel = f.Value.String()
			}

		})
		return nil
	}

}
