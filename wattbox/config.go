package wattbox

import (
	"log/slog"
	"time"

	"github.com/bballdavis/wattbox-go/protocol"
)

// Config holds the settings for one Client. Build one with
// NewConfigBuilder; the zero value is not usable.
type Config struct {
	dialer          Dialer
	username        string
	password        string
	commandTimeout  time.Duration
	loginTimeout    time.Duration
	usernamePrompts []string
	passwordPrompts []string
	eventBuffer     int
	logger          *slog.Logger
}

func (c *Config) validate() error {
	if c.dialer == nil {
		return ErrNoDialer
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.username == "" {
		c.username = "wattbox"
	}
	if c.password == "" {
		c.password = "wattbox"
	}
	if c.commandTimeout == 0 {
		c.commandTimeout = 10 * time.Second
	}
	if c.loginTimeout == 0 {
		c.loginTimeout = 30 * time.Second
	}
	if c.usernamePrompts == nil {
		c.usernamePrompts = protocol.DefaultUsernamePrompts
	}
	if c.passwordPrompts == nil {
		c.passwordPrompts = protocol.DefaultPasswordPrompts
	}
	if c.eventBuffer == 0 {
		c.eventBuffer = 100
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
}

// ConfigBuilder assembles a Config step by step.
type ConfigBuilder struct {
	config Config
}

// NewConfigBuilder returns a builder preloaded with nothing; unset
// options take their defaults at Build time.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

// WithDialer sets how the device connection is established. Required.
func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.dialer = d
	return b
}

// WithCredentials sets the username and password sent during the login
// handshake. Defaults to the factory wattbox/wattbox pair.
func (b *ConfigBuilder) WithCredentials(username, password string) *ConfigBuilder {
	b.config.username = username
	b.config.password = password
	return b
}

// WithCommandTimeout sets the per-command response deadline.
func (b *ConfigBuilder) WithCommandTimeout(d time.Duration) *ConfigBuilder {
	b.config.commandTimeout = d
	return b
}

// WithLoginTimeout bounds the whole login handshake, banner reading
// included.
func (b *ConfigBuilder) WithLoginTimeout(d time.Duration) *ConfigBuilder {
	b.config.loginTimeout = d
	return b
}

// WithUsernamePrompts overrides the substrings recognized as the
// username prompt. Prompt wording varies across firmware revisions.
func (b *ConfigBuilder) WithUsernamePrompts(prompts ...string) *ConfigBuilder {
	b.config.usernamePrompts = prompts
	return b
}

// WithPasswordPrompts overrides the substrings recognized as the
// password prompt.
func (b *ConfigBuilder) WithPasswordPrompts(prompts ...string) *ConfigBuilder {
	b.config.passwordPrompts = prompts
	return b
}

// WithEventBuffer sets the capacity of the unsolicited-message channel.
func (b *ConfigBuilder) WithEventBuffer(n int) *ConfigBuilder {
	b.config.eventBuffer = n
	return b
}

// WithLogger installs a structured logger for session events. Defaults
// to a discarding logger.
func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.logger = l
	return b
}

// Build validates the configuration and fills in defaults.
func (b *ConfigBuilder) Build() (Config, error) {
	config := b.config
	if err := config.validate(); err != nil {
		return Config{}, err
	}
	config.setDefaults()
	return config, nil
}
