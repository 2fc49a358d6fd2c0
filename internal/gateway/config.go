package gateway

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds HTTP gateway configuration.
type Config struct {
	Bind        string     `yaml:"bind"`
	CORSOrigins StringList `yaml:"cors_origins"`
	Auth        AuthConfig `yaml:"auth"`

	// ChatRatePerMin bounds chat turns per client IP. Zero is unlimited.
	ChatRatePerMin int `yaml:"chat_rate_per_min"`
	ChatBurst      int `yaml:"chat_burst"`

	// TrustProxy takes the client IP from X-Forwarded-For / X-Real-IP.
	TrustProxy bool `yaml:"trust_proxy"`

	// MaxBodyBytes bounds request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	ReadTimeout     time.Duration `yaml:"read_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// defaults fills zero values.
func (c *Config) defaults() {
	if c.Bind == "" {
		c.Bind = "0.0.0.0:5001"
	}
	if c.CORSOrigins == nil {
		c.CORSOrigins = StringList{"http://localhost:3000", "http://localhost:5173"}
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 1 << 20
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 2 * time.Minute
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

func (c *Config) validate() error {
	var errs []error
	if _, err := net.ResolveTCPAddr("tcp", c.Bind); err != nil {
		errs = append(errs, fmt.Errorf("gateway: invalid bind address %q: %w", c.Bind, err))
	}
	if c.ChatRatePerMin < 0 || c.ChatBurst < 0 {
		errs = append(errs, errors.New("gateway: chat rate limits must be non-negative"))
	}
	if (c.Auth.BasicUser == "") != (c.Auth.BasicPass == "") {
		errs = append(errs, errors.New("gateway: auth.basic_user and auth.basic_pass must be set together"))
	}
	return errors.Join(errs...)
}

// AuthConfig configures authentication of the API.
type AuthConfig struct {
	BearerToken string `yaml:"bearer_token"`
	BasicUser   string `yaml:"basic_user"`
	BasicPass   string `yaml:"basic_pass"`
}

// IsConfigured returns true if any auth method is configured.
func (a AuthConfig) IsConfigured() bool {
	return a.BearerToken != "" || (a.BasicUser != "" && a.BasicPass != "")
}

// StringList decodes from a YAML sequence or from a comma-separated scalar.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*l = StringList{}
		for part := range strings.SplitSeq(node.Value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				*l = append(*l, part)
			}
		}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil
	default:
		return fmt.Errorf("gateway: expected a list or a comma-separated string, got %v", node.Tag)
	}
}
