package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// envPattern matches ${VAR} and ${VAR:-default} expressions.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// FileName is the configuration file name looked up in search paths.
const FileName = "agentchat.yaml"

// DefaultSource names the built-in configuration in logs and errors.
const DefaultSource = "<built-in>"

// defaultYAML is used when no configuration file exists. It reproduces
// the environment-driven setup: a local Ollama backend behind its
// OpenAI-compatible endpoint.
const defaultYAML = `version: "1"
sessions:
  max_sessions: ${MAX_SESSIONS:-100}
  timeout: ${SESSION_TIMEOUT:-3600}s
agent:
  system_prompt: "You are a helpful AI assistant."
modules:
  provider.openai_compatible:
    base_url: "${OLLAMA_HOST:-http://localhost:11435}/v1"
    model: "${OLLAMA_MODEL:-deepseek-r1:8b}"
  gateway.http:
    bind: "${AGENTCHAT_BIND:-0.0.0.0:5001}"
    cors_origins: "${CORS_ORIGINS:-http://localhost:3000,http://localhost:5173}"
`

// DefaultYAML returns the built-in configuration before expansion.
func DefaultYAML() string { return defaultYAML }

// Load reads a YAML configuration file, expands environment variables,
// parses it and applies defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(raw, path)
}

// LoadDefault returns the built-in configuration.
func LoadDefault() (*Config, error) {
	return Parse([]byte(defaultYAML), DefaultSource)
}

// Parse expands and decodes raw YAML. source names it in errors.
func Parse(raw []byte, source string) (*Config, error) {
	expanded, err := expandEnv(raw)
	if err != nil {
		return nil, fmt.Errorf("config: expanding variables in %s: %w", source, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", source, err)
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// Find returns the configuration file to load. An explicit path must
// exist. Otherwise the search paths are tried in order and "" is
// returned when none exists.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config: %w", err)
		}
		return explicit, nil
	}
	for _, p := range SearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

// FindAndLoad loads the file selected by Find, or the built-in default.
// It returns the configuration and where it came from.
func FindAndLoad(explicit string) (*Config, string, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, "", err
	}
	if path == "" {
		cfg, err := LoadDefault()
		return cfg, DefaultSource, err
	}
	cfg, err := Load(path)
	return cfg, path, err
}

// SearchPaths lists candidate configuration files, highest priority first.
func SearchPaths() []string {
	var paths []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "agentchat", FileName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "agentchat", FileName))
	}
	return append(paths, FileName)
}

// DefaultDataDir returns $XDG_DATA_HOME/agentchat, falling back to
// ~/.local/share/agentchat and then ./data.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "agentchat")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "agentchat")
	}
	return "data"
}

// expandEnv replaces ${VAR} and ${VAR:-default} patterns in raw YAML bytes.
// Every variable with neither a value nor a default is reported.
func expandEnv(raw []byte) ([]byte, error) {
	var errs []error

	result := envPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		subs := envPattern.FindSubmatch(match)
		name := string(subs[1])

		if value, ok := os.LookupEnv(name); ok {
			return []byte(value)
		}
		if subs[2] != nil {
			return subs[2]
		}
		errs = append(errs, fmt.Errorf("unresolved variable: %s", name))
		return match
	})

	return result, errors.Join(errs...)
}
