package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned by Find when no configuration file exists.
var ErrNotFound = errors.New("config: no configuration file found")

// envPattern matches ${VAR} and ${VAR:-default} expressions.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// Load reads a YAML configuration file, expands environment variables,
// parses it and applies defaults and the PORT override. It does not validate.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// ReadExpanded returns the file at path with environment variables expanded
// but otherwise untouched.
func ReadExpanded(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	expanded, err := expandEnv(raw)
	if err != nil {
		return nil, fmt.Errorf("config: %s: expanding variables: %w", path, err)
	}
	return expanded, nil
}

// Parse is Load without the file read.
func Parse(raw []byte) (*Config, error) {
	expanded, err := expandEnv(raw)
	if err != nil {
		return nil, fmt.Errorf("expanding variables: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}

	cfg.Defaults()
	if err := applyPort(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPort replaces the gateway port with $PORT when set, as container
// platforms expect.
func applyPort(cfg *Config) error {
	port, ok := os.LookupEnv("PORT")
	if !ok || port == "" {
		return nil
	}
	host, _, err := net.SplitHostPort(cfg.Gateway.Bind)
	if err != nil {
		return fmt.Errorf("gateway.bind %q: %w", cfg.Gateway.Bind, err)
	}
	cfg.Gateway.Bind = net.JoinHostPort(host, port)
	return nil
}

// expandEnv replaces ${VAR} and ${VAR:-default} patterns in raw YAML bytes.
// Returns an error listing all unresolved variables (no default, no env value).
func expandEnv(raw []byte) ([]byte, error) {
	var errs []error

	result := envPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		subs := envPattern.FindSubmatch(match)
		name := string(subs[1])
		hasDefault := len(subs) > 2 && subs[2] != nil

		if value, ok := os.LookupEnv(name); ok {
			return []byte(value)
		}
		if hasDefault {
			return subs[2]
		}

		errs = append(errs, fmt.Errorf("unresolved variable: %s", name))
		return match
	})

	return result, errors.Join(errs...)
}

// SearchPaths returns the candidate configuration files in lookup order:
// $XDG_CONFIG_HOME/taskmaster/taskmaster.yaml (or ~/.config/...), then
// ./taskmaster.yaml.
func SearchPaths() []string {
	var candidates []string
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "taskmaster", "taskmaster.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "taskmaster", "taskmaster.yaml"))
	}
	return append(candidates, "taskmaster.yaml")
}

// Find returns explicit when set, otherwise the first existing file from
// SearchPaths.
func Find(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	candidates := SearchPaths()
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w (searched: %v)", ErrNotFound, candidates)
}
