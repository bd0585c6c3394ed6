package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. KLEINBOT_DISCORD_TOKEN.
const EnvPrefix = "KLEINBOT_"

// ErrInvalidConfig wraps validation failures.
var ErrInvalidConfig = errors.New("invalid config")

// Load reads the config at path. An empty path uses DefaultConfigPath; a
// missing file yields defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		cfg = Default()
	case err != nil:
		return nil, errors.Wrapf(err, "failed to read config %s", path)
	default:
		if err := decode(path, data, cfg); err != nil {
			return nil, err
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, errors.Wrap(err, "failed to apply environment overrides")
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
			return errors.Wrapf(err, "failed to parse config %s", path)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return errors.Wrapf(err, "failed to parse config %s", path)
		}
	}
	return nil
}

// Validate checks the fields that cannot fall back to a default.
func (c *Config) Validate() error {
	switch c.Transport {
	case "discord", "console":
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown transport %q", c.Transport)
	}
	if strings.ContainsAny(c.Prefix, " \t\n") {
		return errors.Wrapf(ErrInvalidConfig, "prefix %q contains whitespace", c.Prefix)
	}
	switch c.AI.Backend {
	case "gemini", "anthropic", "claude", "openai", "ollama":
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown ai backend %q", c.AI.Backend)
	}
	return nil
}

// Save writes cfg to path as YAML, or JSON for .json files.
func Save(path string, cfg *Config) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data, err = json.MarshalIndent(cfg, "", "  ")
	default:
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}
	// The file may hold tokens.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(err, "failed to write config")
	}
	return nil
}
