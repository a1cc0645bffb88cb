package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server     ServerConfig    `toml:"server"`
	Poll       PollConfig      `toml:"poll"`
	Bridge     BridgeConfig    `toml:"bridge"`
	Logging    LoggingConfig   `toml:"logging"`
	Characters []CharacterInfo `toml:"characters"`
	Filters    []FilterInfo    `toml:"filters"`
}

type ServerConfig struct {
	Enabled      bool   `toml:"enabled"`
	URL          string `toml:"url"`
	Token        string `toml:"token"`
	Organization string `toml:"organization"`
	Bucket       string `toml:"bucket"`
}

// Complete reports whether the store connection is enabled and every field
// needed to open it is present. Emission is skipped otherwise.
func (s ServerConfig) Complete() bool {
	return s.Enabled && s.URL != "" && s.Token != "" && s.Organization != "" && s.Bucket != ""
}

type PollConfig struct {
	Interval time.Duration `toml:"interval"`
	CacheDir string        `toml:"cache_dir"`
}

type BridgeConfig struct {
	ProbeBase      time.Duration `toml:"probe_base"`
	ProbeIncrement time.Duration `toml:"probe_increment"`
	MaxAttempts    int           `toml:"max_attempts"`
	ScriptsDir     string        `toml:"scripts_dir"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// CharacterInfo is one operator-included character. Name and World are
// display caches only; identity is the 64-bit id.
type CharacterInfo struct {
	ID                  uint64 `toml:"id"`
	Name                string `toml:"name"`
	World               string `toml:"world"`
	IncludeOrganization bool   `toml:"include_organization"`
}

type FilterInfo struct {
	Name string `toml:"name"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			URL: "http://localhost:8086",
		},
		Poll: PollConfig{
			Interval: time.Minute,
			CacheDir: "cache",
		},
		Bridge: BridgeConfig{
			ProbeBase:      time.Second,
			ProbeIncrement: 2 * time.Second,
			MaxAttempts:    10,
			ScriptsDir:     "scripts/subsystems",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
