// Package config loads and exposes application configuration (TOML).
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath    = "config.toml"
	DefaultHTTPAddr      = ":8090"
	DefaultStatePath     = "data/hubs.json"
	DefaultProductMarker = "SiriusSys GlobalChat"
	DefaultBackupKeep    = 7
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log     LogConfig     `toml:"log"`
	Discord DiscordConfig `toml:"discord"`
	Bridge  BridgeConfig  `toml:"bridge"`
	Server  ServerConfig  `toml:"server"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// DiscordConfig holds the bot token. The token can also come from the
// DISCORD_BOT_TOKEN environment variable, which wins over the file.
type DiscordConfig struct {
	BotToken string `toml:"bot_token"`
}

// BridgeConfig holds the state document path, the footer marker stamped on
// relayed embeds, and the optional backup schedule.
type BridgeConfig struct {
	StatePath     string `toml:"state_path"`
	ProductMarker string `toml:"product_marker"`
	BackupCron    string `toml:"backup_cron"`
	BackupKeep    int    `toml:"backup_keep"`
}

// ServerConfig holds the status API listen address and optional bearer
// token. An empty token leaves the API unauthenticated.
type ServerConfig struct {
	Addr        string `toml:"addr"`
	BearerToken string `toml:"bearer_token"`
}

// Load reads and parses the TOML config file at path and applies default
// values for missing fields. A missing file yields pure defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	if path == "" {
		path = DefaultConfigPath
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := toml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if token := os.Getenv("DISCORD_BOT_TOKEN"); token != "" {
		cfg.Discord.BotToken = token
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Bridge.StatePath == "" {
		cfg.Bridge.StatePath = DefaultStatePath
	}
	if cfg.Bridge.ProductMarker == "" {
		cfg.Bridge.ProductMarker = DefaultProductMarker
	}
	if cfg.Bridge.BackupKeep == 0 {
		cfg.Bridge.BackupKeep = DefaultBackupKeep
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultHTTPAddr
	}
	return cfg, nil
}
