// Package config loads the PhishClaw configuration from a JSON5 file and
// overlays secrets from the environment.
package config

import (
	"fmt"
	"os"

	"github.com/titanous/json5"
)

// Config is the root configuration for the bot.
type Config struct {
	HomeserverURL string `json:"homeserver_url"`
	// AccessToken is NEVER read from the config file (secret). It comes
	// from env PHISHCLAW_ACCESS_TOKEN only.
	AccessToken string `json:"-"`

	Prefix   string `json:"prefix"`    // command prefix, default "!phish"
	AutoJoin bool   `json:"auto_join"` // accept room invites automatically

	Rooms     RoomsConfig     `json:"rooms"`
	Reviewers []string        `json:"reviewers"` // user IDs allowed to triage Telegram links
	Providers ProvidersConfig `json:"providers"`
	Database  DatabaseConfig  `json:"database,omitempty"`
	Redis     RedisConfig     `json:"redis,omitempty"`
}

// RoomsConfig names the special rooms the bot reports into.
type RoomsConfig struct {
	AuditLog    string   `json:"audit_log"`    // moderation audit messages
	Commands    string   `json:"commands"`     // the only room where join is allowed
	TelegramLog string   `json:"telegram_log"` // new-Telegram-link triage messages
	Support     string   `json:"support"`      // alias advertised by the space command
	Ignored     []string `json:"ignored"`      // rooms the scanner skips entirely
}

// ProvidersConfig configures the external reputation providers.
type ProvidersConfig struct {
	FishFishURL string `json:"fishfish_url"`
	AntiFishURL string `json:"antifish_url"`
	UserAgent   string `json:"user_agent"`
	// RatePerMinute bounds outbound provider calls across all rooms.
	RatePerMinute int `json:"rate_per_minute"`
}

// DatabaseConfig selects the reputation store backend.
// PostgresDSN is NEVER read from the config file (secret). It comes from env
// PHISHCLAW_POSTGRES_DSN only. When set, Postgres is used; otherwise SQLite at
// SQLitePath; an empty SQLitePath falls back to an in-memory store.
type DatabaseConfig struct {
	PostgresDSN string `json:"-"`
	SQLitePath  string `json:"sqlite_path,omitempty"`
}

// RedisConfig enables the optional clean-verdict cache.
type RedisConfig struct {
	Addr            string `json:"addr,omitempty"`
	CleanTTLMinutes int    `json:"clean_ttl_minutes,omitempty"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		HomeserverURL: "https://matrix.org",
		Prefix:        "!phish",
		AutoJoin:      true,
		Rooms: RoomsConfig{
			Support: "#phishclaw:matrix.org",
		},
		Providers: ProvidersConfig{
			FishFishURL:   "https://api.fishfish.gg",
			AntiFishURL:   "https://anti-fish.bitflow.dev",
			UserAgent:     "PhishClaw (+https://github.com/nextlevelbuilder/phishclaw)",
			RatePerMinute: 120,
		},
		Database: DatabaseConfig{
			SQLitePath: "~/.phishclaw/reputation.db",
		},
		Redis: RedisConfig{
			CleanTTLMinutes: 30,
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file yields the defaults (env overlay still applies).
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if v := os.Getenv("PHISHCLAW_ACCESS_TOKEN"); v != "" {
		cfg.AccessToken = v
	}
	if v := os.Getenv("PHISHCLAW_POSTGRES_DSN"); v != "" {
		cfg.Database.PostgresDSN = v
	}
	if v := os.Getenv("PHISHCLAW_HOMESERVER_URL"); v != "" {
		cfg.HomeserverURL = v
	}

	cfg.Database.SQLitePath = ExpandHome(cfg.Database.SQLitePath)
	return cfg, nil
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err == nil {
			return home + path[1:]
		}
	}
	return path
}

// IsIgnoredRoom reports whether the scanner should skip the room.
func (c *Config) IsIgnoredRoom(roomID string) bool {
	for _, id := range c.Rooms.Ignored {
		if id == roomID {
			return true
		}
	}
	return false
}

// IsReviewer reports whether the user may triage Telegram links.
func (c *Config) IsReviewer(userID string) bool {
	for _, id := range c.Reviewers {
		if id == userID {
			return true
		}
	}
	return false
}
