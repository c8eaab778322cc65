// Package config loads the wallet-notify configuration file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// TokenConfig maps a session token to its user. The wallet app issues and
// validates sessions; this table is the hand-off point for a standalone
// deployment of the stream server.
type TokenConfig struct {
	Token string `mapstructure:"token"`
	User  string `mapstructure:"user"`
	Admin bool   `mapstructure:"admin"`
}

// ServerConfig holds settings for the notification stream server.
type ServerConfig struct {
	// Addr is the listen address for the stream and API endpoints.
	Addr string `mapstructure:"addr"`

	// DBPath is the path of the sqlite notification database.
	DBPath string `mapstructure:"db_path"`

	// HeartbeatSec is how often (in seconds) each stream session emits a
	// heartbeat frame.
	HeartbeatSec int `mapstructure:"heartbeat_sec"`

	// QueueSize is the per-session event queue capacity.
	QueueSize int `mapstructure:"queue_size"`

	// Tokens is the static session table accepted by the server.
	Tokens []TokenConfig `mapstructure:"tokens"`
}

// ClientConfig holds settings for the stream client.
type ClientConfig struct {
	// BaseURL is the root URL of the notification service.
	BaseURL string `mapstructure:"base_url"`

	// SnapshotTimeoutSec bounds the initial snapshot fetch. A timeout is
	// benign: the stream's initial frame delivers the same data.
	SnapshotTimeoutSec int `mapstructure:"snapshot_timeout_sec"`

	// Sound controls whether the presentation layer plays a sound for new
	// notifications. Carried here so it is injected configuration rather
	// than module state.
	Sound bool `mapstructure:"sound"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig `mapstructure:"server"`
	Client   ClientConfig `mapstructure:"client"`
	LogLevel string       `mapstructure:"log_level"`
}

// HeartbeatInterval returns the heartbeat period as a duration.
func (c ServerConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatSec) * time.Second
}

// SnapshotTimeout returns the snapshot fetch timeout as a duration.
func (c ClientConfig) SnapshotTimeout() time.Duration {
	return time.Duration(c.SnapshotTimeoutSec) * time.Second
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8085")
	v.SetDefault("server.db_path", "wallet-notify.db")
	v.SetDefault("server.heartbeat_sec", 25)
	v.SetDefault("server.queue_size", 100)
	v.SetDefault("client.base_url", "http://localhost:8085")
	v.SetDefault("client.snapshot_timeout_sec", 3)
	v.SetDefault("client.sound", true)
	v.SetDefault("log_level", "info")
}

// Load reads the configuration from path, falling back to defaults for any
// unset values. An empty path loads defaults and environment overrides only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("WALLET_NOTIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return &cfg, nil
}
