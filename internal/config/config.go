package config

import (
	"log/slog"
	"strings"
	"time"
)

// Config is the root configuration for a pairamid-live instance.
type Config struct {
	Instance InstanceConfig `yaml:"instance"`
	Log      LogConfig      `yaml:"log"`
	API      APIConfig      `yaml:"api"`
	Channel  ChannelConfig  `yaml:"channel"`
	Recovery RecoveryConfig `yaml:"recovery"`
	Team     TeamConfig     `yaml:"team"`
	Database DBConfig       `yaml:"database"`
	Journal  JournalConfig  `yaml:"journal"`
	Server   ServerConfig   `yaml:"server"`
}

// InstanceConfig identifies this agent.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// SlogLevel maps Level to a slog.Level. Unknown values map to info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// APIConfig holds Pairamid REST API settings.
type APIConfig struct {
	RestURL    string        `yaml:"rest_url"`
	Token      string        `yaml:"token"` // Bearer token, sent on REST and channel requests
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// ChannelConfig holds event channel (websocket) settings.
type ChannelConfig struct {
	URL              string        `yaml:"url"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	PingInterval     time.Duration `yaml:"ping_interval"`
	PingTimeout      time.Duration `yaml:"ping_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	BufferSize       int           `yaml:"buffer_size"`
	RedialBaseWait   time.Duration `yaml:"redial_base_wait"`
	RedialMaxWait    time.Duration `yaml:"redial_max_wait"`
}

// RecoveryConfig holds the lifecycle controller's timing contract.
type RecoveryConfig struct {
	PollInterval  time.Duration `yaml:"poll_interval"`
	MaxAttempts   int           `yaml:"max_attempts"`
	FallbackDelay time.Duration `yaml:"fallback_delay"`
}

// TeamConfig selects the team whose pairing state is kept live.
type TeamConfig struct {
	ID              string        `yaml:"id"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// JournalConfig holds the lifecycle journal batch writer settings.
type JournalConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Port        int    `yaml:"port"`
	MetricsPath string `yaml:"metrics_path"`
	Mode        string `yaml:"mode"` // gin mode: debug, release, test
}
