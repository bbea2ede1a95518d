package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
	DefaultRestURL           = "http://localhost:5000"
	DefaultChannelURL        = "ws://localhost:5000/ws"
	DefaultAPITimeout        = 10 * time.Second
	DefaultMaxRetries        = 3
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultPingInterval      = 25 * time.Second
	DefaultPingTimeout       = 60 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultChannelBufferSize = 1000
	DefaultRedialBaseWait    = 1 * time.Second
	DefaultRedialMaxWait     = 5 * time.Second
	DefaultRecoveryInterval  = 1 * time.Second
	DefaultMaxAttempts       = 100
	DefaultFallbackDelay     = 500 * time.Millisecond
	DefaultTeamRefresh       = 30 * time.Second
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 4
	DefaultMinConns          = 1
	DefaultJournalBatchSize  = 100
	DefaultJournalFlush      = 1 * time.Second
	DefaultJournalBufferSize = 1000
	DefaultServerPort        = 8080
	DefaultMetricsPath       = "/metrics"
	DefaultServerMode        = "release"
)

// ApplyDefaults fills every unset optional field.
func (c *Config) ApplyDefaults() {
	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}

	// API defaults
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}

	// Channel defaults
	if c.Channel.URL == "" {
		c.Channel.URL = DefaultChannelURL
	}
	if c.Channel.HandshakeTimeout == 0 {
		c.Channel.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Channel.PingInterval == 0 {
		c.Channel.PingInterval = DefaultPingInterval
	}
	if c.Channel.PingTimeout == 0 {
		c.Channel.PingTimeout = DefaultPingTimeout
	}
	if c.Channel.WriteTimeout == 0 {
		c.Channel.WriteTimeout = DefaultWriteTimeout
	}
	if c.Channel.BufferSize == 0 {
		c.Channel.BufferSize = DefaultChannelBufferSize
	}
	if c.Channel.RedialBaseWait == 0 {
		c.Channel.RedialBaseWait = DefaultRedialBaseWait
	}
	if c.Channel.RedialMaxWait == 0 {
		c.Channel.RedialMaxWait = DefaultRedialMaxWait
	}

	// Recovery defaults
	if c.Recovery.PollInterval == 0 {
		c.Recovery.PollInterval = DefaultRecoveryInterval
	}
	if c.Recovery.MaxAttempts == 0 {
		c.Recovery.MaxAttempts = DefaultMaxAttempts
	}
	if c.Recovery.FallbackDelay == 0 {
		c.Recovery.FallbackDelay = DefaultFallbackDelay
	}

	// Team defaults
	if c.Team.RefreshInterval == 0 {
		c.Team.RefreshInterval = DefaultTeamRefresh
	}

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Journal defaults
	if c.Journal.BatchSize == 0 {
		c.Journal.BatchSize = DefaultJournalBatchSize
	}
	if c.Journal.FlushInterval == 0 {
		c.Journal.FlushInterval = DefaultJournalFlush
	}
	if c.Journal.BufferSize == 0 {
		c.Journal.BufferSize = DefaultJournalBufferSize
	}

	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
	if c.Server.MetricsPath == "" {
		c.Server.MetricsPath = DefaultMetricsPath
	}
	if c.Server.Mode == "" {
		c.Server.Mode = DefaultServerMode
	}
}
