package config

import "time"

// Config holds client configuration values.
type Config struct {
	// BrokerURL is the websocket endpoint of the chat broker.
	BrokerURL string `mapstructure:"broker_url" yaml:"broker_url"`
	// APIBaseURL is the base URL of the HTTP backend (auth, stream
	// metadata, moderation).
	APIBaseURL string `mapstructure:"api_base_url" yaml:"api_base_url"`
	// StatePath is the sqlite file holding persisted client state
	// (display name, admin credential).
	StatePath string `mapstructure:"state_path" yaml:"state_path"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	// ReconnectDelay is the fixed backoff between broker connection
	// attempts. The client retries indefinitely.
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay"`
	// HeartbeatInterval is the websocket ping interval.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval"`
	// ViewerCountRefresh is how often the client re-requests the viewer
	// count while connected.
	ViewerCountRefresh time.Duration `mapstructure:"viewer_count_refresh" yaml:"viewer_count_refresh"`
	// SubmitCooldown is the local lockout after each accepted comment
	// submission.
	SubmitCooldown time.Duration `mapstructure:"submit_cooldown" yaml:"submit_cooldown"`
	// ErrorTTL is how long inline validation errors stay visible.
	ErrorTTL time.Duration `mapstructure:"error_ttl" yaml:"error_ttl"`

	// ViewerOffset is added to the raw viewer count while the stream is
	// live.
	ViewerOffset int `mapstructure:"viewer_offset" yaml:"viewer_offset"`
	// HistoryWindow caps how many comments the surface renders.
	HistoryWindow int `mapstructure:"history_window" yaml:"history_window"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		BrokerURL:          "ws://localhost:8080/ws",
		APIBaseURL:         "http://localhost:8080/api",
		StatePath:          "livechat.db",
		LogLevel:           "info",
		ReconnectDelay:     5 * time.Second,
		HeartbeatInterval:  4 * time.Second,
		ViewerCountRefresh: 30 * time.Second,
		SubmitCooldown:     3 * time.Second,
		ErrorTTL:           5 * time.Second,
		ViewerOffset:       779,
		HistoryWindow:      50,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.BrokerURL != "" {
		c.BrokerURL = other.BrokerURL
	}
	if other.APIBaseURL != "" {
		c.APIBaseURL = other.APIBaseURL
	}
	if other.StatePath != "" {
		c.StatePath = other.StatePath
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.ReconnectDelay != 0 {
		c.ReconnectDelay = other.ReconnectDelay
	}
	if other.HeartbeatInterval != 0 {
		c.HeartbeatInterval = other.HeartbeatInterval
	}
	if other.ViewerCountRefresh != 0 {
		c.ViewerCountRefresh = other.ViewerCountRefresh
	}
	if other.SubmitCooldown != 0 {
		c.SubmitCooldown = other.SubmitCooldown
	}
	if other.ErrorTTL != 0 {
		c.ErrorTTL = other.ErrorTTL
	}
	if other.ViewerOffset != 0 {
		c.ViewerOffset = other.ViewerOffset
	}
	if other.HistoryWindow != 0 {
		c.HistoryWindow = other.HistoryWindow
	}
}
