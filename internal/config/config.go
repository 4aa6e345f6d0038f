package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort        = 8080
	DefaultMaxMessageChars = 1000
	DefaultMaxFrameBytes   = 8192
	DefaultSendBuffer      = 64
	DefaultWriteTimeout    = 10 * time.Second
	DefaultPongTimeout     = 60 * time.Second
	DefaultHistoryPerRoom  = 500
	DefaultRetention       = 24 * time.Hour
	DefaultBridgeChannel   = "pulsewire:events"
)

// Config holds the configuration parsed from the `server:` section of
// config.yaml.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API and WebSocket routes listen on
	// (default 8080).
	HTTPPort int `yaml:"http_port"`

	// LogLevel is one of: debug | info | warn | error. Default info.
	LogLevel string `yaml:"log_level"`

	// Auth configures how WebSocket and REST clients authenticate.
	Auth AuthConfig `yaml:"auth"`

	// Limits bounds per-connection buffers, frame sizes and timing.
	Limits LimitsConfig `yaml:"limits"`

	// History controls the in-memory chat history retention.
	History HistoryConfig `yaml:"history"`

	// Cluster configures the optional Redis bridge between instances.
	Cluster ClusterConfig `yaml:"cluster"`
}

// AuthConfig controls client authentication.
type AuthConfig struct {
	// Mode is one of: token | none. With "token", clients present the
	// shared token as a `token` query parameter or a bearer header.
	Mode string `yaml:"mode"`

	// TokenEnv is the name of the environment variable that holds the
	// expected token. Used when Mode == "token".
	TokenEnv string `yaml:"token_env"`
}

// Token returns the expected token resolved from the environment.
func (a AuthConfig) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// LimitsConfig bounds per-connection resources.
type LimitsConfig struct {
	// MaxMessageChars caps chat message length in runes (default 1000).
	MaxMessageChars int `yaml:"max_message_chars"`

	// MaxFrameBytes caps one inbound WebSocket frame (default 8192).
	// It must leave room for the largest allowed message plus its JSON
	// envelope.
	MaxFrameBytes int64 `yaml:"max_frame_bytes"`

	// SendBuffer is the per-connection outbound queue length (default
	// 64). A member whose queue fills is disconnected.
	SendBuffer int `yaml:"send_buffer"`

	// WriteTimeout bounds one frame write to a peer. Default 10s.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// PongTimeout is how long a peer may stay silent before it is
	// considered gone. Pings go out at 9/10 of this. Default 60s.
	PongTimeout time.Duration `yaml:"pong_timeout"`
}

// HistoryConfig controls chat history retention.
type HistoryConfig struct {
	// MaxPerRoom caps stored messages per room (default 500). Zero
	// keeps every message until it ages out.
	MaxPerRoom int `yaml:"max_per_room"`

	// Retention is how long a message stays queryable. Default 24h.
	// Zero disables the sweep.
	Retention time.Duration `yaml:"retention"`
}

// ClusterConfig configures the Redis bridge. Leaving redis_addr empty
// runs the server standalone.
type ClusterConfig struct {
	// RedisAddr is the host:port of the Redis used to link instances.
	RedisAddr string `yaml:"redis_addr"`

	// RedisDB selects the Redis logical database (default 0).
	RedisDB int `yaml:"redis_db"`

	// RedisPasswordEnv is the name of the environment variable that
	// holds the Redis password, if any.
	RedisPasswordEnv string `yaml:"redis_password_env"`

	// Channel is the pub/sub channel events travel over. Defaults to
	// "pulsewire:events".
	Channel string `yaml:"channel"`

	// InstanceID identifies this instance in bridge envelopes so it
	// can skip its own. Defaults to a random ID per process.
	InstanceID string `yaml:"instance_id"`
}

// Enabled reports whether a Redis bridge is configured.
func (c ClusterConfig) Enabled() bool {
	return c.RedisAddr != ""
}

// Password returns the Redis password resolved from the environment.
func (c ClusterConfig) Password() string {
	if c.RedisPasswordEnv == "" {
		return ""
	}
	return os.Getenv(c.RedisPasswordEnv)
}

// EffectiveChannel returns the configured channel name or the default.
func (c ClusterConfig) EffectiveChannel() string {
	if c.Channel != "" {
		return c.Channel
	}
	return DefaultBridgeChannel
}

// Load reads and parses the config file at path. Missing fields are
// filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
			LogLevel: "info",
			Limits: LimitsConfig{
				MaxMessageChars: DefaultMaxMessageChars,
				MaxFrameBytes:   DefaultMaxFrameBytes,
				SendBuffer:      DefaultSendBuffer,
				WriteTimeout:    DefaultWriteTimeout,
				PongTimeout:     DefaultPongTimeout,
			},
			History: HistoryConfig{
				MaxPerRoom: DefaultHistoryPerRoom,
				Retention:  DefaultRetention,
			},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	switch s.LogLevel {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("server.log_level %q unknown: want debug|info|warn|error", s.LogLevel)
	}
	switch s.Auth.Mode {
	case "token", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want token|none", s.Auth.Mode)
	}
	if s.Limits.MaxMessageChars <= 0 {
		return fmt.Errorf("server.limits.max_message_chars must be positive")
	}
	if s.Limits.MaxFrameBytes < 1024 {
		return fmt.Errorf("server.limits.max_frame_bytes %d is too small: want >= 1024", s.Limits.MaxFrameBytes)
	}
	if s.Limits.SendBuffer <= 0 {
		return fmt.Errorf("server.limits.send_buffer must be positive")
	}
	if s.Limits.WriteTimeout <= 0 {
		return fmt.Errorf("server.limits.write_timeout must be positive")
	}
	if s.Limits.PongTimeout <= 0 {
		return fmt.Errorf("server.limits.pong_timeout must be positive")
	}
	if s.History.MaxPerRoom < 0 {
		return fmt.Errorf("server.history.max_per_room must not be negative")
	}
	if s.History.Retention < 0 {
		return fmt.Errorf("server.history.retention must not be negative")
	}
	if s.Cluster.RedisDB < 0 {
		return fmt.Errorf("server.cluster.redis_db must not be negative")
	}
	return nil
}
