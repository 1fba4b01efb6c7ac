package config

import "time"

// Identity store backends.
const (
	IdentityStoreMemory = "memory"
	IdentityStoreSQLite = "sqlite"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	MaxMessageBytes    int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	AuthTimeout        time.Duration `mapstructure:"auth_timeout" yaml:"auth_timeout"`
	EventBuffer        int           `mapstructure:"event_buffer" yaml:"event_buffer"`
	AllowedOrigins     []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`

	IdentityStore string `mapstructure:"identity_store" yaml:"identity_store"`
	DatabasePath  string `mapstructure:"database_path" yaml:"database_path"`
	BcryptCost    int    `mapstructure:"bcrypt_cost" yaml:"bcrypt_cost"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:               ":8080",
		ReadHeaderTimeout:  5 * time.Second,
		ShutdownTimeout:    5 * time.Second,
		LogLevel:           "info",
		MaxMessageBytes:    64 << 10,
		RateLimitPerMinute: 120,
		AuthTimeout:        30 * time.Second,
		EventBuffer:        64,
		JWTIssuer:          "wirechat-relay",
		JWTAudience:        "wirechat-relay",
		JWTTTL:             24 * time.Hour,
		IdentityStore:      IdentityStoreMemory,
		DatabasePath:       "wirechat-relay.db",
		BcryptCost:         10,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	if other.RateLimitPerMinute != 0 {
		c.RateLimitPerMinute = other.RateLimitPerMinute
	}
	if other.AuthTimeout != 0 {
		c.AuthTimeout = other.AuthTimeout
	}
	if other.EventBuffer != 0 {
		c.EventBuffer = other.EventBuffer
	}
	if len(other.AllowedOrigins) > 0 {
		c.AllowedOrigins = other.AllowedOrigins
	}
	if other.JWTSecret != "" {
		c.JWTSecret = other.JWTSecret
	}
	if other.JWTIssuer != "" {
		c.JWTIssuer = other.JWTIssuer
	}
	if other.JWTAudience != "" {
		c.JWTAudience = other.JWTAudience
	}
	if other.JWTTTL != 0 {
		c.JWTTTL = other.JWTTTL
	}
	if other.IdentityStore != "" {
		c.IdentityStore = other.IdentityStore
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.BcryptCost != 0 {
		c.BcryptCost = other.BcryptCost
	}
}
