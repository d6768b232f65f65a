// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

// Package config loads Fableboard configuration with Koanf v2, layering
// built-in defaults, an optional config.yaml, and environment variables
// (highest priority).
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the server and the embedded client
// pipeline defaults.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Security SecurityConfig `koanf:"security"`
	Relay    RelayConfig    `koanf:"relay"`
	Sweeper  SweeperConfig  `koanf:"sweeper"`
	Client   ClientConfig   `koanf:"client"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"`
}

// Addr returns the host:port listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds DuckDB settings for the entity store.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// SecurityConfig holds credential verification and rate limit settings.
// Token issuance happens in an external credential service that shares
// JWTSecret; this process only verifies.
type SecurityConfig struct {
	JWTSecret       string        `koanf:"jwt_secret"`
	SessionTimeout  time.Duration `koanf:"session_timeout"`
	RateLimitReqs   int           `koanf:"rate_limit_requests"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// RelayConfig holds presence/broadcast relay settings.
type RelayConfig struct {
	// SendBuffer is the per-connection outbound queue length. A peer
	// whose queue fills is dropped from the group rather than blocking
	// fan-out to the others.
	SendBuffer int `koanf:"send_buffer"`

	// WriteWait bounds a single WebSocket write.
	WriteWait time.Duration `koanf:"write_wait"`

	// PongWait is how long a connection may stay silent before the
	// transport is considered dead.
	PongWait time.Duration `koanf:"pong_wait"`
}

// SweeperConfig paces the orphan cleanup pass that removes connections
// and comments left dangling by best-effort cascade deletes.
type SweeperConfig struct {
	Interval time.Duration `koanf:"interval"`
}

// ClientConfig holds defaults for the embedded client-side mutation
// pipeline and relay session.
type ClientConfig struct {
	CachePath         string        `koanf:"cache_path"`
	ReconnectDelay    time.Duration `koanf:"reconnect_delay"`
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`
	RequestTimeout    time.Duration `koanf:"request_timeout"`
}

// LoggingConfig mirrors logging.Config for koanf loading.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all defaults applied. These are
// overridden by config.yaml and then by environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3861,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Environment:     "development",
		},
		Database: DatabaseConfig{
			Path:      "/data/fableboard.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = runtime.NumCPU()
		},
		Security: SecurityConfig{
			JWTSecret:       "",
			SessionTimeout:  24 * time.Hour,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Relay: RelayConfig{
			SendBuffer: 256,
			WriteWait:  10 * time.Second,
			PongWait:   60 * time.Second,
		},
		Sweeper: SweeperConfig{
			Interval: 5 * time.Minute,
		},
		Client: ClientConfig{
			CachePath:         "/data/fableboard-cache",
			ReconnectDelay:    3 * time.Second,
			HeartbeatInterval: 30 * time.Second,
			RequestTimeout:    15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Security.JWTSecret != "" && len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("security.jwt_secret must be at least 32 characters")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Relay.SendBuffer <= 0 {
		return fmt.Errorf("relay.send_buffer must be positive")
	}
	return nil
}
