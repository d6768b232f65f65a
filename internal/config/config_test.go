// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

package config

import (
	"strings"
	"testing"
	"time"

	"github.com/knadh/koanf/v2"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
}

func TestServerAddr(t *testing.T) {
	cfg := ServerConfig{Host: "127.0.0.1", Port: 3861}
	if got, want := cfg.Addr(), "127.0.0.1:3861"; got != want {
		t.Errorf("Addr() = %q, want %q", got, want)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults pass",
			mutate: func(c *Config) {},
		},
		{
			name:    "port zero",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port",
		},
		{
			name:    "port too large",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "server.port",
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *Config) { c.Security.JWTSecret = "short" },
			wantErr: "jwt_secret",
		},
		{
			name:   "long jwt secret passes",
			mutate: func(c *Config) { c.Security.JWTSecret = strings.Repeat("s", 32) },
		},
		{
			name:    "empty database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name:    "non-positive send buffer",
			mutate:  func(c *Config) { c.Relay.SendBuffer = 0 },
			wantErr: "send_buffer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"SERVER_PORT", "server.port"},
		{"SERVER_HOST", "server.host"},
		{"DATABASE_PATH", "database.path"},
		{"SECURITY_JWT_SECRET", "security.jwt_secret"},
		{"RELAY_SEND_BUFFER", "relay.send_buffer"},
		{"SWEEPER_INTERVAL", "sweeper.interval"},
		{"CLIENT_CACHE_PATH", "client.cache_path"},
		{"LOGGING_LEVEL", "logging.level"},
		// Short aliases.
		{"JWT_SECRET", "security.jwt_secret"},
		{"DUCKDB_PATH", "database.path"},
		{"HTTP_PORT", "server.port"},
		{"LOG_LEVEL", "logging.level"},
		{"CORS_ORIGINS", "security.cors_origins"},
		// Unknown variables go to the ignored tree.
		{"PATH", "ignored.path"},
		{"HOME", "ignored.home"},
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.key); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestProcessSliceFields(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  []string
	}{
		{
			name:  "comma separated string",
			value: "https://a.example, https://b.example",
			want:  []string{"https://a.example", "https://b.example"},
		},
		{
			name:  "single value",
			value: "https://a.example",
			want:  []string{"https://a.example"},
		},
		{
			name:  "already a slice",
			value: []string{"https://a.example"},
			want:  []string{"https://a.example"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := koanf.New(".")
			if err := k.Set("security.cors_origins", tt.value); err != nil {
				t.Fatalf("Set: %v", err)
			}
			if err := processSliceFields(k); err != nil {
				t.Fatalf("processSliceFields: %v", err)
			}
			got := k.Strings("security.cors_origins")
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("element %d: got %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestClientDefaultsMatchProtocol(t *testing.T) {
	cfg := defaultConfig()
	if cfg.Client.ReconnectDelay != 3*time.Second {
		t.Errorf("reconnect delay = %v, want 3s", cfg.Client.ReconnectDelay)
	}
	if cfg.Client.HeartbeatInterval != 30*time.Second {
		t.Errorf("heartbeat interval = %v, want 30s", cfg.Client.HeartbeatInterval)
	}
}
