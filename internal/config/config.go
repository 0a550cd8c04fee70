// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package config handles configuration loading from environment variables
// for both the sellout server and the selloutctl session client.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"sellout/internal/ordering"
	"sellout/internal/syncguard"
)

// Config holds the server configuration loaded from the environment.
type Config struct {
	// Server settings
	Host string
	Port string
	Env  string // "development", "production", "testing"

	// PostgreSQL connection
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Valkey (Redis-compatible cache)
	ValkeyHost     string
	ValkeyPort     string
	ValkeyPassword string

	// Ordering
	Ordering ordering.Config

	// RateLimit is the per-client request budget per second on the API.
	RateLimit float64
	RateBurst int
}

// Load reads server configuration from environment variables, applying
// defaults for development where appropriate. Returns an error if critical
// values are missing in production mode.
func Load() (*Config, error) {
	cfg := &Config{
		Host: envOrDefault("APP_HOST", "0.0.0.0"),
		Port: envOrDefault("APP_PORT", "8080"),
		Env:  envOrDefault("APP_ENV", "development"),

		DBHost:     envOrDefault("POSTGRES_HOST", "localhost"),
		DBPort:     envOrDefault("POSTGRES_PORT", "5432"),
		DBUser:     envOrDefault("POSTGRES_USER", "sellout"),
		DBPassword: envOrDefault("POSTGRES_PASSWORD", "changeme"),
		DBName:     envOrDefault("POSTGRES_DB", "sellout"),

		ValkeyHost:     envOrDefault("VALKEY_HOST", "localhost"),
		ValkeyPort:     envOrDefault("VALKEY_PORT", "6379"),
		ValkeyPassword: os.Getenv("VALKEY_PASSWORD"),
	}

	var err error
	if cfg.Ordering, err = loadOrdering(); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = envFloat("API_RATE_LIMIT", 20); err != nil {
		return nil, err
	}
	if cfg.RateBurst, err = envInt("API_RATE_BURST", 40); err != nil {
		return nil, err
	}

	if cfg.Env == "production" {
		if cfg.DBPassword == "changeme" {
			return nil, fmt.Errorf("POSTGRES_PASSWORD must be set in production")
		}
	}

	return cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

// Addr returns the server listen address (host:port).
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// ValkeyAddr returns the Valkey address (host:port).
func (c *Config) ValkeyAddr() string {
	return fmt.Sprintf("%s:%s", c.ValkeyHost, c.ValkeyPort)
}

// IsDev returns true if the application is running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Client holds the session client configuration.
type Client struct {
	APIURL         string
	Ordering       ordering.Config
	Guard          syncguard.Config
	ResyncCooldown time.Duration
	// ProbeInterval is how often connectivity is checked against /health.
	ProbeInterval time.Duration
}

// LoadClient reads client configuration from environment variables.
func LoadClient() (*Client, error) {
	c := &Client{
		APIURL: envOrDefault("SELLOUT_API_URL", "http://localhost:8080"),
	}
	d := syncguard.DefaultConfig()

	var err error
	if c.Ordering, err = loadOrdering(); err != nil {
		return nil, err
	}
	durations := []struct {
		key      string
		fallback time.Duration
		dst      *time.Duration
	}{
		{"SYNC_HEARTBEAT", d.Heartbeat, &c.Guard.Heartbeat},
		{"SYNC_SUSPEND_AFTER", d.SuspendAfter, &c.Guard.SuspendAfter},
		{"SYNC_STALE_AFTER", d.SyncStaleAfter, &c.Guard.SyncStaleAfter},
		{"SYNC_FEED_STALE_AFTER", d.FeedStaleAfter, &c.Guard.FeedStaleAfter},
		{"SYNC_VISIBILITY_THROTTLE", d.VisibilityThrottle, &c.Guard.VisibilityThrottle},
		{"SYNC_RESYNC_COOLDOWN", 4 * time.Second, &c.ResyncCooldown},
		{"SYNC_PROBE_INTERVAL", 10 * time.Second, &c.ProbeInterval},
	}
	for _, e := range durations {
		if *e.dst, err = envDuration(e.key, e.fallback); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func loadOrdering() (ordering.Config, error) {
	d := ordering.DefaultConfig()
	var (
		cfg ordering.Config
		err error
	)
	if cfg.Seed, err = envFloat("ORDER_SEED", d.Seed); err != nil {
		return cfg, err
	}
	if cfg.Increment, err = envFloat("ORDER_INCREMENT", d.Increment); err != nil {
		return cfg, err
	}
	if cfg.Floor, err = envFloat("ORDER_FLOOR", d.Floor); err != nil {
		return cfg, err
	}
	if cfg.MaxPosition, err = envInt("ORDER_MAX_POSITION", d.MaxPosition); err != nil {
		return cfg, err
	}
	if cfg.Seed <= 0 || cfg.Increment <= 0 || cfg.Floor <= 0 || cfg.MaxPosition <= 0 {
		return cfg, fmt.Errorf("ordering settings must be positive")
	}
	return cfg, nil
}

// envOrDefault reads an environment variable, returning a fallback if unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
