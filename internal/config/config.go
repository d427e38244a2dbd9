// Package config loads runtime configuration for the honeypot from
// environment variables (via viper, bound from cobra flags in
// cmd/honeypot), with the same "parse the raw string, warn and fall back
// to the default on failure" pattern the rest of this codebase uses for
// integer environment variables.
package config

import (
	"log"
	"strconv"

	"github.com/spf13/viper"
)

// Version is the server version reported in the MCP initialize handshake
// and the /health endpoint.
const Version = "2.4.1"

// Config holds every environment-driven runtime setting.
type Config struct {
	DBPath          string
	Host            string
	Port            int
	Debug           bool
	SessionTTLSecs  int
	DashboardAPIKey string
	CORSOrigin      string

	MCPRateLimitRequests       int
	MCPRateLimitWindowSecs     int
	DashboardRateLimitRequests int
	DashboardRateLimitWindow   int
}

const (
	defaultPort                       = 5000
	defaultSessionTTLSecs             = 3600
	defaultMCPRateLimitRequests       = 60
	defaultMCPRateLimitWindowSecs     = 60
	defaultDashboardRateLimitRequests = 120
	defaultDashboardRateLimitWindow   = 60
)

// Load reads configuration from viper, which merges flag values, env vars,
// and defaults (set up by the cobra command in cmd/honeypot).
func Load() Config {
	return Config{
		DBPath:          viper.GetString("db_path"),
		Host:            viper.GetString("host"),
		Port:            intOrDefault("port", defaultPort),
		Debug:           viper.GetBool("debug"),
		SessionTTLSecs:  intOrDefault("session_ttl", defaultSessionTTLSecs),
		DashboardAPIKey: viper.GetString("dashboard_api_key"),
		CORSOrigin:      viper.GetString("cors_origin"),

		MCPRateLimitRequests:       intOrDefault("mcp_rate_limit_requests", defaultMCPRateLimitRequests),
		MCPRateLimitWindowSecs:     intOrDefault("mcp_rate_limit_window", defaultMCPRateLimitWindowSecs),
		DashboardRateLimitRequests: intOrDefault("dashboard_rate_limit_requests", defaultDashboardRateLimitRequests),
		DashboardRateLimitWindow:   intOrDefault("dashboard_rate_limit_window", defaultDashboardRateLimitWindow),
	}
}

// intOrDefault re-parses viper's raw string value for key with strconv,
// falling back to def and logging a warning when the value isn't a valid
// integer — viper.GetInt silently returns 0 on a bad string, which would
// mask a typo'd env var as an explicit zero instead of "unset".
func intOrDefault(key string, def int) int {
	raw := viper.GetString(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config: invalid integer for %q (%q), using default %d", key, raw, def)
		return def
	}
	return n
}
