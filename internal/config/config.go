// Package config loads server configuration from the environment. All
// values are parsed defensively: malformed, non-positive, or non-finite
// input falls back to the documented default.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/haasonsaas/webagent/pkg/models"
)

// Transports supported by the server.
const (
	TransportStdio = "stdio"
	TransportREST  = "rest"
)

// Defaults.
const (
	DefaultMaxSessions     = 4
	DefaultSessionMaxAgeMS = 30 * 60 * 1000
	DefaultHost            = "127.0.0.1"
	DefaultPort            = 8377
)

// Config is the process-level configuration.
type Config struct {
	// Transport selects the serving adapter: stdio (default) or rest.
	Transport string

	// Host and Port bind the rest transport.
	Host string
	Port int

	// MaxSessions bounds the per-process session pool.
	MaxSessions int

	// Headless controls browser launch mode.
	Headless bool

	// Allowlist and Denylist hold host entries; each matches the exact host
	// or any subdomain of it.
	Allowlist []string
	Denylist  []string

	// PolicyMode is the default policy adapter for new sessions.
	PolicyMode models.PolicyMode

	// SessionMaxAgeMS is the GC idle cutoff.
	SessionMaxAgeMS int64

	// TracesRoot is where replay logs and frame artifacts live. Resolved
	// once from the working directory.
	TracesRoot string

	// LogLevel and LogFormat configure the logger.
	LogLevel  string
	LogFormat string
}

// FromEnv builds a Config from WEBAGENT_* environment variables.
func FromEnv() *Config {
	cfg := &Config{
		Transport:       envString("WEBAGENT_TRANSPORT", TransportStdio),
		Host:            envString("WEBAGENT_HOST", DefaultHost),
		Port:            envPositiveInt("WEBAGENT_PORT", DefaultPort),
		MaxSessions:     envPositiveInt("WEBAGENT_MAX_SESSIONS", DefaultMaxSessions),
		Headless:        envBool("WEBAGENT_HEADLESS", true),
		Allowlist:       envHostList("WEBAGENT_ALLOWLIST"),
		Denylist:        envHostList("WEBAGENT_DENYLIST"),
		SessionMaxAgeMS: envPositiveInt64("WEBAGENT_SESSION_MAX_AGE_MS", DefaultSessionMaxAgeMS),
		LogLevel:        envString("WEBAGENT_LOG_LEVEL", "info"),
		LogFormat:       envString("WEBAGENT_LOG_FORMAT", "json"),
	}

	switch strings.ToLower(cfg.Transport) {
	case TransportStdio, TransportREST:
		cfg.Transport = strings.ToLower(cfg.Transport)
	default:
		cfg.Transport = TransportStdio
	}

	switch models.PolicyMode(envString("WEBAGENT_POLICY_MODE", "")) {
	case models.PolicyDeterministic:
		cfg.PolicyMode = models.PolicyDeterministic
	default:
		cfg.PolicyMode = models.PolicyModelOwnsAction
	}

	cfg.TracesRoot = resolveTracesRoot()
	return cfg
}

// resolveTracesRoot resolves the traces directory from the working
// directory once at startup.
func resolveTracesRoot() string {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return filepath.Join(wd, "traces")
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envPositiveInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envPositiveInt64(key string, fallback int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil || parsed <= 0 || parsed != parsed || parsed > float64(1<<62) {
		return fallback
	}
	return int64(parsed)
}

func envHostList(key string) []string {
	raw := os.Getenv(key)
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		host := strings.ToLower(strings.TrimSpace(p))
		host = strings.TrimPrefix(host, "*.")
		if host != "" {
			out = append(out, host)
		}
	}
	return out
}
