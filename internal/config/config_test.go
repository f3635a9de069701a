package config

import (
	"testing"

	"github.com/haasonsaas/webagent/pkg/models"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	if cfg.Transport != TransportStdio {
		t.Errorf("Transport = %q, want stdio", cfg.Transport)
	}
	if cfg.MaxSessions != DefaultMaxSessions {
		t.Errorf("MaxSessions = %d, want %d", cfg.MaxSessions, DefaultMaxSessions)
	}
	if !cfg.Headless {
		t.Error("Headless should default to true")
	}
	if cfg.PolicyMode != models.PolicyModelOwnsAction {
		t.Errorf("PolicyMode = %q, want model_owns_action", cfg.PolicyMode)
	}
	if cfg.SessionMaxAgeMS != DefaultSessionMaxAgeMS {
		t.Errorf("SessionMaxAgeMS = %d", cfg.SessionMaxAgeMS)
	}
	if cfg.TracesRoot == "" {
		t.Error("TracesRoot should be resolved")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("WEBAGENT_TRANSPORT", "REST")
	t.Setenv("WEBAGENT_MAX_SESSIONS", "9")
	t.Setenv("WEBAGENT_HEADLESS", "false")
	t.Setenv("WEBAGENT_POLICY_MODE", "deterministic")
	t.Setenv("WEBAGENT_ALLOWLIST", "example.com, *.Example.ORG ,")
	t.Setenv("WEBAGENT_SESSION_MAX_AGE_MS", "60000")

	cfg := FromEnv()

	if cfg.Transport != TransportREST {
		t.Errorf("Transport = %q, want rest", cfg.Transport)
	}
	if cfg.MaxSessions != 9 {
		t.Errorf("MaxSessions = %d, want 9", cfg.MaxSessions)
	}
	if cfg.Headless {
		t.Error("Headless should be false")
	}
	if cfg.PolicyMode != models.PolicyDeterministic {
		t.Errorf("PolicyMode = %q", cfg.PolicyMode)
	}
	want := []string{"example.com", "example.org"}
	if len(cfg.Allowlist) != 2 || cfg.Allowlist[0] != want[0] || cfg.Allowlist[1] != want[1] {
		t.Errorf("Allowlist = %v, want %v", cfg.Allowlist, want)
	}
	if cfg.SessionMaxAgeMS != 60000 {
		t.Errorf("SessionMaxAgeMS = %d, want 60000", cfg.SessionMaxAgeMS)
	}
}

func TestFromEnvDefensiveParsing(t *testing.T) {
	t.Setenv("WEBAGENT_MAX_SESSIONS", "-3")
	t.Setenv("WEBAGENT_SESSION_MAX_AGE_MS", "NaN")
	t.Setenv("WEBAGENT_TRANSPORT", "carrier-pigeon")
	t.Setenv("WEBAGENT_HEADLESS", "maybe")

	cfg := FromEnv()

	if cfg.MaxSessions != DefaultMaxSessions {
		t.Errorf("MaxSessions = %d, want default on negative input", cfg.MaxSessions)
	}
	if cfg.SessionMaxAgeMS != DefaultSessionMaxAgeMS {
		t.Errorf("SessionMaxAgeMS = %d, want default on NaN", cfg.SessionMaxAgeMS)
	}
	if cfg.Transport != TransportStdio {
		t.Errorf("Transport = %q, want stdio fallback", cfg.Transport)
	}
	if !cfg.Headless {
		t.Error("Headless should fall back to true")
	}
}
