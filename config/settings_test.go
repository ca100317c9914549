package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ERP_SERVER_URL", "http://erp.local:8069")
	t.Setenv("ERP_DATABASE", "prod")
	t.Setenv("ERP_USERNAME", "importer")
	t.Setenv("ERP_PASSWORD", "secret")

	s := Load()
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if s.Workers != 6 || s.BatchSize != 100 {
		t.Fatalf("workers=%d batch=%d", s.Workers, s.BatchSize)
	}
	if s.MaxRetries != 3 || s.RetryBaseDelay != 2*time.Second || s.RetryMaxDelay != 2*time.Minute {
		t.Fatalf("retry settings = %+v", s)
	}
	if s.CallTimeout != 30*time.Second || s.ReconnectCooldown != 30*time.Second {
		t.Fatalf("timeouts = %+v", s)
	}
	if s.RunsDir != "runs" {
		t.Fatalf("runs dir = %q", s.RunsDir)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ERP_SERVER_URL", "http://erp.local:8069")
	t.Setenv("ERP_DATABASE", "prod")
	t.Setenv("ERP_USERNAME", "importer")
	t.Setenv("ERP_PASSWORD", "secret")
	t.Setenv("IMPORT_WORKERS", "12")
	t.Setenv("ERP_SESSION_MAX_AGE", "30m")

	s := Load()
	if s.Workers != 12 {
		t.Fatalf("workers = %d", s.Workers)
	}
	if s.MaxSessionAge != 30*time.Minute {
		t.Fatalf("session age = %s", s.MaxSessionAge)
	}
}

func TestValidateRejectsMissingCredentials(t *testing.T) {
	t.Setenv("ERP_SERVER_URL", "")
	t.Setenv("ERP_DATABASE", "")
	t.Setenv("ERP_USERNAME", "")
	t.Setenv("ERP_PASSWORD", "")

	if err := Load().Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestBadEnvValuesFallBack(t *testing.T) {
	t.Setenv("IMPORT_WORKERS", "not-a-number")
	t.Setenv("ERP_CALL_TIMEOUT", "-5s")

	s := Load()
	if s.Workers != 6 {
		t.Fatalf("workers = %d", s.Workers)
	}
	if s.CallTimeout != 30*time.Second {
		t.Fatalf("timeout = %s", s.CallTimeout)
	}
}
