package config

import (
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	configViper := NewViper()
	configViper.Set("session.signing_secret", "secret")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.DatabaseDriver != DriverSQLite {
		t.Fatalf("expected sqlite driver, got %q", cfg.DatabaseDriver)
	}
	if cfg.SessionTTL != 8*time.Hour {
		t.Fatalf("unexpected session ttl %s", cfg.SessionTTL)
	}
	if cfg.Mail.FromName != "Registration Clerk" {
		t.Fatalf("unexpected mail sender %q", cfg.Mail.FromName)
	}
	if cfg.TokenTTL != 72*time.Hour {
		t.Fatalf("unexpected token ttl %s", cfg.TokenTTL)
	}
	if cfg.Version.API != "v1" {
		t.Fatalf("unexpected api version %q", cfg.Version.API)
	}
}

func TestLoadRejectsMissingSecret(t *testing.T) {
	if _, err := Load(NewViper()); err == nil {
		t.Fatal("expected missing secret to be rejected")
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	configViper := NewViper()
	configViper.Set("session.signing_secret", "secret")
	configViper.Set("database.driver", "oracle")

	if _, err := Load(configViper); err == nil {
		t.Fatal("expected unknown driver to be rejected")
	}
}

func TestLoadTrimsBaseURL(t *testing.T) {
	configViper := NewViper()
	configViper.Set("session.signing_secret", "secret")
	configViper.Set("app.base_url", "https://delphi.example.org/")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.BaseURL != "https://delphi.example.org" {
		t.Fatalf("unexpected base url %q", cfg.BaseURL)
	}
}

func TestLoadReadsHTTPSettings(t *testing.T) {
	configViper := NewViper()
	configViper.Set("session.signing_secret", "secret")
	configViper.Set("http.allowed_origins", []string{"https://council.example.org"})
	configViper.Set("http.secure_cookies", true)

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "https://council.example.org" {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
	if !cfg.SecureCookies {
		t.Fatal("expected secure cookies")
	}
	if cfg.HeartbeatInterval != 30*time.Second {
		t.Fatalf("unexpected heartbeat interval %s", cfg.HeartbeatInterval)
	}
}
