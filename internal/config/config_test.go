package config

import (
	"os"
	"testing"
	"time"
)

func TestPresenceConfig_Defaults(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	tests := []struct {
		name     string
		actual   time.Duration
		expected time.Duration
	}{
		{"IdentificationTTL", cfg.Presence.IdentificationTTL, 15 * time.Minute},
		{"CooldownWindow", cfg.Presence.CooldownWindow, 15 * time.Minute},
		{"LockoutDuration", cfg.Presence.LockoutDuration, 15 * time.Minute},
		{"SecretTokenTTL", cfg.Presence.SecretTokenTTL, 5 * time.Minute},
		{"VerifyTokenTTL", cfg.Presence.VerifyTokenTTL, 30 * time.Minute},
		{"SweepInterval", cfg.Presence.SweepInterval, 2 * time.Minute},
	}

	for _, tt := range tests {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}

	if cfg.Presence.LockoutThreshold != 5 {
		t.Errorf("LockoutThreshold: got %d, want 5", cfg.Presence.LockoutThreshold)
	}
	if cfg.Presence.MaxIdentifiesPerHour != 12 {
		t.Errorf("MaxIdentifiesPerHour: got %d, want 12", cfg.Presence.MaxIdentifiesPerHour)
	}
}

func TestPresenceConfig_CustomValues(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("IDENTIFICATION_TTL", "10m")
	os.Setenv("LOCKOUT_THRESHOLD", "3")
	os.Setenv("SWEEP_INTERVAL", "1m")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Presence.IdentificationTTL != 10*time.Minute {
		t.Errorf("IdentificationTTL: got %v, want 10m", cfg.Presence.IdentificationTTL)
	}
	if cfg.Presence.LockoutThreshold != 3 {
		t.Errorf("LockoutThreshold: got %d, want 3", cfg.Presence.LockoutThreshold)
	}
	if cfg.Presence.SweepInterval != time.Minute {
		t.Errorf("SweepInterval: got %v, want 1m", cfg.Presence.SweepInterval)
	}
}

func TestPresenceConfig_SweepIntervalMustNotExceedShortestTTL(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("SWEEP_INTERVAL", "10m") // longer than the 5m secret token TTL
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load() = nil, want sweep interval validation error")
	}
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	os.Clearenv()
	os.Setenv("DB_PASSWORD", "test")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load() = nil, want missing JWT_SECRET error")
	}
}

func TestLoad_RejectsWeakJWTSecret(t *testing.T) {
	os.Setenv("JWT_SECRET", "short")
	os.Setenv("DB_PASSWORD", "test")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load() = nil, want weak secret error")
	}
}

func TestLoad_EmailEnabledRequiresFromAddress(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("EMAIL_ENABLED", "true")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load() = nil, want missing from-address error")
	}
}
