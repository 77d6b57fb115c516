package config

import (
	"os"
	"reflect"
	"testing"
	"time"
)

func setRequiredEnv() {
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	os.Setenv("DB_PASSWORD", "test")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load() = nil, want error when JWT_SECRET is missing")
	}
}

func TestServerConfig_Timeouts_Defaults(t *testing.T) {
	setRequiredEnv()
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
		{"ReadTimeout", cfg.Server.ReadTimeout, 15 * time.Second},
		{"WriteTimeout", cfg.Server.WriteTimeout, 45 * time.Second},
		{"IdleTimeout", cfg.Server.IdleTimeout, 60 * time.Second},
	}

	for _, tt := range tests {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}
}

func TestServerConfig_Timeouts_InvalidDuration(t *testing.T) {
	setRequiredEnv()
	os.Setenv("SERVER_READ_TIMEOUT", "not-a-duration")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	// Invalid duration should fall back to default
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("ReadTimeout with invalid value: got %v, want %v", cfg.Server.ReadTimeout, 15*time.Second)
	}
}

func TestAdmissionDefaults(t *testing.T) {
	setRequiredEnv()
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	ints := []struct {
		name     string
		actual   int
		expected int
	}{
		{"BookingPerMinute", cfg.RateLimit.BookingPerMinute, 12},
		{"BookingPerHour", cfg.RateLimit.BookingPerHour, 120},
		{"AIPerMinute", cfg.RateLimit.AIPerMinute, 4},
		{"AIPerHour", cfg.RateLimit.AIPerHour, 30},
		{"MaxKeys", cfg.RateLimit.MaxKeys, 20000},
		{"AIMaxConcurrent", cfg.AI.MaxConcurrent, 2},
		{"AIMaxImageBytes", cfg.AI.MaxImageBytes, 3 * 1024 * 1024},
	}
	for _, tt := range ints {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %d, want %d", tt.name, tt.actual, tt.expected)
		}
	}

	if cfg.Auth.AdminCacheTTL != 180*time.Second {
		t.Errorf("AdminCacheTTL: got %v, want 180s", cfg.Auth.AdminCacheTTL)
	}
	if cfg.Auth.LoginMaxBackoff != 300*time.Second {
		t.Errorf("LoginMaxBackoff: got %v, want 300s", cfg.Auth.LoginMaxBackoff)
	}
	if want := []string{"127.0.0.1/32", "::1/128"}; !reflect.DeepEqual(cfg.Server.TrustedProxyCIDRs, want) {
		t.Errorf("TrustedProxyCIDRs: got %v, want %v", cfg.Server.TrustedProxyCIDRs, want)
	}
	if cfg.AI.Enabled() {
		t.Error("AI should be disabled without OPENAI_API_KEY")
	}
	if cfg.Notify.Enabled() {
		t.Error("notifications should be disabled without AWS_REGION/NOTIFY_FROM/NOTIFY_TO")
	}
}

func TestAdmissionOverridesAndClamps(t *testing.T) {
	setRequiredEnv()
	os.Setenv("BOOKING_MAX_PER_MINUTE", "3")
	os.Setenv("AI_MAX_CONCURRENT", "0")
	os.Setenv("ADMIN_CACHE_TTL", "-5s")
	os.Setenv("TRUSTED_PROXY_CIDRS", " 10.0.0.0/8, ,172.16.0.0/12 ")
	os.Setenv("ADMIN_EMAIL", "  Owner@Example.com ")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.RateLimit.BookingPerMinute != 3 {
		t.Errorf("BookingPerMinute: got %d, want 3", cfg.RateLimit.BookingPerMinute)
	}
	if cfg.AI.MaxConcurrent != 1 {
		t.Errorf("AI.MaxConcurrent is clamped to at least 1, got %d", cfg.AI.MaxConcurrent)
	}
	if cfg.Auth.AdminCacheTTL != 0 {
		t.Errorf("negative AdminCacheTTL is clamped to 0, got %v", cfg.Auth.AdminCacheTTL)
	}
	if want := []string{"10.0.0.0/8", "172.16.0.0/12"}; !reflect.DeepEqual(cfg.Server.TrustedProxyCIDRs, want) {
		t.Errorf("TrustedProxyCIDRs: got %v, want %v", cfg.Server.TrustedProxyCIDRs, want)
	}
	if cfg.Auth.AdminEmail != "owner@example.com" {
		t.Errorf("AdminEmail: got %q, want normalized", cfg.Auth.AdminEmail)
	}
}

func TestLoad_InvalidTrustedProxyCIDR(t *testing.T) {
	setRequiredEnv()
	os.Setenv("TRUSTED_PROXY_CIDRS", "10.0.0.0/8,not-a-cidr")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load() = nil, want error for invalid CIDR")
	}
}

func TestNotifyConfig_Enabled(t *testing.T) {
	setRequiredEnv()
	os.Setenv("AWS_REGION", "us-east-1")
	os.Setenv("NOTIFY_FROM", "turnos@example.com")
	os.Setenv("NOTIFY_TO", "owner@example.com,staff@example.com")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if !cfg.Notify.Enabled() {
		t.Error("Notify.Enabled() = false, want true")
	}
	if len(cfg.Notify.ToAddresses) != 2 {
		t.Errorf("ToAddresses: got %v", cfg.Notify.ToAddresses)
	}
}
