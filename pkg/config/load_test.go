package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "veil.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  bind: "127.0.0.1:7999"
  api_prefix: "/admin"
  auth_key: "login-key"

upstream:
  proxies:
    - "http://proxy.example.com:8080"
  timeout: 300s

captcha:
  endpoint: "https://challenge.example.com"
  upload_key: "upload-key"
  solver:
    provider: "yescaptcha"
    client_key: "ck-1"

preauth:
  bind: "127.0.0.1:8001"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Bind != "127.0.0.1:7999" {
		t.Errorf("unexpected bind %q", cfg.Server.Bind)
	}
	if cfg.Server.APIPrefix != "/admin" {
		t.Errorf("unexpected api prefix %q", cfg.Server.APIPrefix)
	}
	if cfg.Upstream.Timeout != 300*time.Second {
		t.Errorf("unexpected timeout %v", cfg.Upstream.Timeout)
	}
	if cfg.Captcha.Solver.Provider != "yescaptcha" {
		t.Errorf("unexpected solver provider %q", cfg.Captcha.Solver.Provider)
	}
	if cfg.Preauth.Bind != "127.0.0.1:8001" {
		t.Errorf("unexpected preauth bind %q", cfg.Preauth.Bind)
	}

	// Defaults fill the gaps.
	if cfg.Server.Workers != 1 {
		t.Errorf("expected default workers 1, got %d", cfg.Server.Workers)
	}
	if cfg.Upstream.ConnectTimeout != 60*time.Second {
		t.Errorf("expected default connect timeout, got %v", cfg.Upstream.ConnectTimeout)
	}
	if cfg.Telemetry.Logging.Level != "info" {
		t.Errorf("expected default logging level, got %q", cfg.Telemetry.Logging.Level)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a mapping")
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  bind: "127.0.0.1:7999"
`)

	t.Setenv("VEIL_SERVER_BIND", "0.0.0.0:9000")
	t.Setenv("VEIL_CAPTCHA_ENDPOINT", "https://override.example.com")
	t.Setenv("VEIL_RATELIMIT_ENABLED", "true")
	t.Setenv("VEIL_UPSTREAM_INTERFACE", "192.0.2.10")
	t.Setenv("VEIL_UPSTREAM_IPV6_SUBNET", "2001:db8::/32")
	t.Setenv("VEIL_CAPTCHA_HAR_CHAT4", "/var/lib/veil/chat4.har")

	cfg, err := LoadWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadWithEnvOverrides failed: %v", err)
	}

	if cfg.Server.Bind != "0.0.0.0:9000" {
		t.Errorf("env override not applied, got %q", cfg.Server.Bind)
	}
	if cfg.Captcha.Endpoint != "https://override.example.com" {
		t.Errorf("env override not applied, got %q", cfg.Captcha.Endpoint)
	}
	if !cfg.RateLimit.Enabled {
		t.Error("env override not applied for ratelimit.enabled")
	}
	if cfg.Upstream.Interface != "192.0.2.10" {
		t.Errorf("env override not applied, got %q", cfg.Upstream.Interface)
	}
	if cfg.Upstream.IPv6Subnet != "2001:db8::/32" {
		t.Errorf("env override not applied, got %q", cfg.Upstream.IPv6Subnet)
	}
	if cfg.Captcha.HarFiles.Chat4 != "/var/lib/veil/chat4.har" {
		t.Errorf("env override not applied, got %q", cfg.Captcha.HarFiles.Chat4)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
	if cfg.Server.Bind != "0.0.0.0:7999" {
		t.Errorf("unexpected default bind %q", cfg.Server.Bind)
	}
	if cfg.RateLimit.Capacity != 60 || cfg.RateLimit.FillRate != 1 {
		t.Errorf("unexpected ratelimit defaults: %+v", cfg.RateLimit)
	}
	if cfg.RateLimit.Expire != 24*time.Hour {
		t.Errorf("unexpected ratelimit expire %v", cfg.RateLimit.Expire)
	}
}
