package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func envFrom(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoadFromEnv(t *testing.T) {
	cfg, err := Load("", envFrom(map[string]string{
		"API_KEY":             " secret ",
		"DISCORD_WEBHOOK_URL": "https://discord.example/api/webhooks/1/abc",
		"HTTP_TIMEOUT":        "7",
		"MENTION_ROLE_ID":     "1234",
		"DEBUG_LOGS":          "Yes",
		"PORT":                "9090",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.APIKey != "secret" {
		t.Fatalf("api key: %q", cfg.Auth.APIKey)
	}
	if cfg.Webhook.Timeout != 7*time.Second {
		t.Fatalf("timeout: %s", cfg.Webhook.Timeout)
	}
	if cfg.Webhook.MentionRoleID != "1234" || !cfg.DebugLogs {
		t.Fatalf("mention/debug not applied")
	}
	if cfg.Ingest.REST.Addr != ":9090" {
		t.Fatalf("addr: %s", cfg.Ingest.REST.Addr)
	}
}

func TestLoadRequiresSecretAndWebhook(t *testing.T) {
	if _, err := Load("", envFrom(map[string]string{"DISCORD_WEBHOOK_URL": "https://x.example"})); err == nil {
		t.Fatalf("expected error without API_KEY")
	}
	if _, err := Load("", envFrom(map[string]string{"API_KEY": "k"})); err == nil {
		t.Fatalf("expected error without webhook url")
	}
}

func TestLoadRejectsBadTimeout(t *testing.T) {
	_, err := Load("", envFrom(map[string]string{
		"API_KEY":             "k",
		"DISCORD_WEBHOOK_URL": "https://x.example",
		"HTTP_TIMEOUT":        "soon",
	}))
	if err == nil {
		t.Fatalf("expected timeout parse error")
	}
}

func TestLoadYAMLFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "banalert.yaml")
	content := `
webhook:
  url: https://file.example/hook
  timeout: 3s
auth:
  api_key: from-file
forward:
  dedupe_window: 30s
  ignore_ips: ["10.0.0.0/8", "192.0.2.1"]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path, envFrom(map[string]string{"API_KEY": "from-env"}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.APIKey != "from-env" {
		t.Fatalf("env should override file, got %q", cfg.Auth.APIKey)
	}
	if cfg.Webhook.URL != "https://file.example/hook" || cfg.Webhook.Timeout != 3*time.Second {
		t.Fatalf("webhook from file not applied: %+v", cfg.Webhook)
	}
	if cfg.Forward.DedupeWindow != 30*time.Second || len(cfg.Forward.IgnoreIPs) != 2 {
		t.Fatalf("forward config not applied: %+v", cfg.Forward)
	}
}

func TestValidateIgnoreIPs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Auth.APIKey = "k"
	cfg.Webhook.URL = "https://x.example"
	cfg.Forward.IgnoreIPs = []string{"not-an-ip"}
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected ignore_ips error")
	}
}

func TestParseIPOrPrefix(t *testing.T) {
	p, err := ParseIPOrPrefix("10.1.2.3")
	if err != nil || p.Bits() != 32 {
		t.Fatalf("single address: %v %v", p, err)
	}
	p, err = ParseIPOrPrefix("10.1.2.3/16")
	if err != nil || p.String() != "10.1.0.0/16" {
		t.Fatalf("prefix: %v %v", p, err)
	}
}
