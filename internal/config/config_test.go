package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `anthropic:
  model: claude-test-model
crew:
  max_parallel: 4
  token_budget: 50000
  auto_review: false
  task_timeout: 2m
roles_file: /etc/crew/roles.yaml
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Anthropic.Model != "claude-test-model" {
		t.Errorf("model = %q", cfg.Anthropic.Model)
	}
	if cfg.Crew.MaxParallel != 4 {
		t.Errorf("max_parallel = %d", cfg.Crew.MaxParallel)
	}
	if cfg.Crew.TokenBudget != 50000 {
		t.Errorf("token_budget = %d", cfg.Crew.TokenBudget)
	}
	if cfg.Crew.AutoReview {
		t.Error("auto_review should be false")
	}
	if cfg.Crew.TaskTimeout != 2*time.Minute {
		t.Errorf("task_timeout = %s", cfg.Crew.TaskTimeout)
	}
	if cfg.RolesFile != "/etc/crew/roles.yaml" {
		t.Errorf("roles_file = %q", cfg.RolesFile)
	}

	// Unset keys keep their defaults.
	if cfg.Crew.MaxRework != 2 {
		t.Errorf("max_rework default = %d", cfg.Crew.MaxRework)
	}
	if cfg.Crew.MessageTimeout != 60*time.Second {
		t.Errorf("message_timeout default = %s", cfg.Crew.MessageTimeout)
	}
}

func TestLoadFromPathExpandsAPIKey(t *testing.T) {
	t.Setenv("TEST_CREW_KEY", "sk-ant-test-0123456789")
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("anthropic:\n  api_key: ${TEST_CREW_KEY}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Anthropic.APIKey != "sk-ant-test-0123456789" {
		t.Errorf("api_key = %q", cfg.Anthropic.APIKey)
	}
}

func TestGetAPIKeyPrecedence(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-from-env")
	cfg := Default()
	cfg.Anthropic.APIKey = "sk-ant-from-config"

	key, err := GetAPIKey(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if key != "sk-ant-from-env" {
		t.Errorf("environment should win, got %q", key)
	}

	t.Setenv("ANTHROPIC_API_KEY", "")
	key, err = GetAPIKey(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if key != "sk-ant-from-config" {
		t.Errorf("config should be the fallback, got %q", key)
	}

	if _, err := GetAPIKey(Default()); err != ErrNoAPIKey {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestValidateAPIKey(t *testing.T) {
	cases := []struct {
		key     string
		wantErr bool
	}{
		{"", true},
		{"sk-ant-short", true},
		{"not-a-key-at-all-really", true},
		{"sk-ant-api03-abcdefghij", false},
	}
	for _, tc := range cases {
		if err := ValidateAPIKey(tc.key); (err != nil) != tc.wantErr {
			t.Errorf("ValidateAPIKey(%q) error = %v, wantErr %v", tc.key, err, tc.wantErr)
		}
	}
}

func TestMaskAPIKey(t *testing.T) {
	if got := MaskAPIKey(""); got != "(not set)" {
		t.Errorf("empty key mask = %q", got)
	}
	if got := MaskAPIKey("short"); got != "***" {
		t.Errorf("short key mask = %q", got)
	}
	got := MaskAPIKey("sk-ant-REDACTED")
	if got != "sk-ant-...mnop" {
		t.Errorf("mask = %q", got)
	}
}
