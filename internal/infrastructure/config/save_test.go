package config

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		hour    int
		minute  int
		wantErr bool
	}{
		{"03:00", 3, 0, false},
		{"21:30", 21, 30, false},
		{" 09:05 ", 9, 5, false},
		{"24:00", 0, 0, true},
		{"12:60", 0, 0, true},
		{"noon", 0, 0, true},
		{"", 0, 0, true},
	}
	for _, tt := range tests {
		h, m, err := ParseClock(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseClock(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseClock(%q): %v", tt.in, err)
			continue
		}
		if h != tt.hour || m != tt.minute {
			t.Errorf("ParseClock(%q) = %d:%d, want %d:%d", tt.in, h, m, tt.hour, tt.minute)
		}
	}
}

func TestSavePatch_MergesWithoutResetting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("email:\n  enabled: true\n  to: me@example.com\nai:\n  model: qwen3:8b\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := SavePatch(path, map[string]any{
		"email": map[string]any{"to": "you@example.com"},
	})
	if err != nil {
		t.Fatalf("save patch: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]any
	if err := yaml.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}

	email, _ := out["email"].(map[string]any)
	if email["to"] != "you@example.com" {
		t.Errorf("patched value missing: %v", email)
	}
	if email["enabled"] != true {
		t.Errorf("sibling key was reset: %v", email)
	}
	ai, _ := out["ai"].(map[string]any)
	if ai["model"] != "qwen3:8b" {
		t.Errorf("untouched section was reset: %v", ai)
	}
}

func TestSavePatch_CreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := SavePatch(path, map[string]any{"server": map[string]any{"port": 8420}}); err != nil {
		t.Fatalf("save patch: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file not created: %v", err)
	}
}

func TestMaskSecrets(t *testing.T) {
	settings := map[string]any{
		"email": map[string]any{
			"password": "hunter2",
			"username": "me@example.com",
			"to":       "me@example.com",
		},
		"moltbook": map[string]any{"api_key": "mb-123"},
		"telegram": map[string]any{"bot_token": ""},
	}
	MaskSecrets(settings)

	email := settings["email"].(map[string]any)
	if email["password"] != "********" || email["username"] != "********" {
		t.Errorf("credentials not masked: %v", email)
	}
	if email["to"] != "me@example.com" {
		t.Errorf("non-secret field should survive: %v", email)
	}
	if settings["moltbook"].(map[string]any)["api_key"] != "********" {
		t.Error("api_key not masked")
	}
	if settings["telegram"].(map[string]any)["bot_token"] != "" {
		t.Error("empty secret should stay empty")
	}
}
