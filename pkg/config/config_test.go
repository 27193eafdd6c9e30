package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestMergeOnlyOverwritesNonZeroFields(t *testing.T) {
	base := Defaults()
	overlay := Config{Name: "coffeebot", ServerPort: 0, NLUMinLength: 5}
	Merge(&base, overlay)

	if base.Name != "coffeebot" {
		t.Fatalf("expected name to be overwritten, got %q", base.Name)
	}
	if base.ServerPort != 8080 {
		t.Fatalf("expected zero-valued overlay field to leave the default, got %d", base.ServerPort)
	}
	if base.NLUMinLength != 5 {
		t.Fatalf("expected nluMinLength to be overwritten, got %d", base.NLUMinLength)
	}
}

func TestSanitizeNameStripsDisallowedCharacters(t *testing.T) {
	got := SanitizeName("Coffee Bot!! 3000")
	if got != "coffeebot3000" {
		t.Fatalf("expected %q, got %q", "coffeebot3000", got)
	}
}

func TestFromJSONFileReadsConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	raw, _ := json.Marshal(Config{Name: "fromfile", ServerPort: 9090})
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c, err := FromJSONFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Name != "fromfile" || c.ServerPort != 9090 {
		t.Fatalf("unexpected config: %+v", c)
	}
}

func TestFromManifestReadsOnlyBotConfigKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "package.json")
	raw := []byte(`{"name":"host-package","botConfig":{"name":"manifestbot","nluMinLength":7}}`)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c, err := FromManifest(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Name != "manifestbot" || c.NLUMinLength != 7 {
		t.Fatalf("unexpected config: %+v", c)
	}
}

func TestLoadPrecedenceFlagsOverrideEverything(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "package.json")
	manifestRaw := []byte(`{"botConfig":{"name":"from-manifest","messageAdapter":"discord"}}`)
	if err := os.WriteFile(manifestPath, manifestRaw, 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := Load([]string{"-name", "from-flag"}, manifestPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Name != "from-flag" {
		t.Fatalf("expected flags to win, got %q", cfg.Name)
	}
	if cfg.MessageAdapter != "discord" {
		t.Fatalf("expected the manifest layer to still apply where flags didn't override, got %q", cfg.MessageAdapter)
	}
}
