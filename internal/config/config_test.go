package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "bind_address: 0.0.0.0\nport: 9090\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := Default()
	if err := LoadYAML(path, cfg); err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if cfg.BindAddress != "0.0.0.0" || cfg.Port != 9090 {
		t.Fatalf("unexpected config after load: %+v", cfg)
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{"bind_address":"1.2.3.4","port":1234}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := Default()
	if err := Load(path, cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BindAddress != "1.2.3.4" || cfg.Port != 1234 {
		t.Fatalf("unexpected config after load: %+v", cfg)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := Default()
	t.Setenv("KISSVDB_PORT", "7070")
	t.Setenv("KISSVDB_NATS_ENABLED", "true")

	if err := ApplyEnvOverrides("KISSVDB", cfg); err != nil {
		t.Fatalf("apply env overrides: %v", err)
	}
	if cfg.Port != 7070 {
		t.Fatalf("expected port overridden to 7070, got %d", cfg.Port)
	}
	if !cfg.NATS.Enabled {
		t.Fatalf("expected nested NATS.Enabled to be overridden to true")
	}
}

func TestDefaultValidator(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg, DefaultValidator()); err != nil {
		t.Fatalf("expected default config to validate, got %v", err)
	}

	cfg.Port = 0
	if err := Validate(cfg, DefaultValidator()); err == nil {
		t.Fatalf("expected validation error for port 0")
	}
}
