package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	t.Run("FirstRunCreatesDefaults", func(t *testing.T) {
		dir := t.TempDir()
		cfg, err := Load(dir)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Env != EnvTest {
			t.Fatalf("env = %q", cfg.Env)
		}
		if cfg.Storage.Backend != "file" {
			t.Fatalf("backend = %q", cfg.Storage.Backend)
		}
		if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err != nil {
			t.Fatalf("config.yaml not written: %v", err)
		}
	})
	t.Run("ReadsExisting", func(t *testing.T) {
		dir := t.TempDir()
		raw := "env: prod\nstorage:\n  backend: bolt\nrate_limit:\n  disabled: true\n"
		if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(raw), 0o644); err != nil {
			t.Fatal(err)
		}
		cfg, err := Load(dir)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Env != EnvProd || cfg.Storage.Backend != "bolt" || !cfg.RateLimit.Disabled {
			t.Fatalf("got %+v", cfg)
		}
	})
	t.Run("RejectsBadValues", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("env: staging\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(dir); err == nil {
			t.Fatal("expected error for unknown env")
		}
	})
}
