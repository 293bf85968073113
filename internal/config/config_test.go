package config

import (
	"os"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen.Address != ":5432" {
		t.Fatalf("unexpected default listen address: %q", cfg.Listen.Address)
	}
	if cfg.Backend.Port != 5433 {
		t.Fatalf("unexpected default backend port: %d", cfg.Backend.Port)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	os.Setenv("PGROLLBACK_BACKEND_HOST", "db.internal")
	os.Setenv("PGROLLBACK_BACKEND_PORT", "6000")
	defer os.Unsetenv("PGROLLBACK_BACKEND_HOST")
	defer os.Unsetenv("PGROLLBACK_BACKEND_PORT")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend.Host != "db.internal" || cfg.Backend.Port != 6000 {
		t.Fatalf("env override not applied: %+v", cfg.Backend)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "cfg-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.WriteString("listen:\n  address: \":15432\"\nbackend:\n  host: pg\n  port: 5432\n")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()

	cfg, err := LoadConfig(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen.Address != ":15432" || cfg.Backend.Host != "pg" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	os.Setenv("PGROLLBACK_BACKEND_HOST", "")
	defer os.Unsetenv("PGROLLBACK_BACKEND_HOST")

	cfg := &Config{}
	if err := validateConfig(cfg); err == nil {
		t.Fatal("expected validation error for empty config")
	}
}
