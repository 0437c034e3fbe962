package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), writeConfig(t, "app:\n  env: test\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.App.Name != "rosterrecon" || cfg.App.Env != "test" {
		t.Fatalf("app = %+v", cfg.App)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN == "" {
		t.Fatalf("database = %+v", cfg.Database)
	}
	if cfg.Reingest.Transport != "none" || cfg.Reingest.RetryAfter != 5*time.Minute {
		t.Fatalf("reingest = %+v", cfg.Reingest)
	}
	if cfg.Redis.LockTTL != 30*time.Second || cfg.Intake.PhoneRegion != "US" {
		t.Fatalf("redis=%+v intake=%+v", cfg.Redis, cfg.Intake)
	}
}

func TestLoadReadsFileAndEnv(t *testing.T) {
	t.Setenv("ORC_REINGEST_URL", "http://ingest.local/reingest")
	path := writeConfig(t, "database:\n  driver: mysql\n  dsn: user:pw@tcp(localhost:3306)/recon\n  isolation: serializable\nreingest:\n  transport: http\n  timeout: 5s\n")

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Driver != "mysql" || cfg.Database.Isolation != "serializable" {
		t.Fatalf("database = %+v", cfg.Database)
	}
	if cfg.Reingest.URL != "http://ingest.local/reingest" || cfg.Reingest.Timeout != 5*time.Second {
		t.Fatalf("reingest = %+v", cfg.Reingest)
	}
}

func TestLoadRejectsIncompleteTransport(t *testing.T) {
	cases := map[string]string{
		"http without url":  "reingest:\n  transport: http\n",
		"nats without url":  "reingest:\n  transport: nats\n",
		"unknown transport": "reingest:\n  transport: carrier-pigeon\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(context.Background(), writeConfig(t, body)); err == nil {
				t.Fatalf("Load() expected error")
			}
		})
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
