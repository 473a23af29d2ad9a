package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("defaults should load: %v", err)
	}
	if cfg.Source.Shape != ShapeDual {
		t.Fatalf("default shape should be dual, got %q", cfg.Source.Shape)
	}
	if cfg.Source.Timeout != 10*time.Second {
		t.Fatalf("default timeout should be 10s, got %s", cfg.Source.Timeout)
	}
	if cfg.Database.Driver != DriverSQLite || cfg.Database.Path != "data/gold_prices.db" {
		t.Fatalf("unexpected database defaults: %+v", cfg.Database)
	}
	if cfg.Source.Layout.TableTitle != "新臺幣黃金牌價" {
		t.Fatalf("unexpected table title %q", cfg.Source.Layout.TableTitle)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "goldprice.yaml")
	body := []byte(`
source:
  shape: single
  timeout: 3s
database:
  path: /tmp/prices.db
chart:
  limit: 25
`)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GOLDPRICE_SOURCE_URL", "http://example.test/gold")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Source.Shape != ShapeSingle {
		t.Fatalf("shape from file not applied: %q", cfg.Source.Shape)
	}
	if cfg.Source.Timeout != 3*time.Second {
		t.Fatalf("timeout from file not applied: %s", cfg.Source.Timeout)
	}
	if cfg.Source.URL != "http://example.test/gold" {
		t.Fatalf("env override not applied: %q", cfg.Source.URL)
	}
	if cfg.ResolveChartLimit(0) != 25 || cfg.ResolveChartLimit(5) != 5 {
		t.Fatalf("chart limit resolution wrong")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	chdir(t, t.TempDir())

	base, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	cases := map[string]func(c *Config){
		"unknown shape":        func(c *Config) { c.Source.Shape = "triple" },
		"zero timeout":         func(c *Config) { c.Source.Timeout = 0 },
		"unknown driver":       func(c *Config) { c.Database.Driver = "mysql" },
		"postgres without dsn": func(c *Config) { c.Database.Driver = DriverPostgres },
		"no table selector": func(c *Config) {
			c.Source.Layout.TableTitle = ""
			c.Source.Layout.TableLabel = ""
		},
		"telegram without token": func(c *Config) { c.Alerting.Telegram.Enabled = true },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := *base
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("%s should be rejected", name)
			}
		})
	}
}
