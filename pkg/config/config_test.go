package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/drivesync/pkg/errors"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Remote.TenantID = "tenant"
	cfg.Remote.ClientID = "client"
	cfg.Remote.ClientSecret = "secret"
	cfg.Remote.SiteHost = "contoso.sharepoint.com"
	cfg.Remote.SitePath = "/sites/Legal"
	cfg.Sink.Bucket = "mirror"
	cfg.Sink.AccessKey = "AKIA"
	cfg.Sink.SecretKey = "shh"
	return cfg
}

func TestDefault_MatchesDeployment(t *testing.T) {
	cfg := Default()
	if cfg.Snapshot.Interval != 600*time.Second || cfg.Reconcile.Interval != 900*time.Second {
		t.Errorf("intervals = %s / %s", cfg.Snapshot.Interval, cfg.Reconcile.Interval)
	}
	if cfg.Snapshot.Filename != "sharepoint_data.json" {
		t.Errorf("filename = %q", cfg.Snapshot.Filename)
	}
	if cfg.Sink.ManifestPrefix != "JSON Master" || cfg.Sink.RecordsPrefix != "sharepoint-export/" {
		t.Errorf("prefixes = %q %q", cfg.Sink.ManifestPrefix, cfg.Sink.RecordsPrefix)
	}
	if cfg.Reconcile.AcceptedMediaType != "application/pdf" || cfg.Reconcile.AcceptedExtension != ".pdf" {
		t.Errorf("accepted = %q %q", cfg.Reconcile.AcceptedMediaType, cfg.Reconcile.AcceptedExtension)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing tenant", func(c *Config) { c.Remote.TenantID = "" }, "remote.tenantId"},
		{"missing bucket", func(c *Config) { c.Sink.Bucket = "" }, "sink.bucket"},
		{"dir sink needs dir", func(c *Config) { c.Sink.Kind = "dir" }, "sink.dir"},
		{"unknown sink", func(c *Config) { c.Sink.Kind = "gcs" }, "sink.kind"},
		{"zero interval", func(c *Config) { c.Reconcile.Interval = 0 }, "reconcile.interval"},
		{"no stages", func(c *Config) { c.Snapshot.Enabled = false; c.Reconcile.Enabled = false }, "at least one"},
		{"unknown ledger", func(c *Config) { c.Ledger.Backend = "etcd" }, "ledger.backend"},
		{"output dir is manifest dir", func(c *Config) { c.Paths.OutputDir = c.Paths.ManifestDir }, "paths.outputDir"},
		{"output dir is manifest dir unclean", func(c *Config) { c.Paths.OutputDir = c.Paths.ManifestDir + "/./" }, "paths.outputDir"},
		{"output dir inside manifest dir", func(c *Config) { c.Paths.OutputDir = filepath.Join(c.Paths.ManifestDir, "records") }, "paths.outputDir"},
		{"output dir beside manifest dir", func(c *Config) { c.Paths.OutputDir = c.Paths.ManifestDir + "-records" }, ""},
		{"overlap ignored without reconcile", func(c *Config) { c.Reconcile.Enabled = false; c.Paths.OutputDir = c.Paths.ManifestDir }, ""},
		{"disabled stage skips its checks", func(c *Config) { c.Snapshot.Enabled = false; c.Snapshot.Interval = 0 }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want it to mention %q", err, tt.wantErr)
			}
			if !errors.Is(err, apperrors.ErrConfig) {
				t.Fatalf("error %v is not ErrConfig", err)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		"TENANT_ID":                    "legacy-tenant",
		"DRIVESYNC_CLIENT_ID":          "new-client",
		"CLIENT_ID":                    "legacy-client",
		"STEP1_INTERVAL":               "120",
		"DRIVESYNC_RECONCILE_INTERVAL": "90s",
		"DRIVESYNC_KAFKA_BROKERS":      "k1:9092,k2:9092",
		"DRIVESYNC_POSTGRES_ENABLED":   "true",
		"LOCAL_TEMP_DIR":               "/tmp/pdfs",
	}
	cfg := Default()
	applyEnvOverrides(cfg, func(k string) string { return env[k] })

	if cfg.Remote.TenantID != "legacy-tenant" {
		t.Errorf("tenant = %q", cfg.Remote.TenantID)
	}
	if cfg.Remote.ClientID != "new-client" {
		t.Errorf("prefixed name should win, got %q", cfg.Remote.ClientID)
	}
	if cfg.Snapshot.Interval != 120*time.Second {
		t.Errorf("snapshot interval = %s", cfg.Snapshot.Interval)
	}
	if cfg.Reconcile.Interval != 90*time.Second {
		t.Errorf("reconcile interval = %s", cfg.Reconcile.Interval)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("brokers = %v", cfg.Kafka.Brokers)
	}
	if !cfg.Postgres.Enabled {
		t.Error("postgres should be enabled")
	}
	if cfg.Paths.ScratchDir != "/tmp/pdfs" || cfg.Paths.OutputDir != "/tmp/pdfs" {
		t.Errorf("paths = %+v", cfg.Paths)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drivesync.yaml")
	yaml := `
remote:
  tenantId: t
  clientId: c
  clientSecret: s
  siteHost: contoso.sharepoint.com
  sitePath: /sites/Legal
sink:
  kind: dir
  dir: /var/lib/drivesync/mirror
snapshot:
  interval: 5m
reconcile:
  enabled: false
ledger:
  backend: none
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Snapshot.Interval != 5*time.Minute {
		t.Errorf("interval = %s", cfg.Snapshot.Interval)
	}
	if cfg.Reconcile.Enabled {
		t.Error("reconcile should be disabled")
	}
	if cfg.Snapshot.Filename != "sharepoint_data.json" {
		t.Errorf("defaults should survive partial YAML, filename = %q", cfg.Snapshot.Filename)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
