package main

import (
	"testing"

	"github.com/Adithya-Monish-Kumar-K/drivesync/pkg/config"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Remote.TenantID = "t"
	cfg.Remote.ClientID = "c"
	cfg.Remote.ClientSecret = "s"
	cfg.Remote.SiteHost = "contoso.sharepoint.com"
	cfg.Remote.SitePath = "/sites/Legal"
	cfg.Sink.Kind = "dir"
	cfg.Sink.Dir = "/tmp/mirror"
	return cfg
}

func TestSelectStages(t *testing.T) {
	tests := []struct {
		stage       string
		snap, recon bool
		wantErr     bool
	}{
		{"both", true, true, false},
		{"snapshot", true, false, false},
		{"reconcile", false, true, false},
		{"everything", false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.stage, func(t *testing.T) {
			cfg := testConfig()
			err := selectStages(cfg, tt.stage)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("selectStages: %v", err)
			}
			if cfg.Snapshot.Enabled != tt.snap || cfg.Reconcile.Enabled != tt.recon {
				t.Fatalf("snapshot=%v reconcile=%v", cfg.Snapshot.Enabled, cfg.Reconcile.Enabled)
			}
		})
	}
}

func TestSelectStages_EnablesDisabledStage(t *testing.T) {
	cfg := testConfig()
	cfg.Reconcile.Enabled = false
	if err := selectStages(cfg, "reconcile"); err != nil {
		t.Fatalf("selectStages: %v", err)
	}
	if !cfg.Reconcile.Enabled || cfg.Snapshot.Enabled {
		t.Fatalf("snapshot=%v reconcile=%v", cfg.Snapshot.Enabled, cfg.Reconcile.Enabled)
	}
}
