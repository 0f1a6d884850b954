package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(viper.New(), filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ServerPort != "8080" || cfg.StorageDriver != DriverPostgres {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.DedupWindow != 50 || cfg.SuppressionWindow().Minutes() != 10 {
		t.Errorf("dedup=%d suppression=%v", cfg.DedupWindow, cfg.SuppressionWindow())
	}
	if cfg.PushgatewayURL != "" {
		t.Errorf("PushgatewayURL = %q, want empty", cfg.PushgatewayURL)
	}
}

func TestLoadEnvFileAndEnvironment(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	content := "STORAGE_DRIVER=sqlite\nSQLITE_PATH=/tmp/wm.db\nDEDUP_WINDOW=20\n"
	if err := os.WriteFile(envFile, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("PUSHGATEWAY_URL", "http://pushgateway:9091")

	cfg, err := load(viper.New(), envFile)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.StorageDriver != DriverSQLite || cfg.SQLitePath != "/tmp/wm.db" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.DedupWindow != 20 {
		t.Errorf("DedupWindow = %d", cfg.DedupWindow)
	}
	if cfg.ServerPort != "9090" {
		t.Errorf("env override not applied: %q", cfg.ServerPort)
	}
	if cfg.PushgatewayURL != "http://pushgateway:9091" {
		t.Errorf("PushgatewayURL = %q", cfg.PushgatewayURL)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "mysql")
	if _, err := load(viper.New(), filepath.Join(t.TempDir(), "none.env")); err == nil {
		t.Fatal("expected an error for an unknown driver")
	}
}
