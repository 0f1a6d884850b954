package probe

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
targets:
  - url: " https://shop.test/ "
  - url: https://blog.test/post
    site_id: wm_blog
`))
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Targets) != 2 {
		t.Fatalf("targets = %+v", cfg.Targets)
	}
	if cfg.Targets[0].URL != "https://shop.test/" {
		t.Errorf("url not trimmed: %q", cfg.Targets[0].URL)
	}
	if cfg.Targets[1].SiteID != "wm_blog" {
		t.Errorf("site_id = %q", cfg.Targets[1].SiteID)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"empty", Config{}, "no targets"},
		{"relative", Config{Targets: []Target{{URL: "/page"}}}, "not absolute"},
		{"scheme", Config{Targets: []Target{{URL: "ftp://x.test/"}}}, "unsupported scheme"},
		{"duplicate", Config{Targets: []Target{{URL: "https://x.test/"}, {URL: "https://x.test/"}}}, "duplicates"},
		{"ok", Config{Targets: []Target{{URL: "https://x.test/"}, {URL: "https://y.test/"}}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.yaml")
	if err := os.WriteFile(path, []byte("targets:\n  - url: https://x.test/\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Targets[0].URL != "https://x.test/" {
		t.Errorf("targets = %+v", cfg.Targets)
	}
}
