package probe

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the probe targets file.
type Config struct {
	Targets []Target `yaml:"targets"`
}

// Target is one page to load and monitor. SiteID overrides the token found in
// the page's snippet; it is required for pages that do not embed it.
type Target struct {
	URL    string `yaml:"url"`
	SiteID string `yaml:"site_id"`
}

// Load reads, validates and normalises the targets file at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read targets: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse targets: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	Normalize(&cfg)
	return &cfg, nil
}

// Validate checks configuration correctness.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil || len(cfg.Targets) == 0 {
		return fmt.Errorf("no targets defined")
	}
	seen := make(map[string]int)
	for i, t := range cfg.Targets {
		u, err := url.Parse(strings.TrimSpace(t.URL))
		if err != nil || u.Host == "" {
			return fmt.Errorf("target %d: url %q is not absolute", i, t.URL)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("target %d: unsupported scheme %q", i, u.Scheme)
		}
		if prev, dup := seen[u.String()]; dup {
			return fmt.Errorf("target %d: url %q duplicates target %d", i, t.URL, prev)
		}
		seen[u.String()] = i
	}
	return nil
}

// Normalize applies post-validation normalization.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	for i := range cfg.Targets {
		t := &cfg.Targets[i]
		t.URL = strings.TrimSpace(t.URL)
		t.SiteID = strings.TrimSpace(t.SiteID)
	}
}
