package testsupport

import (
	"path/filepath"
	"testing"

	"oshimaint/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Remote credentials point nowhere; pacing is disabled.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Pacing.RequestDelayMS = 0
	cfgVal.Supabase.URL = "http://127.0.0.1:0"
	cfgVal.Supabase.ServiceRoleKey = "test"
	cfgVal.YouTube.APIKey = "test"
	cfgVal.TMDB.APIKey = "test"
	cfgVal.Notifications.OnSuccess = false
	cfgVal.Notifications.OnFailure = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithAffiliateIDs sets the ValueCommerce identifiers on the test config.
func WithAffiliateIDs(sid, pid string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Affiliate.ValueCommerceSID = sid
		b.cfg.Affiliate.ValueCommercePID = pid
	}
}

// WithNtfyTopic enables ntfy notifications against the given topic URL.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
		b.cfg.Notifications.OnSuccess = true
		b.cfg.Notifications.OnFailure = true
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
