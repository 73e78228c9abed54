package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"oshimaint/internal/config"
)

func TestLoadDefaultConfigUsesEnvAndExpandsPaths(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://example.supabase.co/")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "service-key")
	t.Setenv("TMDB_API_KEY", "test-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "oshimaint")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.JournalPath() != filepath.Join(wantState, "journal.db") {
		t.Fatalf("unexpected journal path: %q", cfg.JournalPath())
	}
	if cfg.Supabase.URL != "https://example.supabase.co" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Supabase.URL)
	}
	if cfg.Supabase.ServiceRoleKey != "service-key" {
		t.Fatalf("expected service key from env, got %q", cfg.Supabase.ServiceRoleKey)
	}
	if cfg.TMDB.APIKey != "test-key" {
		t.Fatalf("expected TMDB key from env, got %q", cfg.TMDB.APIKey)
	}
	if cfg.Store.Backend != config.BackendSupabase {
		t.Fatalf("unexpected backend: %q", cfg.Store.Backend)
	}
	if cfg.Classifier.ShortTitleThreshold != 15 {
		t.Fatalf("unexpected short title threshold: %d", cfg.Classifier.ShortTitleThreshold)
	}
	if cfg.RequestDelay().Milliseconds() != 300 {
		t.Fatalf("unexpected request delay: %v", cfg.RequestDelay())
	}
	if err := cfg.RequireStore(); err != nil {
		t.Fatalf("RequireStore: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "oshimaint.toml")

	type payload struct {
		Store struct {
			Backend string `toml:"backend"`
		} `toml:"store"`
		Postgres struct {
			DSN string `toml:"dsn"`
		} `toml:"postgres"`
		Pacing struct {
			RequestDelayMS int `toml:"request_delay_ms"`
		} `toml:"pacing"`
		Classifier struct {
			ChannelNames []string `toml:"channel_names"`
		} `toml:"classifier"`
	}
	custom := payload{}
	custom.Store.Backend = "Postgres"
	custom.Postgres.DSN = "postgres://localhost/oshi"
	custom.Pacing.RequestDelayMS = 500
	custom.Classifier.ChannelNames = []string{" よにのちゃんねる ", "よにのちゃんねる", ""}
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}
	t.Setenv("DATABASE_URL", "")

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Store.Backend != config.BackendPostgres {
		t.Fatalf("expected backend to be lowercased, got %q", cfg.Store.Backend)
	}
	if cfg.Postgres.DSN != "postgres://localhost/oshi" {
		t.Fatalf("unexpected dsn: %q", cfg.Postgres.DSN)
	}
	if cfg.Pacing.RequestDelayMS != 500 {
		t.Fatalf("expected request delay 500, got %d", cfg.Pacing.RequestDelayMS)
	}
	if len(cfg.Classifier.ChannelNames) != 1 || cfg.Classifier.ChannelNames[0] != "よにのちゃんねる" {
		t.Fatalf("expected channel names deduplicated, got %q", cfg.Classifier.ChannelNames)
	}
	if err := cfg.RequireStore(); err != nil {
		t.Fatalf("RequireStore: %v", err)
	}
}

func TestEnvVarOverridesConfigFileForCredentials(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "oshimaint.toml")

	content := `
[youtube]
api_key = "file-youtube"

[tmdb]
api_key = "file-tmdb"

[notifications]
telegram_token = "file-token"
telegram_chat_id = 1
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("YOUTUBE_API_KEY", "env-youtube")
	t.Setenv("TMDB_API_KEY", "env-tmdb")
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("TELEGRAM_CHAT_ID", "-100200")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.YouTube.APIKey != "env-youtube" {
		t.Errorf("expected YouTube key from env, got %q", cfg.YouTube.APIKey)
	}
	if cfg.TMDB.APIKey != "env-tmdb" {
		t.Errorf("expected TMDB key from env, got %q", cfg.TMDB.APIKey)
	}
	if cfg.Notifications.TelegramToken != "env-token" {
		t.Errorf("expected telegram token from env, got %q", cfg.Notifications.TelegramToken)
	}
	if cfg.Notifications.TelegramChatID != -100200 {
		t.Errorf("expected telegram chat id from env, got %d", cfg.Notifications.TelegramChatID)
	}
}

func TestSupabaseURLFallsBackToFrontendPrefixes(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("VITE_SUPABASE_URL", "")
	t.Setenv("NEXT_PUBLIC_SUPABASE_URL", "https://next.supabase.co")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Supabase.URL != "https://next.supabase.co" {
		t.Fatalf("expected NEXT_PUBLIC fallback, got %q", cfg.Supabase.URL)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "your_service_role_key_here") {
		t.Fatalf("sample config missing placeholder service key: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.StateDir, "oshimaint") {
		t.Fatalf("expected state dir to contain oshimaint, got %q", cfg.Paths.StateDir)
	}
	if len(cfg.Classifier.LocationDeletePatterns) != 4 {
		t.Fatalf("expected 4 location delete patterns, got %v", cfg.Classifier.LocationDeletePatterns)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unknown backend", func(c *config.Config) { c.Store.Backend = "mysql" }},
		{"youtube page size", func(c *config.Config) { c.YouTube.PageSize = 51 }},
		{"negative delay", func(c *config.Config) { c.Pacing.RequestDelayMS = -1 }},
		{"bad pattern", func(c *config.Config) { c.Classifier.LocationDeletePatterns = []string{"("} }},
		{"similarity", func(c *config.Config) { c.Classifier.SimilarityThreshold = 1.5 }},
		{"half valuecommerce", func(c *config.Config) { c.Affiliate.ValueCommerceSID = "123" }},
		{"half telegram", func(c *config.Config) { c.Notifications.TelegramToken = "abc" }},
		{"tabelog timeout", func(c *config.Config) { c.Tabelog.TimeoutSeconds = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestRequireHelpersReportMissingCredentials(t *testing.T) {
	cfg := config.Default()
	if err := cfg.RequireStore(); err == nil || !strings.Contains(err.Error(), "SUPABASE_URL") {
		t.Fatalf("expected supabase url error, got %v", err)
	}
	cfg.Store.Backend = config.BackendPostgres
	if err := cfg.RequireStore(); err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("expected database url error, got %v", err)
	}
	if err := cfg.RequireYouTube(); err == nil {
		t.Fatal("expected youtube key error")
	}
	if err := cfg.RequireTMDB(); err == nil {
		t.Fatal("expected tmdb key error")
	}
}
