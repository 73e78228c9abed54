package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Validate ensures the configuration is usable. Credentials are checked lazily by
// the Require helpers so offline commands (journal, config) work without them.
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateYouTube(); err != nil {
		return err
	}
	if err := c.validateTabelog(); err != nil {
		return err
	}
	if err := c.validatePacing(); err != nil {
		return err
	}
	if err := c.validateClassifier(); err != nil {
		return err
	}
	if err := c.validateAffiliate(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case BackendSupabase, BackendPostgres:
	default:
		return fmt.Errorf("store.backend must be %q or %q, got %q", BackendSupabase, BackendPostgres, c.Store.Backend)
	}
	if c.Supabase.PageSize > 1000 {
		return errors.New("supabase.page_size must be at most 1000 (PostgREST max rows)")
	}
	return nil
}

func (c *Config) validateYouTube() error {
	if c.YouTube.PageSize < 1 || c.YouTube.PageSize > 50 {
		return errors.New("youtube.page_size must be between 1 and 50")
	}
	if c.YouTube.MaxPages < 0 {
		return errors.New("youtube.max_pages must be >= 0")
	}
	return nil
}

func (c *Config) validateTabelog() error {
	if c.Tabelog.TimeoutSeconds <= 0 {
		return errors.New("tabelog.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validatePacing() error {
	if c.Pacing.RequestDelayMS < 0 {
		return errors.New("pacing.request_delay_ms must be >= 0")
	}
	return nil
}

func (c *Config) validateClassifier() error {
	if c.Classifier.ShortTitleThreshold < 0 {
		return errors.New("classifier.short_title_threshold must be >= 0")
	}
	if c.Classifier.SimilarityThreshold <= 0 || c.Classifier.SimilarityThreshold > 1 {
		return errors.New("classifier.similarity_threshold must be between 0 and 1")
	}
	for _, pattern := range c.Classifier.LocationDeletePatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("classifier.location_delete_patterns: invalid pattern %q: %w", pattern, err)
		}
	}
	return nil
}

func (c *Config) validateAffiliate() error {
	sid := c.Affiliate.ValueCommerceSID != ""
	pid := c.Affiliate.ValueCommercePID != ""
	if sid != pid {
		return errors.New("affiliate.valuecommerce_sid and affiliate.valuecommerce_pid must be set together")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	token := c.Notifications.TelegramToken != ""
	chat := c.Notifications.TelegramChatID != 0
	if token != chat {
		return errors.New("notifications.telegram_token and notifications.telegram_chat_id must be set together")
	}
	return nil
}

// RequireStore reports missing credentials for the selected backend.
func (c *Config) RequireStore() error {
	switch c.Store.Backend {
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return missing("postgres.dsn", "DATABASE_URL")
		}
	default:
		if c.Supabase.URL == "" {
			return missing("supabase.url", "SUPABASE_URL")
		}
		if c.Supabase.ServiceRoleKey == "" {
			return missing("supabase.service_role_key", "SUPABASE_SERVICE_ROLE_KEY")
		}
	}
	return nil
}

// RequireYouTube reports a missing YouTube API key.
func (c *Config) RequireYouTube() error {
	if c.YouTube.APIKey == "" {
		return missing("youtube.api_key", "YOUTUBE_API_KEY")
	}
	return nil
}

// RequireTMDB reports a missing TMDB API key.
func (c *Config) RequireTMDB() error {
	if c.TMDB.APIKey == "" {
		return missing("tmdb.api_key", "TMDB_API_KEY")
	}
	return nil
}

func missing(key, env string) error {
	defaultPath, err := DefaultConfigPath()
	if err != nil || strings.TrimSpace(defaultPath) == "" {
		defaultPath = defaultConfigPath
	}
	return fmt.Errorf("%s is required. Set %s env var or edit %s (create with 'oshimaint config init')", key, env, defaultPath)
}
