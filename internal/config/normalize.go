package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeStore()
	c.normalizeSupabase()
	c.normalizePostgres()
	c.normalizeYouTube()
	c.normalizeTMDB()
	c.normalizeTabelog()
	c.normalizeClassifier()
	c.normalizeAffiliate()
	if err := c.normalizeNotifications(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeStore() {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = defaultStoreBackend
	}
}

func (c *Config) normalizeSupabase() {
	// Frontend builds export the project URL under their own prefixes.
	if value, ok := lookupEnv("SUPABASE_URL", "VITE_SUPABASE_URL", "NEXT_PUBLIC_SUPABASE_URL"); ok {
		c.Supabase.URL = value
	}
	if value, ok := lookupEnv("SUPABASE_SERVICE_ROLE_KEY"); ok {
		c.Supabase.ServiceRoleKey = value
	}
	c.Supabase.URL = strings.TrimRight(strings.TrimSpace(c.Supabase.URL), "/")
	c.Supabase.ServiceRoleKey = strings.TrimSpace(c.Supabase.ServiceRoleKey)
	c.Supabase.Schema = strings.TrimSpace(c.Supabase.Schema)
	if c.Supabase.Schema == "" {
		c.Supabase.Schema = defaultSupabaseSchema
	}
	if c.Supabase.PageSize <= 0 {
		c.Supabase.PageSize = defaultSupabasePageSize
	}
}

func (c *Config) normalizePostgres() {
	if value, ok := lookupEnv("DATABASE_URL"); ok {
		c.Postgres.DSN = value
	}
	c.Postgres.DSN = strings.TrimSpace(c.Postgres.DSN)
	if c.Postgres.MaxConns <= 0 {
		c.Postgres.MaxConns = defaultPostgresMaxConns
	}
}

func (c *Config) normalizeYouTube() {
	if value, ok := lookupEnv("YOUTUBE_API_KEY"); ok {
		c.YouTube.APIKey = value
	}
	c.YouTube.APIKey = strings.TrimSpace(c.YouTube.APIKey)
	c.YouTube.ChannelID = strings.TrimSpace(c.YouTube.ChannelID)
	c.YouTube.BaseURL = strings.TrimSpace(c.YouTube.BaseURL)
	if c.YouTube.BaseURL == "" {
		c.YouTube.BaseURL = defaultYouTubeBaseURL
	}
	if c.YouTube.PageSize <= 0 {
		c.YouTube.PageSize = defaultYouTubePageSize
	}
}

func (c *Config) normalizeTMDB() {
	if value, ok := lookupEnv("TMDB_API_KEY"); ok {
		c.TMDB.APIKey = value
	}
	c.TMDB.APIKey = strings.TrimSpace(c.TMDB.APIKey)
	c.TMDB.BaseURL = strings.TrimSpace(c.TMDB.BaseURL)
	if c.TMDB.BaseURL == "" {
		c.TMDB.BaseURL = defaultTMDBBaseURL
	}
	c.TMDB.Language = strings.TrimSpace(c.TMDB.Language)
}

func (c *Config) normalizeTabelog() {
	c.Tabelog.UserAgent = strings.TrimSpace(c.Tabelog.UserAgent)
	if c.Tabelog.UserAgent == "" {
		c.Tabelog.UserAgent = defaultTabelogUserAgent
	}
}

func (c *Config) normalizeClassifier() {
	c.Classifier.ShortMarkers = dedupeNonEmpty(c.Classifier.ShortMarkers, true)
	c.Classifier.ChannelNames = dedupeNonEmpty(c.Classifier.ChannelNames, false)
	c.Classifier.LocationDeletePatterns = dedupeNonEmpty(c.Classifier.LocationDeletePatterns, false)
	c.Classifier.PlaceholderNames = dedupeNonEmpty(c.Classifier.PlaceholderNames, true)
	if c.Classifier.MinLocationNameRunes <= 0 {
		c.Classifier.MinLocationNameRunes = defaultMinLocationNameRunes
	}
}

func (c *Config) normalizeAffiliate() {
	c.Affiliate.ValueCommerceSID = strings.TrimSpace(c.Affiliate.ValueCommerceSID)
	c.Affiliate.ValueCommercePID = strings.TrimSpace(c.Affiliate.ValueCommercePID)
	c.Affiliate.Source = strings.TrimSpace(c.Affiliate.Source)
	if c.Affiliate.Source == "" {
		c.Affiliate.Source = defaultAffiliateSource
	}
}

func (c *Config) normalizeNotifications() error {
	if value, ok := lookupEnv("NTFY_TOPIC"); ok {
		c.Notifications.NtfyTopic = value
	}
	if value, ok := lookupEnv("TELEGRAM_BOT_TOKEN"); ok {
		c.Notifications.TelegramToken = value
	}
	if value, ok := lookupEnv("TELEGRAM_CHAT_ID"); ok {
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
		c.Notifications.TelegramChatID = id
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Notifications.TelegramToken = strings.TrimSpace(c.Notifications.TelegramToken)
	c.Notifications.TelegramAPIEndpoint = strings.TrimSpace(c.Notifications.TelegramAPIEndpoint)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// lookupEnv returns the first non-empty variable among keys. Credentials set in
// the environment take precedence over the config file.
func lookupEnv(keys ...string) (string, bool) {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value), true
		}
	}
	return "", false
}

func dedupeNonEmpty(values []string, fold bool) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if fold {
			value = strings.ToLower(value)
		}
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
