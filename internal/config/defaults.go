package config

import "time"

const (
	defaultConfigPath           = "~/.config/oshimaint/config.toml"
	defaultStateDir             = "~/.local/share/oshimaint"
	defaultLogDir               = "~/.local/share/oshimaint/logs"
	defaultStoreBackend         = BackendSupabase
	defaultSupabaseSchema       = "public"
	defaultSupabasePageSize     = 1000
	defaultPostgresMaxConns     = 4
	defaultYouTubeBaseURL       = "https://www.googleapis.com/youtube/v3"
	defaultYouTubePageSize      = 50
	defaultYouTubeMaxPages      = 10
	defaultTMDBLanguage         = "ja-JP"
	defaultTMDBBaseURL          = "https://api.themoviedb.org/3"
	defaultTabelogUserAgent     = "oshimaint/0.1 (+link-check)"
	defaultTabelogTimeout       = 15
	defaultRequestDelayMS       = 300
	defaultShortTitleThreshold  = 15
	defaultMinLocationNameRunes = 2
	defaultSimilarityThreshold  = 0.85
	defaultAffiliateSource      = "linkswitch"
	defaultNotifyTimeout        = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Store backends.
const (
	BackendSupabase = "supabase"
	BackendPostgres = "postgres"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Store: Store{
			Backend: defaultStoreBackend,
		},
		Supabase: Supabase{
			Schema:   defaultSupabaseSchema,
			PageSize: defaultSupabasePageSize,
		},
		Postgres: Postgres{
			MaxConns: defaultPostgresMaxConns,
		},
		YouTube: YouTube{
			BaseURL:  defaultYouTubeBaseURL,
			PageSize: defaultYouTubePageSize,
			MaxPages: defaultYouTubeMaxPages,
		},
		TMDB: TMDB{
			BaseURL:  defaultTMDBBaseURL,
			Language: defaultTMDBLanguage,
		},
		Tabelog: Tabelog{
			UserAgent:      defaultTabelogUserAgent,
			TimeoutSeconds: defaultTabelogTimeout,
		},
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Pacing: Pacing{
			RequestDelayMS: defaultRequestDelayMS,
		},
		Classifier: Classifier{
			ShortTitleThreshold: defaultShortTitleThreshold,
			ShortMarkers:        []string{"#shorts", "shorts", "ショート"},
			ChannelNames:        []string{"よにのちゃんねる"},
			LocationDeletePatterns: []string{
				`(?i)covered by`,
				`^\d{1,2}:\d{2}`,
				`駅$`,
				`公園$`,
			},
			PlaceholderNames:     []string{"不明", "テスト", "test", "店舗", "未定", "tbd"},
			MinLocationNameRunes: defaultMinLocationNameRunes,
			SimilarityThreshold:  defaultSimilarityThreshold,
		},
		Affiliate: Affiliate{
			Source: defaultAffiliateSource,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			OnSuccess:      true,
			OnFailure:      true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

// RequestDelay returns the configured pacing interval.
func (c *Config) RequestDelay() time.Duration {
	return time.Duration(c.Pacing.RequestDelayMS) * time.Millisecond
}

// TabelogTimeout returns the page check timeout.
func (c *Config) TabelogTimeout() time.Duration {
	return time.Duration(c.Tabelog.TimeoutSeconds) * time.Second
}
