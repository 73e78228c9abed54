package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Store selects the database backend used by maintenance commands.
type Store struct {
	Backend string `toml:"backend"`
}

// Supabase contains PostgREST connection settings.
type Supabase struct {
	URL            string `toml:"url"`
	ServiceRoleKey string `toml:"service_role_key"`
	Schema         string `toml:"schema"`
	PageSize       int    `toml:"page_size"`
}

// Postgres contains direct database connection settings.
type Postgres struct {
	DSN      string `toml:"dsn"`
	MaxConns int    `toml:"max_conns"`
}

// YouTube contains configuration for the YouTube Data API.
type YouTube struct {
	APIKey    string `toml:"api_key"`
	BaseURL   string `toml:"base_url"`
	ChannelID string `toml:"channel_id"`
	PageSize  int    `toml:"page_size"`
	MaxPages  int    `toml:"max_pages"`
}

// TMDB contains configuration for The Movie Database API.
type TMDB struct {
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
	Language string `toml:"language"`
}

// Tabelog contains settings for live restaurant page checks.
type Tabelog struct {
	UserAgent      string `toml:"user_agent"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Paths contains local state and log directories.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Pacing controls the delay between consecutive remote calls.
type Pacing struct {
	RequestDelayMS int `toml:"request_delay_ms"`
}

// Classifier tunes the duplicate and low-value heuristics.
type Classifier struct {
	ShortTitleThreshold    int      `toml:"short_title_threshold"`
	ShortMarkers           []string `toml:"short_markers"`
	ChannelNames           []string `toml:"channel_names"`
	LocationDeletePatterns []string `toml:"location_delete_patterns"`
	PlaceholderNames       []string `toml:"placeholder_names"`
	MinLocationNameRunes   int      `toml:"min_location_name_runes"`
	SimilarityThreshold    float64  `toml:"similarity_threshold"`
}

// Affiliate contains ValueCommerce identifiers used when wrapping links.
type Affiliate struct {
	ValueCommerceSID string `toml:"valuecommerce_sid"`
	ValueCommercePID string `toml:"valuecommerce_pid"`
	Source           string `toml:"source"`
}

// Notifications contains configuration for ntfy and Telegram alerts.
type Notifications struct {
	NtfyTopic           string `toml:"ntfy_topic"`
	RequestTimeout      int    `toml:"request_timeout"`
	TelegramToken       string `toml:"telegram_token"`
	TelegramChatID      int64  `toml:"telegram_chat_id"`
	TelegramAPIEndpoint string `toml:"telegram_api_endpoint"`
	OnSuccess           bool   `toml:"on_success"`
	OnFailure           bool   `toml:"on_failure"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	ToFile bool   `toml:"to_file"`
}

// Config encapsulates all configuration values for oshimaint.
//
// Configuration sections by subsystem:
//   - Store: which database backend the maintenance commands talk to
//   - Supabase / Postgres: credentials for the two backends
//   - YouTube / TMDB: metadata sources for ingestion
//   - Tabelog: live page verification
//   - Paths: journal, lock and log locations
//   - Pacing: delay between remote calls
//   - Classifier: duplicate and low-value heuristics
//   - Affiliate: ValueCommerce identifiers
//   - Notifications: ntfy and Telegram run reports
//   - Logging: log format and level
type Config struct {
	Store         Store         `toml:"store"`
	Supabase      Supabase      `toml:"supabase"`
	Postgres      Postgres      `toml:"postgres"`
	YouTube       YouTube       `toml:"youtube"`
	TMDB          TMDB          `toml:"tmdb"`
	Tabelog       Tabelog       `toml:"tabelog"`
	Paths         Paths         `toml:"paths"`
	Pacing        Pacing        `toml:"pacing"`
	Classifier    Classifier    `toml:"classifier"`
	Affiliate     Affiliate     `toml:"affiliate"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. Dotenv files in the working directory are
// loaded first so their values act as environment fallbacks.
func Load(path string) (*Config, string, bool, error) {
	if err := loadDotEnv(".env", ".env.local"); err != nil {
		return nil, "", false, err
	}

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv never overrides variables that are already set.
func loadDotEnv(names ...string) error {
	for _, name := range names {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("oshimaint.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// JournalPath returns the SQLite journal location.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Paths.StateDir, "journal.db")
}

// LockPath returns the run lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "oshimaint.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
