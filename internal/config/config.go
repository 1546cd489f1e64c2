// Package config loads and validates the service configuration: a YAML file
// for accounts and service settings, environment variables for the Spotify
// application credentials.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/justestif/go-spotify-stats-tracker/internal/stats"
)

const (
	defaultListenAddr = ":8090"
	defaultTokenDir   = "tokens"
)

// Config is the service configuration.
type Config struct {
	ListenAddr string    `yaml:"listen_addr"`
	LogLevel   string    `yaml:"log_level"`
	TokenDir   string    `yaml:"token_dir"`
	Accounts   []Account `yaml:"accounts"`

	// Spotify application credentials, from SPOTIFY_ID / SPOTIFY_SECRET.
	SpotifyID     string `yaml:"-"`
	SpotifySecret string `yaml:"-"`
}

// Account is one registered Spotify account. Intervals are in seconds; zero
// means the default.
type Account struct {
	Username               string `yaml:"username"`
	NowPlayingInterval     int    `yaml:"now_playing_interval"`
	RecentlyPlayedInterval int    `yaml:"recently_played_interval"`
}

// Policy converts the account's configured intervals into a refresh policy,
// filling defaults for unset values.
func (a Account) Policy() stats.RefreshPolicy {
	policy := stats.DefaultPolicy()
	if a.NowPlayingInterval > 0 {
		policy.NowPlaying = time.Duration(a.NowPlayingInterval) * time.Second
	}
	if a.RecentlyPlayedInterval > 0 {
		policy.RecentlyPlayed = time.Duration(a.RecentlyPlayedInterval) * time.Second
	}
	return policy
}

// FromFile reads the YAML config, merges env credentials (loading a .env
// file when one is present) and validates the result.
func FromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading config file %q: %w", filePath, err)
	}
	return FromString(string(data))
}

// FromString parses and validates a YAML config document.
func FromString(data string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(data), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// A missing .env is fine; real environments set the variables directly.
	_ = godotenv.Load()
	cfg.SpotifyID = os.Getenv("SPOTIFY_ID")
	cfg.SpotifySecret = os.Getenv("SPOTIFY_SECRET")

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if cfg.TokenDir == "" {
		cfg.TokenDir = defaultTokenDir
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = zerolog.LevelInfoValue
	}
}

func (cfg *Config) validate() error {
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", cfg.LogLevel, err)
	}

	if len(cfg.Accounts) == 0 {
		return errors.New("no accounts configured")
	}

	seen := make(map[string]struct{}, len(cfg.Accounts))
	for i, account := range cfg.Accounts {
		if account.Username == "" {
			return fmt.Errorf("accounts[%d]: username is empty", i)
		}

		sanitized := stats.SanitizeUsername(account.Username)
		if _, dup := seen[sanitized]; dup {
			return fmt.Errorf("accounts[%d]: duplicate username %q", i, account.Username)
		}
		seen[sanitized] = struct{}{}

		if err := ValidateIntervals(account.NowPlayingInterval, account.RecentlyPlayedInterval); err != nil {
			return fmt.Errorf("accounts[%d] (%s): %w", i, account.Username, err)
		}
	}
	return nil
}

// ValidateIntervals checks the reconfigurable intervals (in seconds) against
// their bounds. Zero means "leave unchanged / use default" and always
// passes. The host API reuses this for runtime reconfiguration.
func ValidateIntervals(nowPlaying, recentlyPlayed int) error {
	if nowPlaying != 0 {
		d := time.Duration(nowPlaying) * time.Second
		if d < stats.MinNowPlayingInterval || d > stats.MaxNowPlayingInterval {
			return fmt.Errorf("now_playing_interval %d out of range [%d, %d] seconds",
				nowPlaying,
				int(stats.MinNowPlayingInterval/time.Second),
				int(stats.MaxNowPlayingInterval/time.Second))
		}
	}
	if recentlyPlayed != 0 {
		d := time.Duration(recentlyPlayed) * time.Second
		if d < stats.MinRecentlyPlayedInterval || d > stats.MaxRecentlyPlayedInterval {
			return fmt.Errorf("recently_played_interval %d out of range [%d, %d] seconds",
				recentlyPlayed,
				int(stats.MinRecentlyPlayedInterval/time.Second),
				int(stats.MaxRecentlyPlayedInterval/time.Second))
		}
	}
	return nil
}

// Level returns the parsed zerolog level.
func (cfg *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
