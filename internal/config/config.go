// Package config manages application configuration.
//
// Values are layered: defaults, then the first config file found, then
// YTARCHIVE_* environment variables. The CLI applies its flags last.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ytarchive/internal/entry"
	"ytarchive/internal/retry"
	"ytarchive/internal/youtube"
)

// Candidate source names.
const (
	SourceYtdlp = "ytdlp"
	SourceRSS   = "rss"
	SourceAPI   = "api"
)

// Date sources for the entry Date field.
const (
	DateSourceRun    = "run"
	DateSourceUpload = "upload"
)

// DefaultChannelURL is the channel tab synced when none is configured.
const DefaultChannelURL = "https://www.youtube.com/@TucsonTabernacle/streams"

// DefaultArchivePath is the archive file used when none is configured.
const DefaultArchivePath = "All_Sermons_Clean.txt"

// Config holds all application configuration.
type Config struct {
	// Sync target
	ChannelURL    string `json:"channel_url" yaml:"channel_url"`
	ContentType   string `json:"content_type" yaml:"content_type"`
	ArchivePath   string `json:"archive_path" yaml:"archive_path"`
	MaxCandidates int    `json:"max_candidates" yaml:"max_candidates"`
	Concurrency   int    `json:"concurrency" yaml:"concurrency"`

	// Sources
	Source       string   `json:"source" yaml:"source"`
	APIKey       string   `json:"api_key" yaml:"api_key"`
	YtdlpPath    string   `json:"ytdlp_path" yaml:"ytdlp_path"`
	YtdlpTimeout Duration `json:"ytdlp_timeout" yaml:"ytdlp_timeout"`
	Languages    []string `json:"languages" yaml:"languages"`

	// Entry rendering
	DateSource string              `json:"date_source" yaml:"date_source"`
	URLHost    string              `json:"url_host" yaml:"url_host"`
	Speakers   []entry.SpeakerRule `json:"speakers" yaml:"speakers"`

	// Storage. An empty LedgerPath disables the ledger.
	LedgerPath  string   `json:"ledger_path" yaml:"ledger_path"`
	LockTimeout Duration `json:"lock_timeout" yaml:"lock_timeout"`

	// Retry and rate limiting
	MaxRetries        int      `json:"max_retries" yaml:"max_retries"`
	InitialBackoff    Duration `json:"initial_backoff" yaml:"initial_backoff"`
	MaxBackoff        Duration `json:"max_backoff" yaml:"max_backoff"`
	BackoffMultiplier float64  `json:"backoff_multiplier" yaml:"backoff_multiplier"`
	RequestsPerSecond float64  `json:"requests_per_second" yaml:"requests_per_second"`

	// path is the file the config was read from, if any.
	path string
}

// DefaultConfig returns configuration with safe defaults.
func DefaultConfig() *Config {
	return &Config{
		ChannelURL:        DefaultChannelURL,
		ContentType:       "streams",
		ArchivePath:       DefaultArchivePath,
		MaxCandidates:     11,
		Concurrency:       1,
		Source:            SourceYtdlp,
		YtdlpPath:         "yt-dlp",
		YtdlpTimeout:      Duration(10 * time.Minute),
		Languages:         []string{"en"},
		DateSource:        DateSourceRun,
		URLHost:           entry.DefaultHost,
		Speakers:          entry.DefaultSpeakerRules(),
		LedgerPath:        defaultLedgerPath(),
		LockTimeout:       Duration(30 * time.Second),
		MaxRetries:        3,
		InitialBackoff:    Duration(time.Second),
		MaxBackoff:        Duration(30 * time.Second),
		BackoffMultiplier: 2.0,
		RequestsPerSecond: 2.0,
	}
}

func defaultLedgerPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "ytarchive", "ledger.db")
}

// Load builds the configuration. If path is empty the default locations
// are searched and a missing file is not an error.
// Priority: env vars > config file > defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	} else if err := cfg.loadFromFile(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load config file: %w", err)
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the config file that was loaded, or "".
func (c *Config) Path() string { return c.path }

// searchPaths lists candidate config files in priority order.
func searchPaths() []string {
	names := []string{"ytarchive.yaml", "ytarchive.yml", "ytarchive.json"}
	paths := append([]string(nil), names...)
	if dir, err := os.UserConfigDir(); err == nil {
		for _, n := range names {
			paths = append(paths, filepath.Join(dir, "ytarchive", n))
		}
	}
	return paths
}

// loadFromFile loads the first config file that exists.
func (c *Config) loadFromFile() error {
	for _, path := range searchPaths() {
		err := c.loadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		return err
	}
	return os.ErrNotExist
}

// loadFile reads path as YAML or JSON depending on its extension.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, c)
	default:
		err = yaml.Unmarshal(data, c)
	}
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	c.path = path
	return nil
}

// loadFromEnv overrides config with YTARCHIVE_* environment variables.
func (c *Config) loadFromEnv() error {
	var errs []error

	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv("YTARCHIVE_" + name); ok {
			*dst = v
		}
	}
	integer := func(name string, dst *int) {
		if v := os.Getenv("YTARCHIVE_" + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("YTARCHIVE_%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	float := func(name string, dst *float64) {
		if v := os.Getenv("YTARCHIVE_" + name); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("YTARCHIVE_%s: %w", name, err))
				return
			}
			*dst = f
		}
	}
	duration := func(name string, dst *Duration) {
		if v := os.Getenv("YTARCHIVE_" + name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("YTARCHIVE_%s: %w", name, err))
				return
			}
			*dst = Duration(d)
		}
	}

	str("CHANNEL_URL", &c.ChannelURL)
	str("CONTENT_TYPE", &c.ContentType)
	str("ARCHIVE_PATH", &c.ArchivePath)
	integer("MAX_CANDIDATES", &c.MaxCandidates)
	integer("CONCURRENCY", &c.Concurrency)
	str("SOURCE", &c.Source)
	str("API_KEY", &c.APIKey)
	str("YTDLP_PATH", &c.YtdlpPath)
	duration("YTDLP_TIMEOUT", &c.YtdlpTimeout)
	str("DATE_SOURCE", &c.DateSource)
	str("URL_HOST", &c.URLHost)
	str("LEDGER_PATH", &c.LedgerPath)
	duration("LOCK_TIMEOUT", &c.LockTimeout)
	integer("MAX_RETRIES", &c.MaxRetries)
	duration("INITIAL_BACKOFF", &c.InitialBackoff)
	duration("MAX_BACKOFF", &c.MaxBackoff)
	float("BACKOFF_MULTIPLIER", &c.BackoffMultiplier)
	float("REQUESTS_PER_SECOND", &c.RequestsPerSecond)

	if v := os.Getenv("YTARCHIVE_LANGUAGES"); v != "" {
		c.Languages = splitList(v)
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv("YOUTUBE_API_KEY")
	}

	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.ChannelURL == "" {
		return fmt.Errorf("channel_url is required")
	}
	if _, err := youtube.ParseContentType(c.ContentType); err != nil {
		return fmt.Errorf("content_type: %w", err)
	}
	if c.ArchivePath == "" {
		return fmt.Errorf("archive_path is required")
	}
	if c.MaxCandidates <= 0 {
		return fmt.Errorf("max_candidates must be positive")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}
	switch c.Source {
	case SourceYtdlp, SourceRSS:
	case SourceAPI:
		if c.APIKey == "" {
			return fmt.Errorf("source %q requires api_key (or YOUTUBE_API_KEY)", SourceAPI)
		}
	default:
		return fmt.Errorf("source must be one of %s, %s, %s", SourceYtdlp, SourceRSS, SourceAPI)
	}
	if c.YtdlpTimeout <= 0 {
		return fmt.Errorf("ytdlp_timeout must be positive")
	}
	if len(c.Languages) == 0 {
		return fmt.Errorf("languages must not be empty")
	}
	if c.DateSource != DateSourceRun && c.DateSource != DateSourceUpload {
		return fmt.Errorf("date_source must be %q or %q", DateSourceRun, DateSourceUpload)
	}
	if _, err := entry.New(entry.WithHost(c.URLHost)); err != nil {
		return fmt.Errorf("url_host: %w", err)
	}
	for i, r := range c.Speakers {
		if r.Match == "" || r.Label == "" {
			return fmt.Errorf("speakers[%d]: match and label are required", i)
		}
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	if c.InitialBackoff <= 0 {
		return fmt.Errorf("initial_backoff must be positive")
	}
	if c.MaxBackoff <= 0 {
		return fmt.Errorf("max_backoff must be positive")
	}
	if c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("max_backoff must be >= initial_backoff")
	}
	if c.BackoffMultiplier <= 1 {
		return fmt.Errorf("backoff_multiplier must be > 1")
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must be non-negative")
	}
	return nil
}

// ContentTypeValue returns the parsed content type. Call Validate first.
func (c *Config) ContentTypeValue() youtube.ContentType {
	ct, _ := youtube.ParseContentType(c.ContentType)
	return ct
}

// RetryConfig returns the retry settings.
func (c *Config) RetryConfig() retry.Config {
	return retry.Config{
		MaxRetries:     c.MaxRetries,
		InitialBackoff: c.InitialBackoff.Std(),
		MaxBackoff:     c.MaxBackoff.Std(),
		Multiplier:     c.BackoffMultiplier,
		JitterFraction: 0.2,
	}
}
