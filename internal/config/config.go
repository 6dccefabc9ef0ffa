package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Config holds application configuration values
type Config struct {
	// Logging
	LogLevel string
	JSONLog  bool

	// Browser
	Headless      bool
	ChromePath    string
	BrowserEngine string
	UserAgent     string
	Proxy         string

	// Storage
	DataDir     string
	CookieStore string

	// Crawl policy
	CrawlTimeout  time.Duration
	LoadTimeout   time.Duration
	DetailTimeout time.Duration
	VideoTimeout  time.Duration
	Clock         time.Duration
	Quiescence    time.Duration
	AbortOnError  bool
	MaxErrors     int
	ReusePage     bool

	// Downloads
	DownloadConcurrency int
	DownloadTimeout     time.Duration
	SkipDownload        bool
	// Headers are sent with every media download.
	Headers map[string]string
}

// Default returns a Config populated from defaults.go.
func Default() *Config {
	return &Config{
		LogLevel:            DefaultLogLevel,
		JSONLog:             DefaultJSONLog,
		Headless:            DefaultHeadless,
		BrowserEngine:       DefaultBrowserEngine,
		UserAgent:           DefaultUserAgent,
		CookieStore:         DefaultCookieStore,
		CrawlTimeout:        DefaultCrawlTimeout,
		LoadTimeout:         DefaultLoadTimeout,
		DetailTimeout:       DefaultDetailTimeout,
		VideoTimeout:        DefaultVideoTimeout,
		Clock:               DefaultClock,
		Quiescence:          DefaultQuiescence,
		AbortOnError:        DefaultAbortOnError,
		MaxErrors:           DefaultMaxErrors,
		ReusePage:           DefaultReusePage,
		DownloadConcurrency: DefaultDownloadConcurrency,
		DownloadTimeout:     DefaultDownloadTimeout,
		SkipDownload:        DefaultSkipDownload,
	}
}

// setting is one key shared by settings.yaml, MEDIACRAWL_* variables and
// the command-line flag of the same name.
type setting struct {
	key   string
	usage string
	field func(c *Config) interface{}
}

var settings = []setting{
	{"proxy", "HTTP/SOCKS5 proxies for media downloads, comma separated", func(c *Config) interface{} { return &c.Proxy }},
	{"headless", "Run the browser without a window", func(c *Config) interface{} { return &c.Headless }},
	{"chrome-path", "Path to the Chrome executable", func(c *Config) interface{} { return &c.ChromePath }},
	{"browser-engine", "Browser driver: chromedp or rod", func(c *Config) interface{} { return &c.BrowserEngine }},
	{"user-agent", "Custom user agent string", func(c *Config) interface{} { return &c.UserAgent }},
	{"cookie-store", "Cookie jar backend: file or keyring", func(c *Config) interface{} { return &c.CookieStore }},
	{"crawl-timeout", "Hard deadline for a whole crawl (0 disables)", func(c *Config) interface{} { return &c.CrawlTimeout }},
	{"load-timeout", "Wait for the first load of a listing page", func(c *Config) interface{} { return &c.LoadTimeout }},
	{"detail-timeout", "Deadline for each torrent detail page", func(c *Config) interface{} { return &c.DetailTimeout }},
	{"video-timeout", "Deadline for each IGTV video page", func(c *Config) interface{} { return &c.VideoTimeout }},
	{"clock", "Pause between detail or video pages", func(c *Config) interface{} { return &c.Clock }},
	{"quiescence", "Settle wait after auto-scrolling", func(c *Config) interface{} { return &c.Quiescence }},
	{"abort-on-error", "Stop a search at the first failed row", func(c *Config) interface{} { return &c.AbortOnError }},
	{"max-errors", "Stop a search after this many failed rows (0 is unlimited)", func(c *Config) interface{} { return &c.MaxErrors }},
	{"reuse-page", "Fetch detail pages on a single tab", func(c *Config) interface{} { return &c.ReusePage }},
	{"download-concurrency", "Parallel media downloads", func(c *Config) interface{} { return &c.DownloadConcurrency }},
	{"download-timeout", "Deadline for a single media download", func(c *Config) interface{} { return &c.DownloadTimeout }},
	{"skip-download", "Only write the crawl output, fetch no media", func(c *Config) interface{} { return &c.SkipDownload }},
}

func lookupSetting(key string) (setting, bool) {
	for _, s := range settings {
		if s.key == key {
			return s, true
		}
	}
	return setting{}, false
}

// Keys lists every key accepted by the settings file.
func Keys() []string {
	keys := make([]string, 0, len(settings))
	for _, s := range settings {
		keys = append(keys, s.key)
	}
	sort.Strings(keys)
	return keys
}

// EnvName maps a setting key to its environment variable, e.g.
// "detail-timeout" to "MEDIACRAWL_DETAIL_TIMEOUT".
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

func (s setting) apply(c *Config, value string) error {
	value = strings.TrimSpace(value)
	switch p := s.field(c).(type) {
	case *string:
		*p = value
	case *bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: invalid boolean %q", s.key, value)
		}
		*p = b
	case *int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", s.key, value)
		}
		*p = n
	case *time.Duration:
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s: invalid duration %q", s.key, value)
		}
		*p = d
	}
	return nil
}

// Set assigns a setting by key using its string form.
func (c *Config) Set(key, value string) error {
	s, ok := lookupSetting(key)
	if !ok {
		return fmt.Errorf("unknown setting %q", key)
	}
	return s.apply(c, value)
}

// Load builds a Config by combining defaults, the settings file in the data
// directory, .env files, MEDIACRAWL_* environment variables, and CLI flags,
// in increasing order of precedence.
// Caller should pass the root *cobra.Command so flags can be read.
func Load(cmd *cobra.Command) (*Config, error) {
	// Process env wins over .env: godotenv never overrides a set variable.
	_ = godotenv.Load(".env")

	cfg := Default()

	dataDir, err := resolveDataDir(cmd)
	if err != nil {
		return nil, fmt.Errorf("resolve data directory: %w", err)
	}
	cfg.DataDir = dataDir
	_ = godotenv.Load(filepath.Join(dataDir, ".env"))

	st, err := OpenSettings(filepath.Join(dataDir, SettingsFile))
	if err != nil {
		return nil, err
	}
	for _, key := range st.Keys() {
		s, ok := lookupSetting(key)
		if !ok {
			log.Warn().Str("key", key).Str("file", st.Path()).Msg("Ignoring unknown setting")
			continue
		}
		v, _ := st.Get(key)
		if err := s.apply(cfg, v); err != nil {
			return nil, fmt.Errorf("%s: %w", st.Path(), err)
		}
	}

	for _, s := range settings {
		if v, ok := os.LookupEnv(EnvName(s.key)); ok && v != "" {
			if err := s.apply(cfg, v); err != nil {
				return nil, fmt.Errorf("%s: %w", EnvName(s.key), err)
			}
		}
	}

	if cmd != nil {
		if err := applyFlags(cfg, cmd); err != nil {
			return nil, err
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func resolveDataDir(cmd *cobra.Command) (string, error) {
	if cmd != nil {
		if f := cmd.Flags().Lookup("data-dir"); f != nil && f.Value.String() != "" {
			return ensureDir(f.Value.String())
		}
	}
	return DataDir()
}
