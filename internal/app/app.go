// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/mediacrawl/internal/browser"
	"github.com/law-makers/mediacrawl/internal/config"
	"github.com/law-makers/mediacrawl/internal/cookies"
	"github.com/law-makers/mediacrawl/internal/downloader"
	"github.com/law-makers/mediacrawl/internal/engine"
	"github.com/law-makers/mediacrawl/internal/instagram"
	"github.com/law-makers/mediacrawl/internal/rarbg"
	"github.com/law-makers/mediacrawl/pkg/models"
)

// Application holds all application dependencies and manages their lifecycle.
//
// It is created once at startup and shared across all CLI commands.
// Use Close() to ensure proper resource cleanup on shutdown.
type Application struct {
	Config     *config.Config
	Logger     *zerolog.Logger
	Launcher   browser.Launcher
	Downloader *downloader.Downloader
	startTime  time.Time
}

// New creates and initializes a new Application with all dependencies.
//
// It performs the following initialization steps:
//   - Configures logging based on the provided config
//   - Resolves the browser launcher for the configured engine
//   - Creates the media downloader
//
// No browser is started here; each crawl launches its own session.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logger := SetupLogging(cfg, os.Stderr)

	launcher, err := browser.NewLauncher(cfg.BrowserEngine, browser.DefaultExecutables())
	if err != nil {
		return nil, err
	}
	logger.Debug().
		Str("engine", cfg.BrowserEngine).
		Bool("headless", cfg.Headless).
		Msg("Browser launcher ready")

	dlOpts := downloader.DefaultOptions()
	dlOpts.Concurrency = cfg.DownloadConcurrency
	dlOpts.Timeout = cfg.DownloadTimeout
	if cfg.UserAgent != "" {
		dlOpts.UserAgent = cfg.UserAgent
	}
	dlOpts.Headers = cfg.Headers
	dlOpts.Progress = !cfg.JSONLog && cfg.LogLevel != "error"

	return NewWithLauncher(cfg, &logger, launcher, downloader.NewDownloader(dlOpts)), nil
}

// NewWithLauncher assembles an Application from ready-made parts.
func NewWithLauncher(cfg *config.Config, logger *zerolog.Logger, launcher browser.Launcher, dl *downloader.Downloader) *Application {
	if logger == nil {
		l := log.Logger
		logger = &l
	}
	if dl == nil {
		dl = downloader.NewDownloader(downloader.DefaultOptions())
	}
	return &Application{
		Config:     cfg,
		Logger:     logger,
		Launcher:   launcher,
		Downloader: dl,
		startTime:  time.Now(),
	}
}

// SetupLogging sets the global zerolog level and output from cfg and
// returns the configured logger.
func SetupLogging(cfg *config.Config, w io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	if !cfg.JSONLog {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	// zerolog.Ctx falls back to this for contexts without a logger.
	zerolog.DefaultContextLogger = &log.Logger

	log.Logger.Debug().
		Str("level", level.String()).
		Bool("json", cfg.JSONLog).
		Msg("Logger initialized")
	return log.Logger
}

// SiteFor picks the crawler for a target URL.
func SiteFor(rawURL string) (models.Site, error) {
	switch {
	case strings.HasPrefix(rawURL, instagram.DefaultSite.Host+"/"):
		return models.SiteInstagram, nil
	case strings.HasPrefix(rawURL, rarbg.DefaultSite.SearchPrefix()):
		return models.SiteRarbg, nil
	default:
		return "", engine.NewEngineError(engine.ErrCodeUnsupported, "not supported: "+rawURL, nil).WithDetail("url", rawURL)
	}
}

// HomeURL is where login sends the operator for site.
func HomeURL(site models.Site) (string, error) {
	switch site {
	case models.SiteInstagram:
		return instagram.DefaultSite.Host + "/", nil
	case models.SiteRarbg:
		return rarbg.DefaultSite.Host + "/", nil
	default:
		return "", fmt.Errorf("unknown site %q", site)
	}
}

// CookieStore opens the jar for site with the configured backend.
func (a *Application) CookieStore(site models.Site) (cookies.Store, error) {
	store, err := cookies.Open(a.Config.CookieStore, a.Config.DataDir, site)
	if err != nil {
		return nil, engine.NewEngineError(engine.ErrCodeCookie, "failed to open cookie store", err)
	}
	return store, nil
}

// BrowserOptions builds launch options from the config.
func (a *Application) BrowserOptions() browser.Options {
	return browser.Options{
		Headless:  a.Config.Headless,
		ExecPath:  a.Config.ChromePath,
		UserAgent: a.Config.UserAgent,
	}
}

// crawlContext applies the optional whole-crawl deadline.
func (a *Application) crawlContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return engine.WithOptionalTimeout(ctx, a.Config.CrawlTimeout)
}

// Close releases what the application holds. Browser sessions are owned by
// individual crawls, so there is nothing long-lived to stop.
func (a *Application) Close(ctx context.Context) error {
	a.Logger.Debug().Dur("uptime", a.Uptime()).Msg("Application shutdown complete")
	return nil
}

// Uptime returns how long the application has been running.
func (a *Application) Uptime() time.Duration {
	return time.Since(a.startTime)
}
