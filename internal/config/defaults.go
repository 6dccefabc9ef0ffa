package config

import "time"

// Default constants for application configuration
const (
	DefaultLogLevel            = "info"
	DefaultJSONLog             = false
	DefaultUserAgent           = ""
	DefaultHeadless            = false
	DefaultBrowserEngine       = "chromedp"
	DefaultCookieStore         = "file"
	DefaultCrawlTimeout        = 0
	DefaultLoadTimeout         = 60 * time.Second
	DefaultDetailTimeout       = 60 * time.Second
	DefaultVideoTimeout        = 5 * time.Second
	DefaultClock               = time.Second
	DefaultQuiescence          = time.Second
	DefaultAbortOnError        = false
	DefaultMaxErrors           = 0
	DefaultReusePage           = false
	DefaultDownloadConcurrency = 4
	DefaultMaxConcurrency      = 50
	DefaultDownloadTimeout     = 5 * time.Minute
	DefaultSkipDownload        = false

	// AppName names the data directory and the env prefix
	AppName      = "mediacrawl"
	EnvPrefix    = "MEDIACRAWL_"
	SettingsFile = "settings.yaml"
)
