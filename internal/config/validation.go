package config

import (
	"fmt"
	"net/url"
	"strings"
)

func validate(c *Config) error {
	switch strings.ToLower(c.BrowserEngine) {
	case "chromedp", "rod":
	default:
		return fmt.Errorf("browser engine must be chromedp or rod, got %q", c.BrowserEngine)
	}
	switch strings.ToLower(c.CookieStore) {
	case "file", "keyring":
	default:
		return fmt.Errorf("cookie store must be file or keyring, got %q", c.CookieStore)
	}
	if c.CrawlTimeout < 0 {
		return fmt.Errorf("crawl timeout must be >= 0")
	}
	if c.LoadTimeout < 0 || c.DetailTimeout < 0 {
		return fmt.Errorf("load and detail timeouts must be >= 0")
	}
	if c.VideoTimeout <= 0 {
		return fmt.Errorf("video timeout must be > 0")
	}
	if c.Clock < 0 || c.Quiescence < 0 {
		return fmt.Errorf("clock and quiescence must be >= 0")
	}
	if c.MaxErrors < 0 {
		return fmt.Errorf("max errors must be >= 0")
	}
	if c.DownloadConcurrency <= 0 || c.DownloadConcurrency > DefaultMaxConcurrency {
		return fmt.Errorf("download concurrency must be between 1 and %d", DefaultMaxConcurrency)
	}
	if c.DownloadTimeout <= 0 {
		return fmt.Errorf("download timeout must be > 0")
	}
	if c.Proxy != "" {
		if err := validateProxy(c.Proxy); err != nil {
			return err
		}
	}
	return nil
}

func validateProxy(p string) error {
	for _, entry := range strings.Split(p, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "://") {
			entry = "http://" + entry
		}
		u, err := url.Parse(entry)
		if err != nil || u.Host == "" {
			return fmt.Errorf("invalid proxy %q", entry)
		}
		switch u.Scheme {
		case "http", "https", "socks5":
		default:
			return fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
		}
	}
	return nil
}
