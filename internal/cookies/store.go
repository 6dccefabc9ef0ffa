// Package cookies persists per-site browser cookie jars between runs.
package cookies

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/law-makers/mediacrawl/internal/browser"
	"github.com/law-makers/mediacrawl/pkg/models"
)

// Backend names
const (
	BackendFile    = "file"
	BackendKeyring = "keyring"
)

// FileName is the jar file inside a site's data directory
const FileName = "cookies.json"

// Store reads and writes one site's cookie jar. Load on an empty store
// returns no cookies and no error.
type Store interface {
	Load(ctx context.Context) ([]models.Cookie, error)
	Save(ctx context.Context, cookies []models.Cookie) error
	Clear(ctx context.Context) error
	Location() string
}

// Open returns the store for site under the chosen backend.
func Open(backend, dataDir string, site models.Site) (Store, error) {
	switch strings.ToLower(backend) {
	case "", BackendFile:
		return &FileStore{Path: filepath.Join(dataDir, string(site), FileName)}, nil
	case BackendKeyring:
		return &KeyringStore{Service: KeyringService, Key: "cookies:" + string(site)}, nil
	default:
		return nil, fmt.Errorf("unknown cookie store backend %q", backend)
	}
}

// SiteKey returns the registrable domain (eTLD+1) of a URL or host.
func SiteKey(raw string) string {
	host := raw
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		host = u.Hostname()
	}
	host = strings.TrimPrefix(strings.ToLower(host), ".")
	key, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return key
}

// ForSite keeps the cookies whose domain belongs to siteKey.
func ForSite(cookies []models.Cookie, siteKey string) []models.Cookie {
	if siteKey == "" {
		return cookies
	}
	out := make([]models.Cookie, 0, len(cookies))
	for _, c := range cookies {
		if SiteKey(c.Domain) == siteKey {
			out = append(out, c)
		}
	}
	return out
}

// Apply loads the jar and installs it on page. It returns how many cookies
// were applied.
func Apply(ctx context.Context, store Store, page browser.Page) (int, error) {
	jar, err := store.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load cookies from %s: %w", store.Location(), err)
	}
	if len(jar) == 0 {
		return 0, nil
	}
	if err := page.SetCookies(ctx, jar); err != nil {
		return 0, fmt.Errorf("failed to apply cookies: %w", err)
	}
	return len(jar), nil
}

// Snapshot returns a saver that overwrites the jar with the page's current
// cookies for siteKey.
func Snapshot(store Store, siteKey string) func(ctx context.Context, page browser.Page) error {
	return func(ctx context.Context, page browser.Page) error {
		current, err := page.Cookies(ctx)
		if err != nil {
			return fmt.Errorf("failed to read page cookies: %w", err)
		}
		return store.Save(ctx, ForSite(current, siteKey))
	}
}
