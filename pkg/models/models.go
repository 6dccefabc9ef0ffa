package models

import "time"

// Cookie represents a browser cookie as persisted in a cookie jar
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// Expired reports whether the cookie has an expiry in the past.
// Session cookies (Expires <= 0) never expire.
func (c Cookie) Expired(now time.Time) bool {
	if c.Expires <= 0 {
		return false
	}
	return now.After(time.Unix(int64(c.Expires), 0))
}

// Site identifies a supported crawl target
type Site string

const (
	SiteInstagram Site = "instagram"
	SiteRarbg     Site = "rarbg"
)

// Sites lists every supported site
var Sites = []Site{SiteInstagram, SiteRarbg}

// DownloadTask is a single file to fetch
type DownloadTask struct {
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
}
