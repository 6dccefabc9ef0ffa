// Package rarbg crawls a RARBG search result listing, visiting every torrent
// detail page it links to and merging the magnets into a per-search file.
package rarbg

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Selectors locate the parts of the listing and detail pages
type Selectors struct {
	Row         string
	NextPage    string
	TorrentFile string
	Magnet      string
	Poster      string
}

const detailRow = "body > table:nth-child(6) > tbody > tr > td:nth-child(2) > div > table > tbody > tr:nth-child(2) > td > div > table > tbody"

// DefaultSelectors match the mirror's markup.
var DefaultSelectors = Selectors{
	Row:         "table.lista2t > tbody > tr > td:nth-child(2) > a:nth-child(1)",
	NextPage:    "#pager_links > a:last-child",
	TorrentFile: detailRow + " > tr:nth-child(1) > td.lista > a:nth-child(2)",
	Magnet:      detailRow + " > tr:nth-child(1) > td.lista > a:nth-child(3)",
	Poster:      detailRow + " > tr:nth-child(4) > td.lista > img",
}

// Site is the mirror table
type Site struct {
	Host string
	// SearchPath prefixes result listing URLs.
	SearchPath string
	// DetailPath prefixes torrent detail URLs.
	DetailPath string
	// DefensePath marks the CAPTCHA interstitial.
	DefensePath string
	// FullPageSize is the row count of a listing page that is not the last.
	FullPageSize int
	Selectors    Selectors
}

// DefaultSite is the rarbgprx.org mirror.
var DefaultSite = Site{
	Host:         "https://rarbgprx.org",
	SearchPath:   "/torrents.php",
	DetailPath:   "/torrent/",
	DefensePath:  "threat_defence.php",
	FullPageSize: 26,
	Selectors:    DefaultSelectors,
}

// SearchPrefix is the URL prefix of listing pages.
func (s Site) SearchPrefix() string { return s.Host + s.SearchPath }

// DetailPrefix is the URL prefix of detail pages.
func (s Site) DetailPrefix() string { return s.Host + s.DetailPath }

// IsDefense reports whether pageURL is the CAPTCHA interstitial.
func (s Site) IsDefense(pageURL string) bool {
	return strings.Contains(pageURL, s.Host+"/"+s.DefensePath)
}

// IsDetail reports whether pageURL is a torrent detail page.
func (s Site) IsDetail(pageURL string) bool {
	return strings.HasPrefix(pageURL, s.DetailPrefix())
}

// Torrent is one scraped detail page
type Torrent struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	MagnetLink  string `json:"magnetLink,omitempty"`
	TorrentFile string `json:"torrentFile,omitempty"`
	PosterFile  string `json:"posterFile,omitempty"`
}

// SearchResult is the archived output of one search crawl
type SearchResult struct {
	URL      string    `json:"url"`
	Torrents []Torrent `json:"torrents"`
}

// ResultName fingerprints a search URL from its search terms and categories,
// e.g. "the_matrix_in_14_48". It is empty when the URL carries neither.
func ResultName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	q := u.Query()

	var parts []string
	if search := strings.ReplaceAll(q.Get("search"), " ", "_"); search != "" {
		parts = append(parts, search)
	}

	values := append(append([]string(nil), q["category"]...), q["category[]"]...)
	if len(values) == 1 {
		values = strings.Split(values[0], ";")
	}
	var cats []int
	for _, v := range values {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			continue
		}
		cats = append(cats, n)
	}
	if len(cats) > 0 {
		sort.Ints(cats)
		ids := make([]string, len(cats))
		for i, c := range cats {
			ids[i] = strconv.Itoa(c)
		}
		parts = append(parts, strings.Join(ids, "_"))
	}
	return strings.Join(parts, "_in_")
}
