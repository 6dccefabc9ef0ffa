package instagram

import (
	"fmt"
	"strings"

	urlutil "github.com/law-makers/mediacrawl/internal/utils/url"
)

// Edge names in the order they are tried
const (
	EdgeWebFeedTimeline      = "edge_web_feed_timeline"
	EdgeOwnerToTimelineMedia = "edge_owner_to_timeline_media"
	EdgeFelixVideoTimeline   = "edge_felix_video_timeline"
)

// Site holds the markers the crawler relies on. All of it is markup the site
// can change, so it is kept in one table.
type Site struct {
	Host string
	// TVPrefix is where an IGTV video page lives.
	TVPrefix string
	// QueryParams mark a response as a GraphQL query.
	QueryParams []string
	// EdgeNames are tried in order on timeline responses.
	EdgeNames []string
	// IGTVEdgeNames are tried in order on channel responses.
	IGTVEdgeNames []string
	// DefensePaths are interstitials that need a human to clear.
	DefensePaths []string
	// VideoExt marks a media request as the video asset.
	VideoExt string
}

// DefaultSite is the live instagram.com table.
var DefaultSite = Site{
	Host:          "https://www.instagram.com",
	TVPrefix:      "https://www.instagram.com/tv/",
	QueryParams:   []string{"query_hash", "query_id", "doc_id"},
	EdgeNames:     []string{EdgeWebFeedTimeline, EdgeOwnerToTimelineMedia, EdgeFelixVideoTimeline},
	IGTVEdgeNames: []string{EdgeFelixVideoTimeline},
	DefensePaths:  []string{"/challenge/", "/accounts/suspended/"},
	VideoExt:      ".mp4",
}

// IsDefense reports whether pageURL is an anti-automation interstitial.
func (s Site) IsDefense(pageURL string) bool {
	for _, p := range s.DefensePaths {
		if strings.Contains(pageURL, p) {
			return true
		}
	}
	return false
}

// TVURL returns the video page of a node.
func (s Site) TVURL(n Node) string {
	return s.TVPrefix + n.Shortcode + "/"
}

// Target is a profile to crawl
type Target struct {
	URL string
	// PureURL is URL without its query, always ending in "/".
	PureURL     string
	ProfileName string
}

// NewTarget derives the canonical identity of a profile URL.
func NewTarget(raw string) (Target, error) {
	pure := urlutil.StripQuery(raw)
	if !strings.HasSuffix(pure, "/") {
		pure += "/"
	}
	name := ProfileName(pure)
	if name == "" {
		return Target{}, fmt.Errorf("no profile name in %q", raw)
	}
	return Target{URL: raw, PureURL: pure, ProfileName: name}, nil
}

// ChannelURL is the profile's IGTV listing.
func (t Target) ChannelURL() string {
	return t.PureURL + "channel/"
}

// ProfileName returns the last non-empty path segment that is not "channel".
func ProfileName(raw string) string {
	segs := urlutil.PathSegments(urlutil.StripQuery(raw))
	for i := len(segs) - 1; i >= 0; i-- {
		if segs[i] != "" && segs[i] != "channel" {
			return segs[i]
		}
	}
	return ""
}
