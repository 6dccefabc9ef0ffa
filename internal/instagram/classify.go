package instagram

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/mediacrawl/internal/browser"
)

// IsQuery reports whether rawURL carries one of the query identifiers.
func (s Site) IsQuery(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.RawQuery == "" {
		return false
	}
	q := u.Query()
	for _, p := range s.QueryParams {
		if q.Get(p) != "" {
			return true
		}
	}
	return false
}

// IsVideoAsset reports whether req fetches a direct video file.
func (s Site) IsVideoAsset(req browser.Request) bool {
	if !req.IsMedia() {
		return false
	}
	u, err := url.Parse(req.URL)
	if err != nil {
		return strings.Contains(req.URL, s.VideoExt)
	}
	return strings.Contains(u.Path, s.VideoExt)
}

// ParseEdges decodes a query response body and returns the nodes of the first
// non-empty edge list among names.
func ParseEdges(body []byte, names []string) ([]Node, error) {
	var resp QueryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil || resp.Data.User == nil {
		return nil, nil
	}
	for _, name := range names {
		raw, ok := resp.Data.User[name]
		if !ok || len(raw) == 0 || string(raw) == "null" {
			continue
		}
		var tl Timeline
		if err := json.Unmarshal(raw, &tl); err != nil {
			return nil, err
		}
		if len(tl.Edges) == 0 {
			continue
		}
		nodes := make([]Node, 0, len(tl.Edges))
		for _, e := range tl.Edges {
			nodes = append(nodes, e.Node)
		}
		return nodes, nil
	}
	return nil, nil
}

// Classify returns the nodes carried by resp, or nil when it is irrelevant.
// Read and parse failures are logged and treated as irrelevant.
func (s Site) Classify(ctx context.Context, resp browser.Response, names []string) []Node {
	if !s.IsQuery(resp.URL()) {
		return nil
	}
	body, err := resp.Body(ctx)
	if err != nil {
		log.Debug().Err(err).Str("url", resp.URL()).Msg("Failed to read query response body")
		return nil
	}
	nodes, err := ParseEdges(body, names)
	if err != nil {
		log.Warn().Err(err).Str("url", resp.URL()).Msg("Skipping malformed query response")
		return nil
	}
	return nodes
}
