// Package instagram crawls a profile timeline and its IGTV channel by
// listening to the GraphQL responses the page issues while it is scrolled.
package instagram

import "encoding/json"

// Dimensions of a media item
type Dimensions struct {
	Height int `json:"height"`
	Width  int `json:"width"`
}

// DisplayResource is one rendition of an image
type DisplayResource struct {
	Src          string `json:"src"`
	ConfigWidth  int    `json:"config_width"`
	ConfigHeight int    `json:"config_height"`
}

// Area returns the pixel count of the rendition.
func (d DisplayResource) Area() int {
	return d.ConfigWidth * d.ConfigHeight
}

type CaptionEdge struct {
	Node struct {
		Text string `json:"text"`
	} `json:"node"`
}

type Caption struct {
	Edges []CaptionEdge `json:"edges"`
}

type Location struct {
	ID            string `json:"id"`
	HasPublicPage bool   `json:"has_public_page"`
	Name          string `json:"name"`
	Slug          string `json:"slug"`
}

type Owner struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Edge wraps a node inside an edge list
type Edge struct {
	Node Node `json:"node"`
}

// Children holds the items of a sidecar (carousel) post
type Children struct {
	Edges []Edge `json:"edges,omitempty"`
}

// Node is a timeline item as served by the GraphQL API
type Node struct {
	Typename              string            `json:"__typename"`
	ID                    string            `json:"id"`
	Shortcode             string            `json:"shortcode"`
	Dimensions            *Dimensions       `json:"dimensions,omitempty"`
	DisplayURL            string            `json:"display_url"`
	DisplayResources      []DisplayResource `json:"display_resources,omitempty"`
	IsVideo               bool              `json:"is_video"`
	VideoURL              string            `json:"video_url,omitempty"`
	AccessibilityCaption  string            `json:"accessibility_caption,omitempty"`
	Caption               *Caption          `json:"edge_media_to_caption,omitempty"`
	TakenAtTimestamp      int64             `json:"taken_at_timestamp,omitempty"`
	Location              *Location         `json:"location,omitempty"`
	Owner                 *Owner            `json:"owner,omitempty"`
	EdgeSidecarToChildren *Children         `json:"edge_sidecar_to_children,omitempty"`
}

// ChildNodes returns the carousel children in their original order.
func (n Node) ChildNodes() []Node {
	if n.EdgeSidecarToChildren == nil {
		return nil
	}
	out := make([]Node, 0, len(n.EdgeSidecarToChildren.Edges))
	for _, e := range n.EdgeSidecarToChildren.Edges {
		out = append(out, e.Node)
	}
	return out
}

type PageInfo struct {
	HasNextPage bool   `json:"has_next_page"`
	EndCursor   string `json:"end_cursor"`
}

// Timeline is one edge list of a user
type Timeline struct {
	PageInfo PageInfo `json:"page_info"`
	Count    int      `json:"count,omitempty"`
	Edges    []Edge   `json:"edges,omitempty"`
}

// QueryResponse is the envelope of a GraphQL query response. Edge lists are
// kept raw until one is picked by name.
type QueryResponse struct {
	Data *struct {
		User map[string]json.RawMessage `json:"user"`
	} `json:"data"`
	Status string `json:"status"`
}

// Profile is everything scraped for one account
type Profile struct {
	URL           string   `json:"url"`
	ProfileName   string   `json:"profileName,omitempty"`
	Timeline      []Node   `json:"timeline"`
	TimelineFiles []string `json:"timelineFiles"`
	IGTV          []Node   `json:"igtv"`
	IGTVFiles     []string `json:"igtvFiles"`
}

// ResultSet accumulates nodes and file URLs in arrival order
type ResultSet struct {
	Nodes []Node
	Files []string
}

// Add appends an extraction.
func (r *ResultSet) Add(e Extraction) {
	r.Nodes = append(r.Nodes, e.Nodes...)
	r.Files = append(r.Files, e.Files...)
}
