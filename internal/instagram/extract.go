package instagram

import (
	"errors"

	"github.com/rs/zerolog/log"
)

// ErrMalformedNode is returned when a node has no usable image at all
var ErrMalformedNode = errors.New("node has no display resources and no display url")

// Extraction is the pre-order flattening of a node tree
type Extraction struct {
	Nodes []Node
	Files []string
}

// Extract flattens node and its carousel children. Each node contributes its
// best image, then its video when it is one; children follow their parent.
func Extract(node Node) Extraction {
	var out Extraction
	extractInto(&out, node)
	return out
}

func extractInto(out *Extraction, node Node) {
	log.Debug().Str("shortcode", node.Shortcode).Str("type", node.Typename).Msg("Parsing node")

	out.Nodes = append(out.Nodes, node)
	if img, err := BestImage(node); err != nil {
		log.Warn().Err(err).Str("id", node.ID).Str("shortcode", node.Shortcode).Msg("No image for node")
	} else {
		out.Files = append(out.Files, img.Src)
	}
	if node.IsVideo && node.VideoURL != "" {
		out.Files = append(out.Files, node.VideoURL)
	}

	for _, child := range node.ChildNodes() {
		extractInto(out, child)
	}
}

// BestImage picks the rendition with the largest area; the first one seen
// wins a tie. Without renditions it falls back to the display url.
func BestImage(node Node) (DisplayResource, error) {
	var (
		best  DisplayResource
		found bool
	)
	for _, d := range node.DisplayResources {
		if d.Src == "" {
			continue
		}
		if !found || d.Area() > best.Area() {
			best = d
			found = true
		}
	}
	if found {
		return best, nil
	}

	if node.DisplayURL == "" || node.Dimensions == nil {
		return DisplayResource{}, ErrMalformedNode
	}
	return DisplayResource{
		Src:          node.DisplayURL,
		ConfigWidth:  node.Dimensions.Width,
		ConfigHeight: node.Dimensions.Height,
	}, nil
}
