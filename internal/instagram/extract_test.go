package instagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sidecar(children ...Node) *Children {
	c := &Children{}
	for _, n := range children {
		c.Edges = append(c.Edges, Edge{Node: n})
	}
	return c
}

func TestExtract_NoChildren(t *testing.T) {
	node := Node{
		ID:               "1",
		Shortcode:        "a",
		DisplayResources: []DisplayResource{{Src: "small.jpg", ConfigWidth: 10, ConfigHeight: 10}, {Src: "big.jpg", ConfigWidth: 100, ConfigHeight: 100}},
	}

	got := Extract(node)
	require.Len(t, got.Nodes, 1)
	assert.Equal(t, []string{"big.jpg"}, got.Files)
}

func TestExtract_VideoAddsBothAssets(t *testing.T) {
	node := Node{
		Shortcode:  "v",
		DisplayURL: "cover.jpg",
		Dimensions: &Dimensions{Width: 640, Height: 360},
		IsVideo:    true,
		VideoURL:   "clip.mp4",
	}

	got := Extract(node)
	assert.Equal(t, []string{"cover.jpg", "clip.mp4"}, got.Files)
}

func TestExtract_ChildrenArePreOrder(t *testing.T) {
	parent := Node{
		Shortcode:  "p",
		DisplayURL: "p.jpg",
		Dimensions: &Dimensions{Width: 1, Height: 1},
		EdgeSidecarToChildren: sidecar(
			Node{Shortcode: "c1", DisplayURL: "c1.jpg", Dimensions: &Dimensions{Width: 1, Height: 1}},
			Node{Shortcode: "c2", DisplayURL: "c2.jpg", Dimensions: &Dimensions{Width: 1, Height: 1}, IsVideo: true, VideoURL: "c2.mp4"},
			Node{Shortcode: "c3", DisplayURL: "c3.jpg", Dimensions: &Dimensions{Width: 1, Height: 1}},
		),
	}

	got := Extract(parent)
	require.Len(t, got.Nodes, 4)
	var codes []string
	for _, n := range got.Nodes {
		codes = append(codes, n.Shortcode)
	}
	assert.Equal(t, []string{"p", "c1", "c2", "c3"}, codes)
	assert.Equal(t, []string{"p.jpg", "c1.jpg", "c2.jpg", "c2.mp4", "c3.jpg"}, got.Files)

	again := Extract(parent)
	assert.Equal(t, got, again)
}

func TestExtract_MalformedChildDoesNotStopSiblings(t *testing.T) {
	parent := Node{
		Shortcode:  "p",
		DisplayURL: "p.jpg",
		Dimensions: &Dimensions{Width: 1, Height: 1},
		EdgeSidecarToChildren: sidecar(
			Node{Shortcode: "broken"},
			Node{Shortcode: "ok", DisplayURL: "ok.jpg", Dimensions: &Dimensions{Width: 1, Height: 1}},
		),
	}

	got := Extract(parent)
	assert.Len(t, got.Nodes, 3)
	assert.Equal(t, []string{"p.jpg", "ok.jpg"}, got.Files)
}

func TestBestImage(t *testing.T) {
	tests := []struct {
		name    string
		node    Node
		want    string
		wantErr bool
	}{
		{
			name: "largest area wins",
			node: Node{DisplayResources: []DisplayResource{
				{Src: "square", ConfigWidth: 100, ConfigHeight: 100},
				{Src: "wide", ConfigWidth: 150, ConfigHeight: 80},
			}},
			want: "wide",
		},
		{
			name: "first seen wins a tie",
			node: Node{DisplayResources: []DisplayResource{
				{Src: "first", ConfigWidth: 100, ConfigHeight: 100},
				{Src: "second", ConfigWidth: 200, ConfigHeight: 50},
				{Src: "small", ConfigWidth: 50, ConfigHeight: 50},
			}},
			want: "first",
		},
		{
			name: "empty src is skipped",
			node: Node{DisplayResources: []DisplayResource{
				{Src: "", ConfigWidth: 1000, ConfigHeight: 1000},
				{Src: "real", ConfigWidth: 10, ConfigHeight: 10},
			}},
			want: "real",
		},
		{
			name: "falls back to display url",
			node: Node{DisplayURL: "display", Dimensions: &Dimensions{Width: 4, Height: 3}},
			want: "display",
		},
		{
			name:    "nothing usable",
			node:    Node{Shortcode: "x"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BestImage(tt.node)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedNode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Src)
		})
	}
}

func TestNewTarget(t *testing.T) {
	tgt, err := NewTarget("https://www.instagram.com/alice?hl=en")
	require.NoError(t, err)
	assert.Equal(t, "https://www.instagram.com/alice/", tgt.PureURL)
	assert.Equal(t, "alice", tgt.ProfileName)
	assert.Equal(t, "https://www.instagram.com/alice/channel/", tgt.ChannelURL())

	assert.Equal(t, "bob", ProfileName("https://www.instagram.com/bob/channel/"))

	_, err = NewTarget("https://www.instagram.com/")
	assert.Error(t, err)
}
