package instagram

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/mediacrawl/internal/browser"
	"github.com/law-makers/mediacrawl/internal/browser/browsertest"
)

func TestSite_IsQuery(t *testing.T) {
	site := DefaultSite
	assert.True(t, site.IsQuery("https://www.instagram.com/graphql/query/?query_hash=abc&variables=%7B%7D"))
	assert.True(t, site.IsQuery("https://www.instagram.com/graphql/query/?doc_id=1"))
	assert.False(t, site.IsQuery("https://www.instagram.com/graphql/query/?variables=%7B%7D"))
	assert.False(t, site.IsQuery("https://www.instagram.com/alice/"))
}

func TestSite_IsVideoAsset(t *testing.T) {
	site := DefaultSite
	assert.True(t, site.IsVideoAsset(browser.Request{URL: "https://cdn.example/v/a.mp4?efg=1", ResourceType: "Media"}))
	assert.False(t, site.IsVideoAsset(browser.Request{URL: "https://cdn.example/v/a.mp4", ResourceType: "Image"}))
	assert.False(t, site.IsVideoAsset(browser.Request{URL: "https://cdn.example/v/a.m3u8", ResourceType: "media"}))
}

func TestParseEdges_FirstNonEmptyList(t *testing.T) {
	body := []byte(`{"data":{"user":{
		"edge_web_feed_timeline": null,
		"edge_owner_to_timeline_media": {"page_info":{"has_next_page":false},"edges":[]},
		"edge_felix_video_timeline": {"edges":[{"node":{"id":"9","shortcode":"tv9"}}]}
	}},"status":"ok"}`)

	nodes, err := ParseEdges(body, DefaultSite.EdgeNames)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "tv9", nodes[0].Shortcode)

	nodes, err = ParseEdges([]byte(`{"data":{"user":{"edge_owner_to_timeline_media":{"edges":[{"node":{"id":"1"}}]}}}}`), DefaultSite.IGTVEdgeNames)
	require.NoError(t, err)
	assert.Empty(t, nodes)

	nodes, err = ParseEdges([]byte(`{"status":"fail"}`), DefaultSite.EdgeNames)
	require.NoError(t, err)
	assert.Empty(t, nodes)

	_, err = ParseEdges([]byte(`<html>`), DefaultSite.EdgeNames)
	assert.Error(t, err)
}

func TestClassify_NeverFails(t *testing.T) {
	ctx := context.Background()
	site := DefaultSite

	bad := &browsertest.Response{RawURL: "https://www.instagram.com/graphql/query/?query_hash=1", Payload: []byte("not json")}
	assert.Nil(t, site.Classify(ctx, bad, site.EdgeNames))

	unreadable := &browsertest.Response{RawURL: "https://www.instagram.com/graphql/query/?query_hash=1", Err: errors.New("evicted")}
	assert.Nil(t, site.Classify(ctx, unreadable, site.EdgeNames))

	irrelevant := &browsertest.Response{RawURL: "https://www.instagram.com/static/app.js", Payload: []byte(`{}`)}
	assert.Nil(t, site.Classify(ctx, irrelevant, site.EdgeNames))

	good := &browsertest.Response{
		RawURL:  "https://www.instagram.com/graphql/query/?query_id=1",
		Payload: []byte(`{"data":{"user":{"edge_owner_to_timeline_media":{"edges":[{"node":{"id":"1"}},{"node":{"id":"2"}}]}}}}`),
	}
	assert.Len(t, site.Classify(ctx, good, site.EdgeNames), 2)
}
