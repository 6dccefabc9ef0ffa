package instagram

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/mediacrawl/internal/browser"
	"github.com/law-makers/mediacrawl/internal/browser/browsertest"
	"github.com/law-makers/mediacrawl/internal/cookies"
	"github.com/law-makers/mediacrawl/internal/engine"
	"github.com/law-makers/mediacrawl/internal/utils/output"
	"github.com/law-makers/mediacrawl/pkg/models"
)

const timelineBody = `{"data":{"user":{"edge_owner_to_timeline_media":{"edges":[
	{"node":{"__typename":"GraphImage","id":"1","shortcode":"one","display_resources":[
		{"src":"one-small.jpg","config_width":100,"config_height":100},
		{"src":"one-big.jpg","config_width":150,"config_height":80}]}},
	{"node":{"__typename":"GraphSidecar","id":"2","shortcode":"two","display_url":"two.jpg","dimensions":{"width":1,"height":1},
		"edge_sidecar_to_children":{"edges":[
			{"node":{"__typename":"GraphImage","id":"2a","shortcode":"two-a","display_url":"two-a.jpg","dimensions":{"width":1,"height":1}}},
			{"node":{"__typename":"GraphVideo","id":"2b","shortcode":"two-b","display_url":"two-b.jpg","dimensions":{"width":1,"height":1},"is_video":true,"video_url":"two-b.mp4"}}]}}}
]}}},"status":"ok"}`

const igtvBody = `{"data":{"user":{"edge_felix_video_timeline":{"edges":[
	{"node":{"__typename":"GraphVideo","id":"10","shortcode":"tv1","display_url":"tv1-cover.jpg","is_video":true}},
	{"node":{"__typename":"GraphVideo","id":"11","shortcode":"tv2","display_url":"tv2-cover.jpg","is_video":true}}
]}}},"status":"ok"}`

func newTestCrawler(fake *browsertest.Browser, store cookies.Store) *Crawler {
	return NewCrawler(fake, Options{
		Store:        store,
		Clock:        time.Millisecond,
		Quiescence:   20 * time.Millisecond,
		VideoTimeout: 50 * time.Millisecond,
	})
}

func TestCrawler_FetchProfile(t *testing.T) {
	dir := t.TempDir()
	store := &cookies.FileStore{Path: filepath.Join(dir, "instagram", cookies.FileName)}

	fake := browsertest.New(map[string]*browsertest.Route{
		"https://www.instagram.com/alice/": {
			SetCookies: []models.Cookie{
				{Name: "sessionid", Value: "s", Domain: ".instagram.com", Path: "/"},
				{Name: "tracker", Value: "t", Domain: ".ads.example", Path: "/"},
			},
			OnScroll: []browser.Event{
				browsertest.ResponseEvent("https://www.instagram.com/static/bundle.js", "x"),
				browsertest.ResponseEvent("https://www.instagram.com/graphql/query/?query_hash=feed", timelineBody),
			},
		},
		"https://www.instagram.com/alice/channel/": {
			OnScroll: []browser.Event{
				browsertest.ResponseEvent("https://www.instagram.com/graphql/query/?query_hash=felix", igtvBody),
			},
		},
		"https://www.instagram.com/tv/tv1/": {
			OnNavigate: []browser.Event{
				browsertest.RequestEvent("https://cdn.example/tv1-poster.jpg", "Image"),
				browsertest.RequestEvent("https://cdn.example/tv1.mp4?bytestart=0", "Media"),
				browsertest.RequestEvent("https://cdn.example/tv1.mp4?bytestart=900", "Media"),
			},
		},
		"https://www.instagram.com/tv/tv2/": {
			OnNavigate: []browser.Event{
				browsertest.RequestEvent("https://cdn.example/tv2.mp4?bytestart=0", "Media"),
			},
		},
	})

	target, err := NewTarget("https://www.instagram.com/alice/")
	require.NoError(t, err)

	profile, err := newTestCrawler(fake, store).FetchProfile(context.Background(), target)
	require.NoError(t, err)

	assert.Equal(t, "alice", profile.ProfileName)
	require.Len(t, profile.Timeline, 4)
	assert.Equal(t, []string{"one-big.jpg", "two.jpg", "two-a.jpg", "two-b.jpg", "two-b.mp4"}, profile.TimelineFiles)

	require.Len(t, profile.IGTV, 2)
	assert.Equal(t, []string{"tv1-cover.jpg", "tv2-cover.jpg",
		"https://cdn.example/tv1.mp4?bytestart=0", "https://cdn.example/tv2.mp4?bytestart=0"}, profile.IGTVFiles)

	assert.Equal(t, 2, fake.Launches(), "timeline and igtv run in their own sessions")
	assert.True(t, fake.Closed())
	assert.Zero(t, fake.OpenPages())

	jar, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, jar, 1)
	assert.Equal(t, "sessionid", jar[0].Name)
}

func TestCrawler_DefensePageStalls(t *testing.T) {
	fake := browsertest.New(map[string]*browsertest.Route{
		"https://www.instagram.com/alice/": {FinalURL: "https://www.instagram.com/challenge/?next=/alice/"},
	})
	target, err := NewTarget("https://www.instagram.com/alice/")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	rs, err := newTestCrawler(fake, nil).Timeline(ctx, target)
	require.Error(t, err)
	assert.True(t, engine.IsTimeout(err))
	assert.Empty(t, rs.Nodes)
	assert.True(t, fake.Closed())
	assert.Zero(t, fake.OpenPages())
}

func TestCrawler_FetchVideoLeavesPageOpen(t *testing.T) {
	fake := browsertest.New(map[string]*browsertest.Route{
		"https://www.instagram.com/tv/slow/": {},
	})
	page, err := fake.NewPage(context.Background())
	require.NoError(t, err)

	_, err = newTestCrawler(fake, nil).FetchVideo(context.Background(), page, "https://www.instagram.com/tv/slow/")
	assert.True(t, engine.IsTimeout(err))
	assert.False(t, page.(*browsertest.Page).Closed())
}

func TestCrawler_FetchVideoReusedPage(t *testing.T) {
	fake := browsertest.New(map[string]*browsertest.Route{
		"https://www.instagram.com/tv/one/": {
			OnNavigate: []browser.Event{
				browsertest.RequestEvent("https://cdn.example/one.mp4", "Media"),
				browsertest.RequestEvent("https://cdn.example/one.mp4?range=2", "Media"),
			},
		},
		"https://www.instagram.com/tv/two/": {
			OnNavigate: []browser.Event{
				browsertest.RequestEvent("https://cdn.example/two.mp4", "Media"),
			},
		},
	})
	page, err := fake.NewPage(context.Background())
	require.NoError(t, err)
	c := newTestCrawler(fake, nil)

	v1, err := c.FetchVideo(context.Background(), page, "https://www.instagram.com/tv/one/")
	require.NoError(t, err)
	v2, err := c.FetchVideo(context.Background(), page, "https://www.instagram.com/tv/two/")
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example/one.mp4", v1)
	assert.Equal(t, "https://cdn.example/two.mp4", v2)
}

func TestCrawler_FetchVideoAfterAbortedNavigation(t *testing.T) {
	fake := browsertest.New(map[string]*browsertest.Route{
		"https://www.instagram.com/tv/two/": {
			CommitDelay: 20 * time.Millisecond,
			OnNavigate: []browser.Event{
				browsertest.RequestEvent("https://cdn.example/two.mp4", "Media"),
			},
		},
	})
	page, err := fake.NewPage(context.Background())
	require.NoError(t, err)

	// tv/one was replaced before it committed; its abort surfaces late
	go func() {
		time.Sleep(5 * time.Millisecond)
		page.(*browsertest.Page).Emit(browser.Event{
			Type: browser.EventNavigationFailed,
			URL:  "https://www.instagram.com/tv/one/",
			Err:  errors.New("page load error net::ERR_ABORTED"),
		})
	}()

	v, err := newTestCrawler(fake, nil).FetchVideo(context.Background(), page, "https://www.instagram.com/tv/two/")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/two.mp4", v)
}

func TestSaveProfile(t *testing.T) {
	dir := t.TempDir()
	p := &Profile{
		URL:           "https://www.instagram.com/alice/",
		ProfileName:   "alice",
		Timeline:      []Node{{ID: "1"}},
		TimelineFiles: []string{"a.jpg", "b.mp4"},
		IGTV:          []Node{},
		IGTVFiles:     []string{},
	}

	paths, err := SaveProfile(dir, "task1", p)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "instagram", "alice", ".data", "task1-data.json"), paths.Data)

	var loaded Profile
	require.NoError(t, output.LoadJSON(paths.Data, &loaded))
	assert.Equal(t, p.TimelineFiles, loaded.TimelineFiles)

	lines, err := output.ReadLines(paths.TimelineFiles)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg", "b.mp4"}, lines)

	lines, err = output.ReadLines(paths.IGTVFiles)
	require.NoError(t, err)
	assert.Empty(t, lines)

	assert.Len(t, DownloadTasks([]string{"a", "", "b"}), 2)
}
