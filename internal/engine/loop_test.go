package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/mediacrawl/internal/browser"
	"github.com/law-makers/mediacrawl/internal/browser/browsertest"
)

func newPage(t *testing.T, routes map[string]*browsertest.Route) (*browsertest.Browser, browser.Page) {
	t.Helper()
	fake := browsertest.New(routes)
	page, err := fake.NewPage(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { page.Close() })
	return fake, page
}

func TestLoop_ScrollSettleCollectsResponses(t *testing.T) {
	_, page := newPage(t, map[string]*browsertest.Route{
		"https://site.example/feed": {
			OnScroll: []browser.Event{
				browsertest.ResponseEvent("https://site.example/api?q=1", `{"n":1}`),
				browsertest.ResponseEvent("https://site.example/api?q=2", `{"n":2}`),
			},
		},
	})

	var seen []string
	saves := 0
	loop := &Loop{
		Name:       "test",
		Page:       page,
		Quiescence: 20 * time.Millisecond,
		SaveCookies: func(ctx context.Context, p browser.Page) error {
			saves++
			return nil
		},
		Handlers: Handlers{
			OnLoad: func(ctx context.Context, pageURL string, st *PaginationState) Step {
				return Scroll()
			},
			OnResponse: func(ctx context.Context, resp browser.Response, st *PaginationState) Step {
				seen = append(seen, resp.URL())
				st.RecordItem()
				return Wait()
			},
		},
	}

	st, err := loop.Run(context.Background(), "https://site.example/feed")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://site.example/api?q=1", "https://site.example/api?q=2"}, seen)
	assert.Equal(t, 2, st.Items)
	assert.Equal(t, 1, st.Page)
	assert.Equal(t, 1, saves)
	assert.Equal(t, StateTerminated, loop.State())
	assert.Equal(t, OutcomeSuccess, loop.Outcome())
	assert.False(t, st.Deadline.IsZero())
}

func TestLoop_LoadTimeout(t *testing.T) {
	_, page := newPage(t, map[string]*browsertest.Route{
		"https://site.example/slow": {NoLoad: true},
	})

	loop := &Loop{Name: "test", Page: page, LoadTimeout: 30 * time.Millisecond}
	_, err := loop.Run(context.Background(), "https://site.example/slow")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.True(t, IsTimeout(err))
	assert.Equal(t, OutcomeAborted, loop.Outcome())
}

func TestLoop_DefensePageStallsUntilDeadline(t *testing.T) {
	_, page := newPage(t, map[string]*browsertest.Route{
		"https://site.example/list": {FinalURL: "https://site.example/threat_defence.php"},
	})

	loads := 0
	loop := &Loop{
		Name: "test",
		Page: page,
		Handlers: Handlers{
			OnLoad: func(ctx context.Context, pageURL string, st *PaginationState) Step {
				loads++
				if strings.Contains(pageURL, "threat_defence") {
					return Wait()
				}
				return Done()
			},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := loop.Run(ctx, "https://site.example/list")
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.Equal(t, 1, loads)
}

func TestLoop_NavigationFailure(t *testing.T) {
	_, page := newPage(t, map[string]*browsertest.Route{
		"https://site.example/gone": {NavigateErr: errors.New("net::ERR_NAME_NOT_RESOLVED")},
	})

	loop := &Loop{Name: "test", Page: page}
	_, err := loop.Run(context.Background(), "https://site.example/gone")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNavigation))

	loop = &Loop{
		Name: "test",
		Page: page,
		Handlers: Handlers{
			OnNavigationFailed: func(ctx context.Context, url string, err error, st *PaginationState) Step {
				return Done()
			},
		},
	}
	_, err = loop.Run(context.Background(), "https://site.example/gone")
	assert.NoError(t, err)
}

func TestLoop_FollowsNextPage(t *testing.T) {
	_, page := newPage(t, map[string]*browsertest.Route{
		"https://site.example/p1": {},
		"https://site.example/p2": {},
	})

	var visited []string
	loop := &Loop{
		Name: "test",
		Page: page,
		Handlers: Handlers{
			OnLoad: func(ctx context.Context, pageURL string, st *PaginationState) Step {
				visited = append(visited, pageURL)
				if pageURL == "https://site.example/p1" {
					return Navigate("https://site.example/p2")
				}
				return Done()
			},
		},
	}

	st, err := loop.Run(context.Background(), "https://site.example/p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://site.example/p1", "https://site.example/p2"}, visited)
	assert.Equal(t, 2, st.Page)
}

func TestLoop_CookieFailureIsCountedNotFatal(t *testing.T) {
	_, page := newPage(t, map[string]*browsertest.Route{"https://site.example/": {}})

	loop := &Loop{
		Name: "test",
		Page: page,
		SaveCookies: func(ctx context.Context, p browser.Page) error {
			return errors.New("disk full")
		},
		Handlers: Handlers{
			OnLoad: func(ctx context.Context, pageURL string, st *PaginationState) Step { return Done() },
		},
	}
	_, err := loop.Run(context.Background(), "https://site.example/")
	require.NoError(t, err)
	assert.Equal(t, 1, loop.CookieFailures())
}

func TestLoop_ClosedPageAborts(t *testing.T) {
	_, page := newPage(t, map[string]*browsertest.Route{"https://site.example/": {NoLoad: true}})

	go func() {
		time.Sleep(10 * time.Millisecond)
		page.Close()
	}()
	loop := &Loop{Name: "test", Page: page}
	_, err := loop.Run(context.Background(), "https://site.example/")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBrowser))
}

func TestLoop_SecondRunIgnoresPreviousDocument(t *testing.T) {
	_, page := newPage(t, map[string]*browsertest.Route{
		"https://site.example/a": {OnNavigate: []browser.Event{
			browsertest.RequestEvent("https://cdn.example/a-1", "Media"),
			browsertest.RequestEvent("https://cdn.example/a-2", "Media"),
		}},
		"https://site.example/b": {OnNavigate: []browser.Event{
			browsertest.RequestEvent("https://cdn.example/b-1", "Media"),
		}},
	})

	var got string
	loop := &Loop{
		Name: "test",
		Page: page,
		Handlers: Handlers{
			OnRequest: func(ctx context.Context, req browser.Request, st *PaginationState) Step {
				got = req.URL
				return Done()
			},
		},
	}

	_, err := loop.Run(context.Background(), "https://site.example/a")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/a-1", got)

	_, err = loop.Run(context.Background(), "https://site.example/b")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/b-1", got)
}

func TestLoop_IgnoresFailureOfReplacedNavigation(t *testing.T) {
	_, page := newPage(t, map[string]*browsertest.Route{
		"https://site.example/b": {CommitDelay: 20 * time.Millisecond},
	})
	go func() {
		time.Sleep(5 * time.Millisecond)
		page.(*browsertest.Page).Emit(browser.Event{
			Type: browser.EventNavigationFailed,
			URL:  "https://site.example/a",
			Err:  errors.New("page load error net::ERR_ABORTED"),
		})
	}()

	loaded := ""
	loop := &Loop{
		Name:        "test",
		Page:        page,
		LoadTimeout: time.Second,
		Handlers: Handlers{
			OnLoad: func(ctx context.Context, pageURL string, st *PaginationState) Step {
				loaded = pageURL
				return Done()
			},
		},
	}

	_, err := loop.Run(context.Background(), "https://site.example/b")
	require.NoError(t, err)
	assert.Equal(t, "https://site.example/b", loaded)
	assert.Equal(t, OutcomeSuccess, loop.Outcome())
}
