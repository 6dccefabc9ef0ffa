package rarbg

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/mediacrawl/internal/browser"
	"github.com/law-makers/mediacrawl/internal/browser/browsertest"
	"github.com/law-makers/mediacrawl/internal/engine"
	"github.com/law-makers/mediacrawl/internal/utils/output"
	"github.com/law-makers/mediacrawl/pkg/models"
)

func listingHTML(hrefs []string, next string) string {
	var b strings.Builder
	b.WriteString(`<html><body><table class="lista2t"><tbody>`)
	b.WriteString(`<tr><td class="header6">Cat.</td><td class="header6">File</td></tr>`)
	for i, h := range hrefs {
		fmt.Fprintf(&b, `<tr><td><img src="/cat.gif"></td><td><a href="%s">Result %d</a><a href="/tv/1">IMDB</a></td></tr>`, h, i)
	}
	b.WriteString(`</tbody></table>`)
	if next != "" {
		fmt.Fprintf(&b, `<div id="pager_links"><a href="/torrents.php?page=1">1</a><a href="%s">&gt;&gt;</a></div>`, next)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

func detailHTML(title, file, magnet, poster string) string {
	links := fmt.Sprintf(`<img src="/static/dl.gif"><a href="%s">%s</a>`, file, title)
	if magnet != "" {
		links += fmt.Sprintf(`<a href="%s"><img src="/static/magnet.gif"></a>`, magnet)
	}
	posterCell := ""
	if poster != "" {
		posterCell = fmt.Sprintf(`<img src="%s">`, poster)
	}
	return `<html><body><div></div><div></div><div></div><div></div><div></div>` +
		`<table><tbody><tr><td>menu</td><td><div><table><tbody>` +
		`<tr><td>title</td></tr>` +
		`<tr><td><div><table><tbody>` +
		`<tr><td class="header2">Torrent:</td><td class="lista">` + links + `</td></tr>` +
		`<tr><td class="header2">Added:</td><td class="lista">today</td></tr>` +
		`<tr><td class="header2">Size:</td><td class="lista">1 GB</td></tr>` +
		`<tr><td class="header2">Poster:</td><td class="lista">` + posterCell + `</td></tr>` +
		`</tbody></table></div></td></tr>` +
		`</tbody></table></div></td></tr></tbody></table></body></html>`
}

func magnetFor(id string) string {
	return "magnet:?xt=urn:btih:" + id + "&dn=" + id + "&tr=udp%3A%2F%2Ftracker"
}

func TestResultName(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://rarbgprx.org/torrents.php?search=the+matrix&category=48;14", "the_matrix_in_14_48"},
		{"https://rarbgprx.org/torrents.php?category[]=52&category[]=41", "41_52"},
		{"https://rarbgprx.org/torrents.php?search=dune", "dune"},
		{"https://rarbgprx.org/torrents.php?search=a%20%20b&category=x;7", "a__b_in_7"},
		{"https://rarbgprx.org/torrents.php", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResultName(tt.url), tt.url)
	}
}

func TestMergeMagnets(t *testing.T) {
	existing := []string{magnetFor("A") + "&old=1", "", "  ", magnetFor("C")}
	torrents := []Torrent{
		{MagnetLink: magnetFor("B")},
		{MagnetLink: "magnet:?xt=urn:btih:A&dn=fresh"},
		{MagnetLink: ""},
	}

	got := MergeMagnets(existing, torrents)
	assert.Equal(t, []string{"magnet:?xt=urn:btih:A&dn=fresh", magnetFor("C"), magnetFor("B")}, got)
	assert.Equal(t, "magnet:?xt=urn:btih:A", MagnetKey(got[0]))
}

func TestMergeMagnets_Idempotent(t *testing.T) {
	a := []Torrent{{MagnetLink: magnetFor("1")}, {MagnetLink: magnetFor("2")}}
	b := []Torrent{{MagnetLink: magnetFor("2")}, {MagnetLink: magnetFor("3")}}

	once := MergeMagnets(nil, a)
	assert.Equal(t, once, MergeMagnets(once, a))

	ab := MergeMagnets(MergeMagnets(nil, a), b)
	aba := MergeMagnets(ab, a)
	assert.Equal(t, ab, aba)
	assert.Len(t, aba, 3)
}

func TestSaveResults(t *testing.T) {
	dir := t.TempDir()
	result := SearchResult{
		URL:      "https://rarbgprx.org/torrents.php?search=dune&category=14",
		Torrents: []Torrent{{URL: "https://rarbgprx.org/torrent/a", MagnetLink: magnetFor("A")}},
	}

	paths, err := SaveResults(dir, "t1", result)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "rarbg", "t1-dune_in_14.json"), paths.Result)
	assert.Equal(t, filepath.Join(dir, "rarbg", "dune_in_14.txt"), paths.Magnets)

	var archived SearchResult
	require.NoError(t, output.LoadJSON(paths.Result, &archived))
	assert.Equal(t, result, archived)

	first, err := output.ReadLines(paths.Magnets)
	require.NoError(t, err)

	_, err = SaveResults(dir, "t2", result)
	require.NoError(t, err)
	second, err := output.ReadLines(paths.Magnets)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	paths, err = SaveResults(dir, "t3", SearchResult{URL: "https://rarbgprx.org/torrents.php"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "rarbg", "t3.txt"), paths.Magnets)
	assert.Equal(t, 0, paths.Count)
}

func TestParseDetail(t *testing.T) {
	site := DefaultSite
	html := detailHTML("Dune.2021.1080p", "/download.php?id=abc&f=Dune.torrent", magnetFor("D"), "https://dyncdn.example/poster.jpg")

	got, err := site.ParseDetail("https://rarbgprx.org/torrent/abc", html)
	require.NoError(t, err)
	assert.Equal(t, Torrent{
		URL:         "https://rarbgprx.org/torrent/abc",
		Title:       "Dune.2021.1080p",
		TorrentFile: "https://rarbgprx.org/download.php?id=abc&f=Dune.torrent",
		MagnetLink:  magnetFor("D"),
		PosterFile:  "https://dyncdn.example/poster.jpg",
	}, got)

	got, err = site.ParseDetail("u", detailHTML("t", "/f.torrent", magnetFor("E"), ""))
	require.NoError(t, err)
	assert.Empty(t, got.PosterFile)

	_, err = site.ParseDetail("u", detailHTML("t", "/f.torrent", "", ""))
	assert.True(t, errors.Is(err, engine.ErrExtraction))
}

func TestDetailFetcher_TimeoutClosesOwnPage(t *testing.T) {
	fake := browsertest.New(map[string]*browsertest.Route{
		"https://rarbgprx.org/torrent/slow": {NoLoad: true},
	})
	session, err := fake.Launch(context.Background(), browser.Options{})
	require.NoError(t, err)

	f := &DetailFetcher{Site: DefaultSite, Session: session, Timeout: 30 * time.Millisecond}
	_, err = f.Fetch(context.Background(), "https://rarbgprx.org/torrent/slow", nil)
	require.Error(t, err)
	assert.True(t, engine.IsTimeout(err))
	assert.Zero(t, fake.OpenPages())
	assert.False(t, fake.Closed(), "caller's session stays open")
}

func TestDetailFetcher_ReusedPageStaysOpen(t *testing.T) {
	fake := browsertest.New(map[string]*browsertest.Route{
		"https://rarbgprx.org/torrent/ok": {HTML: detailHTML("ok", "/ok.torrent", magnetFor("OK"), "")},
	})
	page, err := fake.NewPage(context.Background())
	require.NoError(t, err)

	f := &DetailFetcher{Site: DefaultSite, Session: fake}
	got, err := f.Fetch(context.Background(), "https://rarbgprx.org/torrent/ok", page)
	require.NoError(t, err)
	assert.Equal(t, magnetFor("OK"), got.MagnetLink)
	assert.Equal(t, 1, fake.OpenPages())
	assert.Len(t, fake.Pages(), 1)
}

func TestDetailFetcher_OwnSessionAndNotFound(t *testing.T) {
	fake := browsertest.New(map[string]*browsertest.Route{
		"https://rarbgprx.org/torrent/gone": {FinalURL: "https://rarbgprx.org/torrents.php"},
	})

	f := &DetailFetcher{Site: DefaultSite, Launcher: fake}
	_, err := f.Fetch(context.Background(), "https://rarbgprx.org/torrent/gone", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrNotFound))
	assert.Equal(t, 1, fake.Launches())
	assert.True(t, fake.Closed())
	assert.Zero(t, fake.OpenPages())
}

func TestDetailFetcher_ReusedPageIgnoresLateLoad(t *testing.T) {
	fake := browsertest.New(map[string]*browsertest.Route{
		"https://rarbgprx.org/torrent/a": {
			HTML:   detailHTML("a", "/a.torrent", magnetFor("A"), ""),
			NoLoad: true,
		},
		"https://rarbgprx.org/torrent/b": {
			HTML:        detailHTML("b", "/b.torrent", magnetFor("B"), ""),
			CommitDelay: 10 * time.Millisecond,
		},
	})
	page, err := fake.NewPage(context.Background())
	require.NoError(t, err)

	f := &DetailFetcher{Site: DefaultSite, Session: fake, Timeout: 30 * time.Millisecond}
	_, err = f.Fetch(context.Background(), "https://rarbgprx.org/torrent/a", page)
	require.True(t, engine.IsTimeout(err))

	// the load of a arrives after its fetch gave up
	page.(*browsertest.Page).Emit(browser.Event{Type: browser.EventLoad})

	got, err := f.Fetch(context.Background(), "https://rarbgprx.org/torrent/b", page)
	require.NoError(t, err)
	assert.Equal(t, "https://rarbgprx.org/torrent/b", got.URL)
	assert.Equal(t, magnetFor("B"), got.MagnetLink)
}

type countingStore struct {
	loads int
	jar   []models.Cookie
}

func (s *countingStore) Load(ctx context.Context) ([]models.Cookie, error) {
	s.loads++
	return s.jar, nil
}
func (s *countingStore) Save(ctx context.Context, c []models.Cookie) error { s.jar = c; return nil }
func (s *countingStore) Clear(ctx context.Context) error                   { s.jar = nil; return nil }
func (s *countingStore) Location() string                                  { return "memory" }

func TestSearch_ReadsJarOnce(t *testing.T) {
	fake, start := searchFixture([]int{3})
	store := &countingStore{jar: []models.Cookie{{Name: "sid", Value: "1", Domain: ".rarbgprx.org", Path: "/"}}}

	torrents, err := NewSearcher(fake, Options{Store: store}).Search(context.Background(), start)
	require.NoError(t, err)
	assert.Len(t, torrents, 3)
	assert.Equal(t, 1, store.loads)
}

// searchFixture serves len(pages) listing pages with the given row counts,
// every row linking to a working detail page.
func searchFixture(pages []int) (*browsertest.Browser, string) {
	fake := browsertest.New(nil)
	start := "https://rarbgprx.org/torrents.php?search=dune"
	for p, rows := range pages {
		var hrefs []string
		for r := 0; r < rows; r++ {
			id := fmt.Sprintf("p%dr%d", p+1, r)
			hrefs = append(hrefs, "/torrent/"+id)
			fake.Handle("https://rarbgprx.org/torrent/"+id, &browsertest.Route{
				HTML: detailHTML(id, "/download.php?id="+id, magnetFor(id), ""),
			})
		}
		url := start
		if p > 0 {
			url = fmt.Sprintf("%s&page=%d", start, p+1)
		}
		next := fmt.Sprintf("/torrents.php?search=dune&page=%d", p+2)
		fake.Handle(url, &browsertest.Route{HTML: listingHTML(hrefs, next)})
	}
	return fake, start
}

func TestSearch_StopsOnPartialPage(t *testing.T) {
	fake, start := searchFixture([]int{26, 26, 10})

	torrents, err := NewSearcher(fake, Options{}).Search(context.Background(), start)
	require.NoError(t, err)
	assert.Len(t, torrents, 62)

	listing := fake.Pages()[0]
	assert.Equal(t, []string{
		start,
		"https://rarbgprx.org/torrents.php?search=dune&page=2",
		"https://rarbgprx.org/torrents.php?search=dune&page=3",
	}, listing.Navigated())
	assert.True(t, fake.Closed())
	assert.Zero(t, fake.OpenPages())
}

func TestSearch_ReusesOneDetailPage(t *testing.T) {
	fake, start := searchFixture([]int{3})

	torrents, err := NewSearcher(fake, Options{ReusePage: true}).Search(context.Background(), start)
	require.NoError(t, err)
	assert.Len(t, torrents, 3)
	assert.Len(t, fake.Pages(), 2)
	assert.Len(t, fake.Pages()[1].Navigated(), 3)
}

func TestSearch_ReusedPageKeepsRowsAligned(t *testing.T) {
	fake, start := searchFixture([]int{4})
	for _, id := range []string{"p1r0", "p1r1", "p1r2", "p1r3"} {
		fake.Handle("https://rarbgprx.org/torrent/"+id, &browsertest.Route{
			HTML:        detailHTML(id, "/download.php?id="+id, magnetFor(id), ""),
			CommitDelay: 5 * time.Millisecond,
		})
	}
	fake.Handle("https://rarbgprx.org/torrent/p1r1", &browsertest.Route{
		HTML:     detailHTML("p1r1", "/download.php?id=p1r1", magnetFor("p1r1"), ""),
		LateLoad: 60 * time.Millisecond,
	})

	torrents, err := NewSearcher(fake, Options{ReusePage: true, DetailTimeout: 40 * time.Millisecond}).
		Search(context.Background(), start)
	require.NoError(t, err)
	require.Len(t, torrents, 3)
	for _, tr := range torrents {
		id := tr.URL[strings.LastIndex(tr.URL, "/")+1:]
		assert.Equal(t, magnetFor(id), tr.MagnetLink, tr.URL)
		assert.NotEqual(t, "p1r1", id)
	}
}

func TestSearch_AbortOnError(t *testing.T) {
	fake, start := searchFixture([]int{26, 26})
	fake.Handle("https://rarbgprx.org/torrent/p1r2", &browsertest.Route{HTML: detailHTML("broken", "/x", "", "")})

	torrents, err := NewSearcher(fake, Options{AbortOnError: true}).Search(context.Background(), start)
	require.NoError(t, err)
	assert.Len(t, torrents, 2)
	assert.Len(t, fake.Pages()[0].Navigated(), 1)
}

func TestSearch_ErrorBudget(t *testing.T) {
	fake, start := searchFixture([]int{10})
	for _, id := range []string{"p1r1", "p1r4"} {
		fake.Handle("https://rarbgprx.org/torrent/"+id, &browsertest.Route{HTML: detailHTML("broken", "/x", "", "")})
	}

	torrents, err := NewSearcher(fake, Options{}).Search(context.Background(), start)
	require.NoError(t, err)
	assert.Len(t, torrents, 8)

	fake, start = searchFixture([]int{10})
	for _, id := range []string{"p1r1", "p1r4"} {
		fake.Handle("https://rarbgprx.org/torrent/"+id, &browsertest.Route{HTML: detailHTML("broken", "/x", "", "")})
	}
	torrents, err = NewSearcher(fake, Options{MaxErrors: 2}).Search(context.Background(), start)
	require.NoError(t, err)
	assert.Len(t, torrents, 3)
}

func TestSearch_NextPageFailureKeepsResults(t *testing.T) {
	fake, start := searchFixture([]int{26})
	fake.Handle("https://rarbgprx.org/torrents.php?search=dune&page=2", &browsertest.Route{NavigateErr: errors.New("net::ERR_CONNECTION_RESET")})

	torrents, err := NewSearcher(fake, Options{}).Search(context.Background(), start)
	require.NoError(t, err)
	assert.Len(t, torrents, 26)
}

func TestSearch_DefensePageStalls(t *testing.T) {
	fake := browsertest.New(map[string]*browsertest.Route{
		"https://rarbgprx.org/torrents.php?search=dune": {FinalURL: "https://rarbgprx.org/threat_defence.php?defence=1"},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	torrents, err := NewSearcher(fake, Options{}).Search(ctx, "https://rarbgprx.org/torrents.php?search=dune")
	require.Error(t, err)
	assert.True(t, engine.IsTimeout(err))
	assert.Empty(t, torrents)
	assert.True(t, fake.Closed())
}
