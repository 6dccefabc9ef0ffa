package rarbg

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/mediacrawl/internal/browser"
	"github.com/law-makers/mediacrawl/internal/cookies"
	"github.com/law-makers/mediacrawl/internal/engine"
	urlutil "github.com/law-makers/mediacrawl/internal/utils/url"
)

// DetailFetcher loads one torrent detail page and reads its links
type DetailFetcher struct {
	Site Site
	// Session opens pages when the caller supplies none. When nil, Launcher
	// starts a session for the fetch alone.
	Session  browser.Session
	Launcher browser.Launcher
	Browser  browser.Options
	Store    cookies.Store
	// Timeout bounds the whole fetch. Zero means none.
	Timeout time.Duration
}

// Fetch returns the torrent behind detailURL. When page is nil a page is
// opened for the fetch and closed on every exit path; a caller's page is
// never closed.
func (f *DetailFetcher) Fetch(ctx context.Context, detailURL string, page browser.Page) (Torrent, error) {
	ctx, cancel := engine.WithOptionalTimeout(ctx, f.Timeout)
	defer cancel()

	if page == nil {
		session, own := f.Session, false
		if session == nil {
			if f.Launcher == nil {
				return Torrent{}, engine.NewEngineError(engine.ErrCodeBrowser, "no browser session for detail fetch", nil)
			}
			s, err := f.Launcher.Launch(ctx, f.Browser)
			if err != nil {
				return Torrent{}, engine.NewEngineError(engine.ErrCodeBrowser, "failed to launch browser", err)
			}
			defer s.Close()
			session, own = s, true
		}

		p, err := session.NewPage(ctx)
		if err != nil {
			return Torrent{}, engine.NewEngineError(engine.ErrCodeBrowser, "failed to open page", err)
		}
		defer p.Close()
		// A caller's session already carries the jar.
		if own && f.Store != nil {
			if _, err := cookies.Apply(ctx, f.Store, p); err != nil {
				log.Warn().Err(err).Msg("Continuing without saved cookies")
			}
		}
		page = p
	}

	var torrent Torrent
	loop := &engine.Loop{
		Name: "rarbg-detail",
		Page: page,
		Handlers: engine.Handlers{
			OnLoad: func(ctx context.Context, pageURL string, st *engine.PaginationState) engine.Step {
				if f.Site.IsDefense(pageURL) {
					log.Warn().Str("url", pageURL).Msg("Please enter the captcha code in the browser")
					return engine.Wait()
				}
				if !f.Site.IsDetail(pageURL) {
					return engine.Abort(engine.NewEngineError(engine.ErrCodeNotFound, "not found", nil).WithDetail("url", pageURL))
				}
				html, err := page.HTML(ctx)
				if err != nil {
					return engine.Abort(engine.NewEngineError(engine.ErrCodeExtraction, "failed to read page", err))
				}
				t, err := f.Site.ParseDetail(detailURL, html)
				if err != nil {
					return engine.Abort(err)
				}
				torrent = t
				return engine.Done()
			},
		},
	}
	if f.Store != nil {
		loop.SaveCookies = cookies.Snapshot(f.Store, cookies.SiteKey(f.Site.Host))
	}

	if _, err := loop.Run(ctx, detailURL); err != nil {
		return Torrent{}, err
	}
	return torrent, nil
}

// ParseDetail extracts a torrent from detail page markup. The torrent file
// and magnet links are required; title and poster are best-effort.
func (s Site) ParseDetail(detailURL, html string) (Torrent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Torrent{}, engine.NewEngineError(engine.ErrCodeExtraction, "failed to parse detail page", err)
	}

	fileLink := doc.Find(s.Selectors.TorrentFile).First()
	file, _ := fileLink.Attr("href")
	magnet, _ := doc.Find(s.Selectors.Magnet).First().Attr("href")
	if file == "" || magnet == "" {
		return Torrent{}, engine.NewEngineError(engine.ErrCodeExtraction, "torrent file or magnet link missing", nil).
			WithDetail("url", detailURL)
	}

	t := Torrent{
		URL:         detailURL,
		TorrentFile: urlutil.WithHost(s.Host, file),
		MagnetLink:  magnet,
		Title:       strings.TrimSpace(fileLink.Text()),
	}
	if poster, ok := doc.Find(s.Selectors.Poster).First().Attr("src"); ok {
		t.PosterFile = poster
	} else {
		log.Debug().Str("url", detailURL).Msg("No poster on detail page")
	}
	return t, nil
}
