package rarbg

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/mediacrawl/internal/browser"
	"github.com/law-makers/mediacrawl/internal/cookies"
	"github.com/law-makers/mediacrawl/internal/engine"
	urlutil "github.com/law-makers/mediacrawl/internal/utils/url"
)

// DefaultClock is the pause after each detail page
const DefaultClock = time.Second

// Options tunes a Searcher
type Options struct {
	Site    Site
	Browser browser.Options
	Store   cookies.Store
	// Clock is the pause after each successful row.
	Clock time.Duration
	// AbortOnError ends the crawl at the first failed row.
	AbortOnError bool
	// MaxErrors ends the crawl once this many rows failed. Zero is unlimited.
	MaxErrors int
	// DetailTimeout bounds each detail fetch.
	DetailTimeout time.Duration
	// LoadTimeout bounds the first load of the listing.
	LoadTimeout time.Duration
	// ReusePage fetches every detail page on a single tab.
	ReusePage bool
}

// Searcher walks a search listing page by page
type Searcher struct {
	launcher browser.Launcher
	opts     Options
}

// NewSearcher creates a searcher. A zero Site takes DefaultSite.
func NewSearcher(launcher browser.Launcher, opts Options) *Searcher {
	if opts.Site.Host == "" {
		opts.Site = DefaultSite
	}
	return &Searcher{launcher: launcher, opts: opts}
}

// Search crawls every listing page reachable from searchURL. The torrents
// gathered so far are returned along with any error that ended the crawl.
func (s *Searcher) Search(ctx context.Context, searchURL string) ([]Torrent, error) {
	site := s.opts.Site

	session, err := s.launcher.Launch(ctx, s.opts.Browser)
	if err != nil {
		return nil, engine.NewEngineError(engine.ErrCodeBrowser, "failed to launch browser", err)
	}
	defer session.Close()

	page, err := session.NewPage(ctx)
	if err != nil {
		return nil, engine.NewEngineError(engine.ErrCodeBrowser, "failed to open page", err)
	}
	defer page.Close()

	if s.opts.Store != nil {
		if n, err := cookies.Apply(ctx, s.opts.Store, page); err != nil {
			log.Warn().Err(err).Msg("Continuing without saved cookies")
		} else {
			log.Debug().Int("count", n).Str("store", s.opts.Store.Location()).Msg("Cookies applied")
		}
	}

	fetcher := &DetailFetcher{
		Site:    site,
		Session: session,
		Store:   s.opts.Store,
		Timeout: s.opts.DetailTimeout,
	}

	var detailPage browser.Page
	if s.opts.ReusePage {
		detailPage, err = session.NewPage(ctx)
		if err != nil {
			return nil, engine.NewEngineError(engine.ErrCodeBrowser, "failed to open detail page", err)
		}
		defer detailPage.Close()
	}

	var torrents []Torrent
	loop := &engine.Loop{
		Name:        "rarbg-search",
		Page:        page,
		LoadTimeout: s.opts.LoadTimeout,
	}
	if s.opts.Store != nil {
		loop.SaveCookies = cookies.Snapshot(s.opts.Store, cookies.SiteKey(site.Host))
	}

	loop.Handlers = engine.Handlers{
		OnLoad: func(ctx context.Context, pageURL string, st *engine.PaginationState) engine.Step {
			if site.IsDefense(pageURL) {
				log.Warn().Str("url", pageURL).Msg("Please enter the captcha code in the browser")
				return engine.Wait()
			}
			if !strings.HasPrefix(pageURL, site.SearchPrefix()) {
				log.Debug().Str("url", pageURL).Msg("Load outside search listing, waiting")
				return engine.Wait()
			}

			rows, err := page.QueryAll(ctx, site.Selectors.Row)
			if err != nil {
				log.Warn().Err(err).Str("url", pageURL).Msg("Failed to query result rows")
			}

			for i, row := range rows {
				href, _ := row.Attr("href")
				detailURL := urlutil.WithHost(site.Host, href)
				if !strings.HasPrefix(detailURL, site.DetailPrefix()) {
					continue
				}

				t, err := fetcher.Fetch(ctx, detailURL, detailPage)
				if err != nil {
					if ctx.Err() != nil {
						return engine.Abort(ctx.Err())
					}
					log.Error().Err(err).Str("url", detailURL).Int("row", i).Msg("Failed to scrape torrent")
					if st.RecordError(s.opts.AbortOnError, s.opts.MaxErrors) {
						log.Warn().Str("url", pageURL).Int("errors", st.Errors).Msg("Abort on error")
						return engine.Done()
					}
					continue
				}

				torrents = append(torrents, t)
				st.RecordItem()
				log.Info().Int("row", i).Int("rows", len(rows)).Int("count", len(torrents)).Msg("Torrent scraped")
				if err := engine.Sleep(ctx, s.opts.Clock); err != nil {
					return engine.Abort(err)
				}
			}

			next := ""
			if len(rows) == site.FullPageSize {
				next = s.nextPage(ctx, page)
			}
			d := engine.Paginate(len(rows), site.FullPageSize, next)
			log.Debug().Int("page", st.Page).Int("rows", len(rows)).Bool("continue", d.Continue).Str("reason", d.Reason).Msg("Pagination decision")
			if !d.Continue {
				return engine.Done()
			}
			return engine.Navigate(d.NextURL)
		},
		OnNavigationFailed: func(ctx context.Context, url string, err error, st *engine.PaginationState) engine.Step {
			if st.Page == 0 {
				return engine.Abort(engine.NewEngineError(engine.ErrCodeNavigation, "navigation to "+url+" failed", err))
			}
			log.Warn().Err(err).Str("url", url).Msg("Next page unreachable, finishing")
			return engine.Done()
		},
	}

	st, err := loop.Run(ctx, searchURL)
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, engine.ErrTimeout) {
		err = engine.Timeout(st.Cursor, err)
	}
	log.Info().Int("pages", st.Page).Int("count", len(torrents)).Int("errors", st.Errors).Msg("Search crawl finished")
	return torrents, err
}

func (s *Searcher) nextPage(ctx context.Context, page browser.Page) string {
	links, err := page.QueryAll(ctx, s.opts.Site.Selectors.NextPage)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to query next page link")
		return ""
	}
	if len(links) == 0 {
		return ""
	}
	href, _ := links[0].Attr("href")
	return urlutil.WithHost(s.opts.Site.Host, href)
}
