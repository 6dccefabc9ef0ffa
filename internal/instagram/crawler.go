package instagram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/mediacrawl/internal/browser"
	"github.com/law-makers/mediacrawl/internal/cookies"
	"github.com/law-makers/mediacrawl/internal/engine"
)

// Default timings
const (
	DefaultClock        = time.Second
	DefaultVideoTimeout = 5 * time.Second
)

// Options tunes a Crawler
type Options struct {
	Site    Site
	Browser browser.Options
	// Store holds the instagram jar. Nil disables cookie persistence.
	Store cookies.Store
	// Clock is the pause before each IGTV video page.
	Clock time.Duration
	// Quiescence is the settle wait after scrolling.
	Quiescence time.Duration
	// LoadTimeout bounds the wait for the first load of a listing page.
	LoadTimeout time.Duration
	// VideoTimeout bounds each IGTV video page.
	VideoTimeout time.Duration
	ScrollScript string
}

// Crawler scrapes a profile's timeline and IGTV channel, each in its own
// browser session.
type Crawler struct {
	launcher browser.Launcher
	opts     Options
}

// NewCrawler creates a crawler. Zero Options fields take defaults.
func NewCrawler(launcher browser.Launcher, opts Options) *Crawler {
	if opts.Site.Host == "" {
		opts.Site = DefaultSite
	}
	if opts.Clock < 0 {
		opts.Clock = 0
	}
	if opts.VideoTimeout == 0 {
		opts.VideoTimeout = DefaultVideoTimeout
	}
	return &Crawler{launcher: launcher, opts: opts}
}

// FetchProfile runs the timeline crawl and then the IGTV crawl. Whatever was
// collected is returned even when one of them fails.
func (c *Crawler) FetchProfile(ctx context.Context, t Target) (*Profile, error) {
	profile := &Profile{
		URL:           t.PureURL,
		ProfileName:   t.ProfileName,
		Timeline:      []Node{},
		TimelineFiles: []string{},
		IGTV:          []Node{},
		IGTVFiles:     []string{},
	}

	var errs []error
	timeline, err := c.Timeline(ctx, t)
	profile.Timeline = append(profile.Timeline, timeline.Nodes...)
	profile.TimelineFiles = append(profile.TimelineFiles, timeline.Files...)
	if err != nil {
		log.Warn().Err(err).Str("profile", t.ProfileName).Int("count", len(timeline.Nodes)).Msg("Timeline crawl ended early")
		errs = append(errs, fmt.Errorf("timeline: %w", err))
	}

	if ctx.Err() == nil {
		igtv, err := c.IGTV(ctx, t)
		profile.IGTV = append(profile.IGTV, igtv.Nodes...)
		profile.IGTVFiles = append(profile.IGTVFiles, igtv.Files...)
		if err != nil {
			log.Warn().Err(err).Str("profile", t.ProfileName).Int("count", len(igtv.Nodes)).Msg("IGTV crawl ended early")
			errs = append(errs, fmt.Errorf("igtv: %w", err))
		}
	}

	log.Info().
		Str("profile", t.ProfileName).
		Int("timeline", len(profile.Timeline)).
		Int("timeline_files", len(profile.TimelineFiles)).
		Int("igtv", len(profile.IGTV)).
		Int("igtv_files", len(profile.IGTVFiles)).
		Msg("Profile fetched")
	return profile, errors.Join(errs...)
}

// Timeline scrolls the profile page and collects every node the feed
// responses carry.
func (c *Crawler) Timeline(ctx context.Context, t Target) (ResultSet, error) {
	var rs ResultSet

	session, page, err := c.open(ctx)
	if err != nil {
		return rs, err
	}
	defer session.Close()
	defer page.Close()

	loop := c.listingLoop("instagram-timeline", page, t.PureURL)
	loop.Handlers.OnResponse = func(ctx context.Context, resp browser.Response, st *engine.PaginationState) engine.Step {
		for _, node := range c.opts.Site.Classify(ctx, resp, c.opts.Site.EdgeNames) {
			rs.Add(Extract(node))
			st.RecordItem()
		}
		return engine.Wait()
	}

	_, err = loop.Run(ctx, t.URL)
	return rs, err
}

// IGTV scrolls the channel page for video nodes, then visits each video page
// on one reused tab to capture the video file.
func (c *Crawler) IGTV(ctx context.Context, t Target) (ResultSet, error) {
	var rs ResultSet

	session, page, err := c.open(ctx)
	if err != nil {
		return rs, err
	}
	defer session.Close()
	defer page.Close()

	loop := c.listingLoop("instagram-igtv", page, t.ChannelURL())
	loop.Handlers.OnResponse = func(ctx context.Context, resp browser.Response, st *engine.PaginationState) engine.Step {
		if !strings.Contains(st.Cursor, t.ProfileName) {
			return engine.Wait()
		}
		for _, node := range c.opts.Site.Classify(ctx, resp, c.opts.Site.IGTVEdgeNames) {
			rs.Nodes = append(rs.Nodes, node)
			if node.DisplayURL != "" {
				rs.Files = append(rs.Files, node.DisplayURL)
			}
			st.RecordItem()
		}
		return engine.Wait()
	}

	if _, err := loop.Run(ctx, t.ChannelURL()); err != nil {
		return rs, err
	}
	if len(rs.Nodes) == 0 {
		return rs, nil
	}

	videoPage, err := c.newPage(ctx, session)
	if err != nil {
		return rs, err
	}
	defer videoPage.Close()

	for i, node := range rs.Nodes {
		if err := engine.Sleep(ctx, c.opts.Clock); err != nil {
			return rs, err
		}
		tvURL := c.opts.Site.TVURL(node)
		videoURL, err := c.FetchVideo(ctx, videoPage, tvURL)
		if err != nil {
			log.Warn().Err(err).Str("url", tvURL).Int("row", i).Msg("Skipping IGTV video")
			if ctx.Err() != nil {
				return rs, err
			}
			continue
		}
		rs.Files = append(rs.Files, videoURL)
	}
	return rs, nil
}

// FetchVideo loads a video page on page and returns the first .mp4 media
// request made while the page sits under the video prefix. page is not
// closed.
func (c *Crawler) FetchVideo(ctx context.Context, page browser.Page, tvURL string) (string, error) {
	ctx, cancel := engine.WithOptionalTimeout(ctx, c.opts.VideoTimeout)
	defer cancel()

	var found string
	loop := &engine.Loop{
		Name:        "instagram-video",
		Page:        page,
		SaveCookies: c.saver(),
		Handlers: engine.Handlers{
			OnLoad: func(ctx context.Context, pageURL string, st *engine.PaginationState) engine.Step {
				if c.opts.Site.IsDefense(pageURL) {
					log.Warn().Str("url", pageURL).Msg("Defense page reached, waiting for the operator")
				}
				return engine.Wait()
			},
			OnRequest: func(ctx context.Context, req browser.Request, st *engine.PaginationState) engine.Step {
				pageURL, err := page.URL(ctx)
				if err != nil || !strings.HasPrefix(pageURL, c.opts.Site.TVPrefix) {
					return engine.Wait()
				}
				if !c.opts.Site.IsVideoAsset(req) {
					return engine.Wait()
				}
				found = req.URL
				return engine.Done()
			},
		},
	}

	if _, err := loop.Run(ctx, tvURL); err != nil {
		return "", err
	}
	return found, nil
}

// listingLoop builds the load-scroll-settle loop shared by both listings.
func (c *Crawler) listingLoop(name string, page browser.Page, prefix string) *engine.Loop {
	return &engine.Loop{
		Name:         name,
		Page:         page,
		SaveCookies:  c.saver(),
		ScrollScript: c.opts.ScrollScript,
		Quiescence:   c.opts.Quiescence,
		LoadTimeout:  c.opts.LoadTimeout,
		Handlers: engine.Handlers{
			OnLoad: func(ctx context.Context, pageURL string, st *engine.PaginationState) engine.Step {
				if c.opts.Site.IsDefense(pageURL) {
					log.Warn().Str("url", pageURL).Msg("Defense page reached, complete the check in the browser window")
					return engine.Wait()
				}
				if !strings.HasPrefix(pageURL, prefix) {
					log.Debug().Str("url", pageURL).Str("expected", prefix).Msg("Load outside target, waiting")
					return engine.Wait()
				}
				return engine.Scroll()
			},
		},
	}
}

func (c *Crawler) open(ctx context.Context) (browser.Session, browser.Page, error) {
	session, err := c.launcher.Launch(ctx, c.opts.Browser)
	if err != nil {
		return nil, nil, engine.NewEngineError(engine.ErrCodeBrowser, "failed to launch browser", err)
	}
	page, err := c.newPage(ctx, session)
	if err != nil {
		session.Close()
		return nil, nil, err
	}
	return session, page, nil
}

func (c *Crawler) newPage(ctx context.Context, session browser.Session) (browser.Page, error) {
	page, err := session.NewPage(ctx)
	if err != nil {
		return nil, engine.NewEngineError(engine.ErrCodeBrowser, "failed to open page", err)
	}
	if c.opts.Store == nil {
		return page, nil
	}
	n, err := cookies.Apply(ctx, c.opts.Store, page)
	if err != nil {
		log.Warn().Err(err).Msg("Continuing without saved cookies")
	} else {
		log.Debug().Int("count", n).Str("store", c.opts.Store.Location()).Msg("Cookies applied")
	}
	return page, nil
}

func (c *Crawler) saver() engine.CookieSaver {
	if c.opts.Store == nil {
		return nil
	}
	return cookies.Snapshot(c.opts.Store, cookies.SiteKey(c.opts.Site.Host))
}
