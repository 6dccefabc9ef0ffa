package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/law-makers/mediacrawl/internal/downloader"
	"github.com/law-makers/mediacrawl/internal/engine"
	"github.com/law-makers/mediacrawl/internal/instagram"
	"github.com/law-makers/mediacrawl/internal/rarbg"
	"github.com/law-makers/mediacrawl/internal/reqctx"
	"github.com/law-makers/mediacrawl/pkg/models"
)

// InstagramReport describes one profile crawl
type InstagramReport struct {
	TaskID  string
	Profile *instagram.Profile
	Paths   instagram.SavedPaths
	// Timeline and IGTV are empty when downloads are skipped.
	Timeline downloader.Summary
	IGTV     downloader.Summary
}

// RarbgReport describes one search crawl
type RarbgReport struct {
	TaskID string
	Result rarbg.SearchResult
	Paths  rarbg.SavedPaths
}

// Run dispatches rawURL to the matching crawler.
func (a *Application) Run(ctx context.Context, rawURL string) error {
	site, err := SiteFor(rawURL)
	if err != nil {
		return err
	}
	switch site {
	case models.SiteInstagram:
		_, err = a.RunInstagram(ctx, rawURL)
	case models.SiteRarbg:
		_, err = a.RunRarbg(ctx, rawURL)
	}
	return err
}

// RunInstagram crawls a profile, writes its data files and downloads its
// media. Whatever the crawl collected is written even when it ended early;
// the crawl error is returned alongside the report.
func (a *Application) RunInstagram(ctx context.Context, profileURL string) (*InstagramReport, error) {
	ctx = reqctx.WithTask(ctx)
	logger := zerolog.Ctx(ctx)

	target, err := instagram.NewTarget(profileURL)
	if err != nil {
		return nil, engine.NewEngineError(engine.ErrCodeUnsupported, "not supported: "+profileURL, err)
	}
	store, err := a.CookieStore(models.SiteInstagram)
	if err != nil {
		return nil, err
	}

	crawler := instagram.NewCrawler(a.Launcher, instagram.Options{
		Site:         instagram.DefaultSite,
		Browser:      a.BrowserOptions(),
		Store:        store,
		Clock:        a.Config.Clock,
		Quiescence:   a.Config.Quiescence,
		LoadTimeout:  a.Config.LoadTimeout,
		VideoTimeout: a.Config.VideoTimeout,
	})

	crawlCtx, cancel := a.crawlContext(ctx)
	profile, crawlErr := crawler.FetchProfile(crawlCtx, target)
	cancel()

	report := &InstagramReport{TaskID: reqctx.TaskID(ctx), Profile: profile}
	report.Paths, err = instagram.SaveProfile(a.Config.DataDir, report.TaskID, profile)
	if err != nil {
		return report, reqctx.NewRequestError(ctx, errors.Join(crawlErr, err))
	}
	logger.Info().Str("file", report.Paths.Data).Str("profile", target.ProfileName).Msg("Profile data saved")

	if !a.Config.SkipDownload && ctx.Err() == nil {
		report.Timeline = a.download(ctx, instagram.ProfileDir(a.Config.DataDir, target.ProfileName), profile.TimelineFiles)
		report.IGTV = a.download(ctx, instagram.IGTVDir(a.Config.DataDir, target.ProfileName), profile.IGTVFiles)
	}

	return report, reqctx.NewRequestError(ctx, crawlErr)
}

// RunRarbg crawls a search listing and merges its magnets into the search's
// magnet file.
func (a *Application) RunRarbg(ctx context.Context, searchURL string) (*RarbgReport, error) {
	ctx = reqctx.WithTask(ctx)
	logger := zerolog.Ctx(ctx)

	store, err := a.CookieStore(models.SiteRarbg)
	if err != nil {
		return nil, err
	}

	searcher := rarbg.NewSearcher(a.Launcher, rarbg.Options{
		Site:          rarbg.DefaultSite,
		Browser:       a.BrowserOptions(),
		Store:         store,
		Clock:         a.Config.Clock,
		AbortOnError:  a.Config.AbortOnError,
		MaxErrors:     a.Config.MaxErrors,
		DetailTimeout: a.Config.DetailTimeout,
		LoadTimeout:   a.Config.LoadTimeout,
		ReusePage:     a.Config.ReusePage,
	})

	crawlCtx, cancel := a.crawlContext(ctx)
	torrents, crawlErr := searcher.Search(crawlCtx, searchURL)
	cancel()

	report := &RarbgReport{
		TaskID: reqctx.TaskID(ctx),
		Result: rarbg.SearchResult{URL: searchURL, Torrents: torrents},
	}
	report.Paths, err = rarbg.SaveResults(a.Config.DataDir, report.TaskID, report.Result)
	if err != nil {
		return report, reqctx.NewRequestError(ctx, errors.Join(crawlErr, err))
	}

	logger.Info().
		Int("count", len(torrents)).
		Int("magnets", report.Paths.Count).
		Str("file", report.Paths.Magnets).
		Msg("Search results saved")
	return report, reqctx.NewRequestError(ctx, crawlErr)
}

func (a *Application) download(ctx context.Context, dir string, files []string) downloader.Summary {
	tasks := instagram.DownloadTasks(files)
	summary := a.Downloader.DownloadAll(ctx, dir, a.Config.Proxy, tasks)
	zerolog.Ctx(ctx).Info().
		Str("dir", dir).
		Int("count", summary.Total).
		Int("succeeded", summary.Succeeded).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("Downloads finished")
	return summary
}
