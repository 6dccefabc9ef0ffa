package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/mediacrawl/internal/cookies"
	"github.com/law-makers/mediacrawl/internal/engine"
	"github.com/law-makers/mediacrawl/pkg/models"
)

// Login opens a visible browser on the site's home page and waits for
// confirm to return, normally after the operator pressed Enter. The page's
// cookies for the site then replace the stored jar. It returns how many
// cookies were saved.
func (a *Application) Login(ctx context.Context, site models.Site, confirm func(ctx context.Context) error) (int, error) {
	home, err := HomeURL(site)
	if err != nil {
		return 0, err
	}
	store, err := a.CookieStore(site)
	if err != nil {
		return 0, err
	}

	opts := a.BrowserOptions()
	opts.Headless = false

	session, err := a.Launcher.Launch(ctx, opts)
	if err != nil {
		return 0, engine.NewEngineError(engine.ErrCodeBrowser, "failed to launch browser", err)
	}
	defer session.Close()

	page, err := session.NewPage(ctx)
	if err != nil {
		return 0, engine.NewEngineError(engine.ErrCodeBrowser, "failed to open page", err)
	}
	defer page.Close()

	if n, err := cookies.Apply(ctx, store, page); err != nil {
		log.Warn().Err(err).Msg("Starting login without saved cookies")
	} else if n > 0 {
		log.Debug().Int("count", n).Msg("Existing cookies applied")
	}

	log.Info().Str("site", string(site)).Str("url", home).Msg("Starting interactive login")
	if err := page.Navigate(ctx, home); err != nil {
		return 0, engine.NewEngineError(engine.ErrCodeNavigation, "failed to open "+home, err)
	}

	if err := confirm(ctx); err != nil {
		return 0, fmt.Errorf("login cancelled: %w", err)
	}

	current, err := page.Cookies(ctx)
	if err != nil {
		return 0, engine.NewEngineError(engine.ErrCodeCookie, "failed to read page cookies", err)
	}
	jar := cookies.ForSite(current, cookies.SiteKey(home))
	if err := store.Save(ctx, jar); err != nil {
		return 0, engine.NewEngineError(engine.ErrCodeCookie, "failed to save cookies", err)
	}

	log.Info().Int("count", len(jar)).Str("store", store.Location()).Msg("Session saved")
	return len(jar), nil
}
