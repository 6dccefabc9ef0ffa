// internal/browser/chromedp.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/mediacrawl/pkg/models"
)

// ChromedpLauncher launches Chrome through chromedp
type ChromedpLauncher struct {
	Executables ExecutableTable
}

// Launch starts a browser process and returns a session bound to it.
func (l *ChromedpLauncher) Launch(ctx context.Context, opts Options) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	execPath := opts.ExecPath
	if execPath == "" && l.Executables != nil {
		execPath = l.Executables.FindCurrent()
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(opts, execPath)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// First Run starts the process and opens the initial tab
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	log.Debug().
		Str("exec_path", execPath).
		Bool("headless", opts.Headless).
		Msg("Chrome session started")

	return &chromeSession{
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
	}, nil
}

func allocatorOptions(opts Options, execPath string) []chromedp.ExecAllocatorOption {
	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-gpu", opts.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-breakpad", true),
		chromedp.Flag("disable-client-side-phishing-detection", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-prompt-on-repost", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("log-level", "3"),
		chromedp.Flag("metrics-recording-only", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("window-size", "1280,900"),
	}

	if execPath != "" {
		allocOpts = append([]chromedp.ExecAllocatorOption{chromedp.ExecPath(execPath)}, allocOpts...)
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	if opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
	} else {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}

	if opts.Proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.Proxy))
	}
	for name, value := range opts.Flags {
		allocOpts = append(allocOpts, chromedp.Flag(name, value))
	}

	return allocOpts
}

type chromeSession struct {
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc

	mu     sync.Mutex
	closed bool
}

func (s *chromeSession) NewPage(ctx context.Context) (Page, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("browser session is closed")
	}

	tabCtx, cancel := chromedp.NewContext(s.browserCtx)
	p := &chromePage{
		ctx:     tabCtx,
		cancel:  cancel,
		queue:   NewEventQueue(),
		guard:   newNavGuard(),
		pending: make(map[network.RequestID]*network.EventResponseReceived),
	}
	chromedp.ListenTarget(tabCtx, p.onEvent)

	if err := chromedp.Run(tabCtx, network.Enable()); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	return p, nil
}

func (s *chromeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.browserCancel()
	s.allocCancel()
	log.Debug().Msg("Chrome session closed")
	return nil
}

type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
	queue  *EventQueue
	guard  *navGuard
	// navSeq numbers navigations; only the latest may report a failure.
	navSeq atomic.Uint64

	mu      sync.Mutex
	pending map[network.RequestID]*network.EventResponseReceived
	once    sync.Once
}

// onEvent runs on chromedp's event goroutine and must not block.
func (p *chromePage) onEvent(ev interface{}) {
	switch ev := ev.(type) {
	case *page.EventFrameNavigated:
		if ev.Frame != nil {
			p.guard.commit(string(ev.Frame.LoaderID), ev.Frame.ParentID == "")
		}

	case *page.EventLoadEventFired:
		if p.guard.allowLoad() {
			p.queue.Push(Event{Type: EventLoad})
		}

	case *network.EventRequestWillBeSent:
		if ev.Request == nil || !p.guard.allow(string(ev.LoaderID)) {
			return
		}
		p.queue.Push(Event{Type: EventRequest, Request: Request{
			URL:          ev.Request.URL,
			ResourceType: string(ev.Type),
		}})

	case *network.EventResponseReceived:
		p.mu.Lock()
		p.pending[ev.RequestID] = ev
		p.mu.Unlock()

	case *network.EventLoadingFinished:
		p.mu.Lock()
		resp, ok := p.pending[ev.RequestID]
		delete(p.pending, ev.RequestID)
		p.mu.Unlock()
		if !ok || resp.Response == nil || !p.guard.allow(string(resp.LoaderID)) {
			return
		}
		p.queue.Push(Event{Type: EventResponse, Response: &chromeResponse{
			page:         p,
			id:           ev.RequestID,
			url:          resp.Response.URL,
			resourceType: string(resp.Type),
		}})

	case *network.EventLoadingFailed:
		p.mu.Lock()
		delete(p.pending, ev.RequestID)
		p.mu.Unlock()
	}
}

// Navigate runs the navigation in the background so load and response
// events keep flowing to the caller while the page loads. Events of the
// previous document are discarded, and so is the failure of a navigation
// replaced before it committed.
func (p *chromePage) Navigate(ctx context.Context, url string) error {
	if err := p.ctx.Err(); err != nil {
		return fmt.Errorf("page is closed: %w", err)
	}
	seq := p.navSeq.Add(1)
	p.guard.navigate()
	p.queue.Reset()
	go func() {
		err := chromedp.Run(p.ctx, chromedp.Navigate(url))
		if err == nil || p.ctx.Err() != nil {
			return
		}
		if p.navSeq.Load() != seq {
			log.Debug().Err(err).Str("url", url).Msg("Replaced navigation failed")
			return
		}
		p.queue.Push(Event{Type: EventNavigationFailed, URL: url, Err: err})
	}()
	return nil
}

func (p *chromePage) Events() <-chan Event {
	return p.queue.C()
}

func (p *chromePage) URL(ctx context.Context) (string, error) {
	var u string
	if err := chromedp.Run(p.ctx, chromedp.Location(&u)); err != nil {
		return "", err
	}
	return u, nil
}

func (p *chromePage) Cookies(ctx context.Context) ([]models.Cookie, error) {
	var cookies []*network.Cookie
	err := chromedp.Run(p.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}

	out := make([]models.Cookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, models.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		})
	}
	return out, nil
}

func (p *chromePage) SetCookies(ctx context.Context, cookies []models.Cookie) error {
	if len(cookies) == 0 {
		return nil
	}
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		cookie := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if c.Expires > 0 {
			expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			cookie.Expires = &expires
		}
		switch c.SameSite {
		case "Strict":
			cookie.SameSite = network.CookieSameSiteStrict
		case "Lax":
			cookie.SameSite = network.CookieSameSiteLax
		case "None":
			cookie.SameSite = network.CookieSameSiteNone
		}
		params = append(params, cookie)
	}
	return chromedp.Run(p.ctx, network.SetCookies(params))
}

func (p *chromePage) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	var elements []Element
	if err := p.Evaluate(ctx, QueryAllScript(selector), &elements); err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	return elements, nil
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := chromedp.Run(p.ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// Evaluate awaits promises, so self-terminating scripts block until they resolve.
func (p *chromePage) Evaluate(ctx context.Context, script string, out interface{}) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, chromedp.Evaluate(script, out, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}))
}

func (p *chromePage) Close() error {
	p.once.Do(func() {
		p.queue.Close()
		p.cancel()
	})
	return nil
}

type chromeResponse struct {
	page         *chromePage
	id           network.RequestID
	url          string
	resourceType string
}

func (r *chromeResponse) URL() string          { return r.url }
func (r *chromeResponse) ResourceType() string { return r.resourceType }

func (r *chromeResponse) Body(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var body []byte
	err := chromedp.Run(r.page.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		body, err = network.GetResponseBody(r.id).Do(ctx)
		return err
	}))
	return body, err
}
