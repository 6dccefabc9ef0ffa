// Package browsertest provides a scripted in-memory browser for testing crawl
// controllers without a real Chrome.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/law-makers/mediacrawl/internal/browser"
	"github.com/law-makers/mediacrawl/pkg/models"
)

// Route scripts what happens when a page navigates to a URL
type Route struct {
	// FinalURL is the URL reported after loading. Defaults to the requested URL.
	FinalURL string
	// HTML backs QueryAll and HTML.
	HTML string
	// OnNavigate events are delivered before the load event.
	OnNavigate []browser.Event
	// OnScroll events are delivered the first time Evaluate runs on this route.
	OnScroll []browser.Event
	// NoLoad suppresses the load event.
	NoLoad bool
	// NavigateErr is reported as EventNavigationFailed.
	NavigateErr error
	// SetCookies is merged into the page jar on load.
	SetCookies []models.Cookie
	// CommitDelay keeps the previous document in place for this long after
	// Navigate, the way a real navigation waits for the server.
	CommitDelay time.Duration
	// LateLoad delivers the load event this long after commit, after the
	// caller may have given up on it.
	LateLoad time.Duration
}

// Browser is a fake Launcher and Session sharing one route table
type Browser struct {
	mu       sync.Mutex
	routes   map[string]*Route
	pages    []*Page
	launches int
	closed   bool
	jar      []models.Cookie
}

// New returns a browser serving the given routes.
func New(routes map[string]*Route) *Browser {
	if routes == nil {
		routes = make(map[string]*Route)
	}
	return &Browser{routes: routes}
}

// Handle registers or replaces a route.
func (b *Browser) Handle(url string, r *Route) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[url] = r
}

func (b *Browser) Launch(ctx context.Context, opts browser.Options) (browser.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.launches++
	b.closed = false
	return b, nil
}

func (b *Browser) NewPage(ctx context.Context) (browser.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("session closed")
	}
	p := &Page{browser: b, queue: browser.NewEventQueue()}
	b.pages = append(b.pages, p)
	return p, nil
}

func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Closed reports whether Close was called since the last Launch.
func (b *Browser) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Launches returns how many sessions were launched.
func (b *Browser) Launches() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.launches
}

// Pages returns every page opened so far.
func (b *Browser) Pages() []*Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Page(nil), b.pages...)
}

// OpenPages counts pages not yet closed.
func (b *Browser) OpenPages() int {
	n := 0
	for _, p := range b.Pages() {
		if !p.Closed() {
			n++
		}
	}
	return n
}

func (b *Browser) route(url string) *Route {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r, ok := b.routes[url]; ok {
		return r
	}
	return &Route{}
}

// Page is a fake tab
type Page struct {
	browser *Browser
	queue   *browser.EventQueue

	mu        sync.Mutex
	current   string
	route     *Route
	scrolled  map[*Route]bool
	navs      int
	navigated []string
	evaluated []string
	closed    bool
}

// Navigated returns every URL passed to Navigate, in order.
func (p *Page) Navigated() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navigated...)
}

// Evaluated returns every script passed to Evaluate.
func (p *Page) Evaluated() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.evaluated...)
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Emit pushes an arbitrary event.
func (p *Page) Emit(ev browser.Event) {
	p.queue.Push(ev)
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	r := p.browser.route(url)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("page closed")
	}
	p.navigated = append(p.navigated, url)
	p.navs++
	nav := p.navs
	p.mu.Unlock()
	p.queue.Reset()

	if r.NavigateErr != nil {
		p.queue.Push(browser.Event{Type: browser.EventNavigationFailed, URL: url, Err: r.NavigateErr})
		return nil
	}
	if r.CommitDelay > 0 {
		p.after(r.CommitDelay, nav, func() { p.commit(url, r, nav) })
		return nil
	}
	p.commit(url, r, nav)
	return nil
}

func (p *Page) commit(url string, r *Route, nav int) {
	p.mu.Lock()
	p.route = r
	p.current = url
	if r.FinalURL != "" {
		p.current = r.FinalURL
	}
	p.mu.Unlock()

	for _, ev := range r.OnNavigate {
		p.queue.Push(ev)
	}
	if r.LateLoad > 0 {
		p.after(r.LateLoad, nav, p.load(r))
		return
	}
	if !r.NoLoad {
		p.load(r)()
	}
}

func (p *Page) load(r *Route) func() {
	return func() {
		if len(r.SetCookies) > 0 {
			p.browser.mu.Lock()
			p.browser.jar = mergeCookies(p.browser.jar, r.SetCookies)
			p.browser.mu.Unlock()
		}
		p.queue.Push(browser.Event{Type: browser.EventLoad})
	}
}

// after runs fn once d has passed unless the page navigated again or closed.
func (p *Page) after(d time.Duration, nav int, fn func()) {
	time.AfterFunc(d, func() {
		p.mu.Lock()
		live := !p.closed && p.navs == nav
		p.mu.Unlock()
		if live {
			fn()
		}
	})
}

func (p *Page) Events() <-chan browser.Event {
	return p.queue.C()
}

func (p *Page) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, nil
}

func (p *Page) Cookies(ctx context.Context) ([]models.Cookie, error) {
	p.browser.mu.Lock()
	defer p.browser.mu.Unlock()
	return append([]models.Cookie(nil), p.browser.jar...), nil
}

func (p *Page) SetCookies(ctx context.Context, cookies []models.Cookie) error {
	p.browser.mu.Lock()
	defer p.browser.mu.Unlock()
	p.browser.jar = mergeCookies(p.browser.jar, cookies)
	return nil
}

func (p *Page) QueryAll(ctx context.Context, selector string) ([]browser.Element, error) {
	doc, err := p.document()
	if err != nil {
		return nil, err
	}
	var out []browser.Element
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		el := browser.Element{Attrs: map[string]string{}, Text: s.Text()}
		for _, a := range s.Nodes[0].Attr {
			el.Attrs[a.Key] = a.Val
		}
		out = append(out, el)
	})
	return out, nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.route == nil {
		return "<html><head></head><body></body></html>", nil
	}
	return p.route.HTML, nil
}

// Evaluate records the script and releases the route's scroll events once.
func (p *Page) Evaluate(ctx context.Context, script string, out interface{}) error {
	p.mu.Lock()
	p.evaluated = append(p.evaluated, script)
	r := p.route
	fire := r != nil && !p.scrolled[r]
	if fire {
		if p.scrolled == nil {
			p.scrolled = make(map[*Route]bool)
		}
		p.scrolled[r] = true
	}
	p.mu.Unlock()

	if fire {
		for _, ev := range r.OnScroll {
			p.queue.Push(ev)
		}
	}
	return ctx.Err()
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		p.queue.Close()
	}
	return nil
}

func (p *Page) document() (*goquery.Document, error) {
	html, _ := p.HTML(context.Background())
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

func mergeCookies(jar, add []models.Cookie) []models.Cookie {
	out := append([]models.Cookie(nil), jar...)
	for _, c := range add {
		replaced := false
		for i := range out {
			if out[i].Name == c.Name && out[i].Domain == c.Domain && out[i].Path == c.Path {
				out[i] = c
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, c)
		}
	}
	return out
}

// Response is a canned network response
type Response struct {
	RawURL  string
	Type    string
	Payload []byte
	Err     error
}

func (r *Response) URL() string          { return r.RawURL }
func (r *Response) ResourceType() string { return r.Type }

func (r *Response) Body(ctx context.Context) ([]byte, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	return r.Payload, nil
}

// ResponseEvent wraps a canned response in an event.
func ResponseEvent(url string, body string) browser.Event {
	return browser.Event{Type: browser.EventResponse, Response: &Response{RawURL: url, Type: "XHR", Payload: []byte(body)}}
}

// RequestEvent builds a request event.
func RequestEvent(url, resourceType string) browser.Event {
	return browser.Event{Type: browser.EventRequest, Request: browser.Request{URL: url, ResourceType: resourceType}}
}

var (
	_ browser.Launcher = (*Browser)(nil)
	_ browser.Session  = (*Browser)(nil)
	_ browser.Page     = (*Page)(nil)
	_ browser.Response = (*Response)(nil)
)
