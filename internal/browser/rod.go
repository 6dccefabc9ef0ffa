package browser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/mediacrawl/pkg/models"
)

// RodLauncher launches Chrome through go-rod
type RodLauncher struct {
	Executables ExecutableTable
}

// Launch starts a browser process and connects to it.
func (l *RodLauncher) Launch(ctx context.Context, opts Options) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	execPath := opts.ExecPath
	if execPath == "" && l.Executables != nil {
		execPath = l.Executables.FindCurrent()
	}

	ln := launcher.New().Headless(opts.Headless).NoSandbox(true)
	if execPath != "" {
		ln = ln.Bin(execPath)
	}
	if opts.Proxy != "" {
		ln = ln.Proxy(opts.Proxy)
	}
	for name, value := range opts.Flags {
		switch v := value.(type) {
		case bool:
			if v {
				ln = ln.Set(flags.Flag(name))
			} else {
				ln = ln.Delete(flags.Flag(name))
			}
		default:
			ln = ln.Set(flags.Flag(name), fmt.Sprint(v))
		}
	}

	controlURL, err := ln.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		ln.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	log.Debug().
		Str("exec_path", execPath).
		Bool("headless", opts.Headless).
		Msg("Rod session started")

	return &rodSession{browser: b, launcher: ln, userAgent: opts.UserAgent}, nil
}

type rodSession struct {
	browser   *rod.Browser
	launcher  *launcher.Launcher
	userAgent string

	mu     sync.Mutex
	closed bool
}

func (s *rodSession) NewPage(ctx context.Context) (Page, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("browser session is closed")
	}

	pg, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	if err := (proto.NetworkEnable{}).Call(pg); err != nil {
		_ = pg.Close()
		return nil, fmt.Errorf("failed to enable network domain: %w", err)
	}
	if s.userAgent != "" {
		if err := pg.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: s.userAgent}); err != nil {
			log.Warn().Err(err).Msg("Failed to override user agent")
		}
	}

	pageCtx, cancel := context.WithCancel(context.Background())
	p := &rodPage{
		page:   pg.Context(pageCtx),
		cancel: cancel,
		queue:  NewEventQueue(),
		guard:  newNavGuard(),
	}
	go p.listen()
	return p, nil
}

func (s *rodSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.browser.Close()
	s.launcher.Kill()
	log.Debug().Msg("Rod session closed")
	return err
}

type rodPage struct {
	page   *rod.Page
	cancel context.CancelFunc
	queue  *EventQueue
	guard  *navGuard
	once   sync.Once
}

func (p *rodPage) listen() {
	types := make(map[proto.NetworkRequestID]*proto.NetworkResponseReceived)

	wait := p.page.EachEvent(
		func(e *proto.PageFrameNavigated) {
			if e.Frame != nil {
				p.guard.commit(string(e.Frame.LoaderID), e.Frame.ParentID == "")
			}
		},
		func(e *proto.PageLoadEventFired) {
			if p.guard.allowLoad() {
				p.queue.Push(Event{Type: EventLoad})
			}
		},
		func(e *proto.NetworkRequestWillBeSent) {
			if e.Request == nil || !p.guard.allow(string(e.LoaderID)) {
				return
			}
			p.queue.Push(Event{Type: EventRequest, Request: Request{
				URL:          e.Request.URL,
				ResourceType: string(e.Type),
			}})
		},
		func(e *proto.NetworkResponseReceived) {
			types[e.RequestID] = e
		},
		func(e *proto.NetworkLoadingFinished) {
			resp, ok := types[e.RequestID]
			delete(types, e.RequestID)
			if !ok || resp.Response == nil || !p.guard.allow(string(resp.LoaderID)) {
				return
			}
			p.queue.Push(Event{Type: EventResponse, Response: &rodResponse{
				page:         p,
				id:           e.RequestID,
				url:          resp.Response.URL,
				resourceType: string(resp.Type),
			}})
		},
		func(e *proto.NetworkLoadingFailed) {
			delete(types, e.RequestID)
		},
	)
	wait()
}

// Navigate returns once the server has answered; load completion arrives as
// an event. Events of the previous document are discarded.
func (p *rodPage) Navigate(ctx context.Context, url string) error {
	p.guard.navigate()
	p.queue.Reset()
	if err := p.page.Navigate(url); err != nil {
		p.queue.Push(Event{Type: EventNavigationFailed, URL: url, Err: err})
	}
	return nil
}

func (p *rodPage) Events() <-chan Event {
	return p.queue.C()
}

func (p *rodPage) URL(ctx context.Context) (string, error) {
	info, err := p.page.Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (p *rodPage) Cookies(ctx context.Context) ([]models.Cookie, error) {
	cookies, err := p.page.Cookies(nil)
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
			Expires:  float64(c.Expires),
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		})
	}
	return out, nil
}

func (p *rodPage) SetCookies(ctx context.Context, cookies []models.Cookie) error {
	if len(cookies) == 0 {
		return nil
	}
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: proto.NetworkCookieSameSite(c.SameSite),
			Expires:  proto.TimeSinceEpoch(c.Expires),
		})
	}
	return p.page.SetCookies(params)
}

func (p *rodPage) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	var elements []Element
	if err := p.Evaluate(ctx, QueryAllScript(selector), &elements); err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	return elements, nil
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	return p.page.HTML()
}

func (p *rodPage) Evaluate(ctx context.Context, script string, out interface{}) error {
	obj, err := p.page.Context(ctx).Eval(asFunction(script))
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	raw, err := json.Marshal(&obj.Value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (p *rodPage) Close() error {
	var err error
	p.once.Do(func() {
		p.queue.Close()
		err = p.page.Close()
		p.cancel()
	})
	return err
}

type rodResponse struct {
	page         *rodPage
	id           proto.NetworkRequestID
	url          string
	resourceType string
}

func (r *rodResponse) URL() string          { return r.url }
func (r *rodResponse) ResourceType() string { return r.resourceType }

func (r *rodResponse) Body(ctx context.Context) ([]byte, error) {
	res, err := proto.NetworkGetResponseBody{RequestID: r.id}.Call(r.page.page.Context(ctx))
	if err != nil {
		return nil, err
	}
	if res.Base64Encoded {
		return base64.StdEncoding.DecodeString(res.Body)
	}
	return []byte(res.Body), nil
}
