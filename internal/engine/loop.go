package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/mediacrawl/internal/browser"
)

// DefaultQuiescence is the settle wait after scrolling stops
const DefaultQuiescence = time.Second

type stepKind int

const (
	stepWait stepKind = iota
	stepScroll
	stepNavigate
	stepDone
	stepAbort
)

// Step is what a handler asks the loop to do next
type Step struct {
	kind stepKind
	url  string
	err  error
}

// Wait keeps the loop suspended on the next event.
func Wait() Step { return Step{kind: stepWait} }

// Scroll starts the auto-scroll script and settles when it resolves.
func Scroll() Step { return Step{kind: stepScroll} }

// Navigate follows url and goes back to awaiting a load.
func Navigate(url string) Step { return Step{kind: stepNavigate, url: url} }

// Done terminates the loop successfully.
func Done() Step { return Step{kind: stepDone} }

// Abort terminates the loop with err.
func Abort(err error) Step { return Step{kind: stepAbort, err: err} }

// Handlers are the per-page callbacks of a Loop. Nil handlers default to Wait,
// except OnSettled (Done) and OnNavigationFailed (Abort).
type Handlers struct {
	OnLoad             func(ctx context.Context, pageURL string, st *PaginationState) Step
	OnResponse         func(ctx context.Context, resp browser.Response, st *PaginationState) Step
	OnRequest          func(ctx context.Context, req browser.Request, st *PaginationState) Step
	OnNavigationFailed func(ctx context.Context, url string, err error, st *PaginationState) Step
	OnSettled          func(ctx context.Context, st *PaginationState) Step
}

// CookieSaver snapshots the page's cookies to persistent storage
type CookieSaver func(ctx context.Context, page browser.Page) error

// Loop is the event dispatch loop of a single page. All handlers run on the
// goroutine that called Run.
type Loop struct {
	Name     string
	Page     browser.Page
	Handlers Handlers

	// SaveCookies runs after every load event, before OnLoad.
	SaveCookies CookieSaver
	// ScrollScript defaults to AutoScrollScript.
	ScrollScript string
	// Quiescence defaults to DefaultQuiescence.
	Quiescence time.Duration
	// LoadTimeout bounds the wait for the first load event. Zero disables it.
	LoadTimeout time.Duration

	state          State
	outcome        Outcome
	cookieFailures int
	// navURL is the URL of the navigation the loop last issued.
	navURL string
}

// State returns the current controller state.
func (l *Loop) State() State { return l.state }

// Outcome returns how the loop terminated.
func (l *Loop) Outcome() Outcome { return l.outcome }

// CookieFailures counts failed cookie snapshots.
func (l *Loop) CookieFailures() int { return l.cookieFailures }

func (l *Loop) setState(s State) {
	if l.state == s {
		return
	}
	log.Debug().Str("loop", l.Name).Str("from", l.state.String()).Str("to", s.String()).Msg("State transition")
	l.state = s
}

// Run navigates to startURL (when non-empty) and dispatches page events until
// a handler terminates the loop, the load deadline passes or ctx ends.
func (l *Loop) Run(ctx context.Context, startURL string) (*PaginationState, error) {
	st := &PaginationState{Cursor: startURL}
	l.state = StateInit
	l.outcome = OutcomeNone
	l.navURL = ""

	script := l.ScrollScript
	if script == "" {
		script = AutoScrollScript
	}
	quiescence := l.Quiescence
	if quiescence <= 0 {
		quiescence = DefaultQuiescence
	}

	var loadTimer <-chan time.Time
	if l.LoadTimeout > 0 {
		t := time.NewTimer(l.LoadTimeout)
		defer t.Stop()
		loadTimer = t.C
	}

	var (
		scrollDone chan error
		quiet      <-chan time.Time
		step       Step
	)

	if startURL != "" {
		l.setState(StateAwaitingLoad)
		step = l.navigate(ctx, startURL, st)
	} else {
		l.setState(StateAwaitingLoad)
		step = Wait()
	}

	events := l.Page.Events()
	for {
		switch step.kind {
		case stepDone:
			l.terminate(OutcomeSuccess)
			return st, nil
		case stepAbort:
			l.terminate(OutcomeAborted)
			return st, step.err
		case stepNavigate:
			l.setState(StateFollowingNextPage)
			step = l.navigate(ctx, step.url, st)
			continue
		case stepScroll:
			if scrollDone == nil && quiet == nil {
				l.setState(StateScrapingVisible)
				ch := make(chan error, 1)
				scrollDone = ch
				go func() { ch <- l.Page.Evaluate(ctx, script, nil) }()
				l.setState(StateScrollingForMore)
			}
		}
		step = Wait()

		select {
		case <-ctx.Done():
			err := ctx.Err()
			if errors.Is(err, context.DeadlineExceeded) {
				err = Timeout(st.Cursor, err)
			}
			step = Abort(err)

		case <-loadTimer:
			step = Abort(Timeout(st.Cursor, nil).WithDetail("waiting_for", "load"))

		case ev, ok := <-events:
			if !ok {
				step = Abort(NewEngineError(ErrCodeBrowser, "page closed", nil))
				events = nil
				break
			}
			if ev.Type == browser.EventLoad {
				loadTimer = nil
			}
			step = l.dispatch(ctx, ev, st)

		case err := <-scrollDone:
			scrollDone = nil
			if err != nil {
				log.Warn().Err(err).Str("loop", l.Name).Str("url", st.Cursor).Msg("Auto-scroll ended with error")
			}
			l.setState(StateSettling)
			st.Deadline = time.Now().Add(quiescence)
			quiet = time.After(quiescence)

		case <-quiet:
			quiet = nil
			if step = l.drain(ctx, events, st); step.kind != stepWait {
				break
			}
			if l.Handlers.OnSettled != nil {
				step = l.Handlers.OnSettled(ctx, st)
			} else {
				step = Done()
			}
			if step.kind == stepWait {
				l.setState(StateAwaitingLoad)
			}
		}
	}
}

func (l *Loop) terminate(o Outcome) {
	l.outcome = o
	l.setState(StateTerminated)
	log.Debug().Str("loop", l.Name).Str("outcome", o.String()).Msg("Loop terminated")
}

func (l *Loop) navigate(ctx context.Context, url string, st *PaginationState) Step {
	st.Cursor = url
	l.navURL = url
	if err := l.Page.Navigate(ctx, url); err != nil {
		return l.navigationFailed(ctx, url, err, st)
	}
	l.setState(StateAwaitingLoad)
	return Wait()
}

func (l *Loop) navigationFailed(ctx context.Context, url string, err error, st *PaginationState) Step {
	log.Warn().Err(err).Str("loop", l.Name).Str("url", url).Msg("Navigation failed")
	if l.Handlers.OnNavigationFailed != nil {
		return l.Handlers.OnNavigationFailed(ctx, url, err, st)
	}
	return Abort(NewEngineError(ErrCodeNavigation, "navigation to "+url+" failed", err))
}

func (l *Loop) dispatch(ctx context.Context, ev browser.Event, st *PaginationState) Step {
	switch ev.Type {
	case browser.EventLoad:
		return l.handleLoad(ctx, st)
	case browser.EventResponse:
		if l.Handlers.OnResponse != nil && ev.Response != nil {
			return l.Handlers.OnResponse(ctx, ev.Response, st)
		}
	case browser.EventRequest:
		if l.Handlers.OnRequest != nil {
			return l.Handlers.OnRequest(ctx, ev.Request, st)
		}
	case browser.EventNavigationFailed:
		// A navigation superseded by ours reports its own abort late.
		if ev.URL != "" && ev.URL != l.navURL {
			log.Debug().Err(ev.Err).Str("loop", l.Name).Str("url", ev.URL).Str("current", l.navURL).Msg("Ignoring failure of a replaced navigation")
			return Wait()
		}
		return l.navigationFailed(ctx, ev.URL, ev.Err, st)
	}
	return Wait()
}

func (l *Loop) handleLoad(ctx context.Context, st *PaginationState) Step {
	pageURL, err := l.Page.URL(ctx)
	if err != nil {
		log.Warn().Err(err).Str("loop", l.Name).Msg("Failed to read page URL")
	}

	// The snapshot runs on every load whatever state the crawl is in.
	if l.SaveCookies != nil {
		if err := l.SaveCookies(ctx, l.Page); err != nil {
			l.cookieFailures++
			log.Error().Err(err).Str("loop", l.Name).Str("url", pageURL).Msg("Failed to save cookies")
		}
	}

	log.Debug().Str("loop", l.Name).Str("url", pageURL).Str("state", l.state.String()).Msg("Page loaded")

	if l.state != StateAwaitingLoad {
		return Wait()
	}
	st.Page++
	st.Cursor = pageURL
	if l.Handlers.OnLoad == nil {
		return Wait()
	}
	return l.Handlers.OnLoad(ctx, pageURL, st)
}

// drain dispatches whatever is already queued without waiting.
func (l *Loop) drain(ctx context.Context, events <-chan browser.Event, st *PaginationState) Step {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return Wait()
			}
			if step := l.dispatch(ctx, ev, st); step.kind != stepWait {
				return step
			}
		default:
			return Wait()
		}
	}
}
