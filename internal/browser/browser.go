// Package browser abstracts the browser-automation engine behind a small
// session/page API. Crawl controllers only ever see these interfaces, so two
// engines (chromedp and rod) can back them and tests can swap in a fake.
package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/law-makers/mediacrawl/pkg/models"
)

// EventType identifies what a page Event carries
type EventType int

const (
	// EventLoad fires when the page's load event is dispatched.
	EventLoad EventType = iota + 1
	// EventResponse fires once a network response has been fully received.
	EventResponse
	// EventRequest fires when the page issues a network request.
	EventRequest
	// EventNavigationFailed fires when a navigation could not complete.
	EventNavigationFailed
)

func (t EventType) String() string {
	switch t {
	case EventLoad:
		return "load"
	case EventResponse:
		return "response"
	case EventRequest:
		return "request"
	case EventNavigationFailed:
		return "navigation-failed"
	default:
		return fmt.Sprintf("event(%d)", int(t))
	}
}

// Event is a single notification delivered by Page.Events
type Event struct {
	Type     EventType
	Response Response
	Request  Request
	URL      string
	Err      error
}

// Response is a completed network response. The body is read lazily.
type Response interface {
	URL() string
	ResourceType() string
	Body(ctx context.Context) ([]byte, error)
}

// Request is an outgoing network request observed on a page
type Request struct {
	URL          string
	ResourceType string
}

// IsMedia reports whether the request was issued for a media resource.
func (r Request) IsMedia() bool {
	return strings.EqualFold(r.ResourceType, "media")
}

// Element is a snapshot of a DOM element returned by QueryAll
type Element struct {
	Attrs map[string]string `json:"attrs"`
	Text  string            `json:"text"`
}

// Attr returns the attribute value and whether it was present.
func (e Element) Attr(name string) (string, bool) {
	v, ok := e.Attrs[name]
	return v, ok
}

// Options configures a browser launch
type Options struct {
	Headless  bool
	ExecPath  string
	UserAgent string
	Proxy     string
	// Flags are extra command-line switches passed to the browser process.
	Flags map[string]interface{}
}

// Launcher starts browser sessions
type Launcher interface {
	Launch(ctx context.Context, opts Options) (Session, error)
}

// Session is a running browser instance
type Session interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single browser tab.
//
// Navigate only issues the navigation; completion is reported through
// Events as EventLoad or EventNavigationFailed. Events of the document being
// replaced that were not yet received are dropped, so everything read after
// Navigate belongs to the new navigation. The Events channel is closed when
// the page is closed.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Events() <-chan Event
	URL(ctx context.Context) (string, error)
	Cookies(ctx context.Context) ([]models.Cookie, error)
	SetCookies(ctx context.Context, cookies []models.Cookie) error
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	HTML(ctx context.Context) (string, error)
	Evaluate(ctx context.Context, script string, out interface{}) error
	Close() error
}

// Engine names accepted by NewLauncher
const (
	EngineChromedp = "chromedp"
	EngineRod      = "rod"
)

// NewLauncher returns the launcher for the named engine.
func NewLauncher(engine string, table ExecutableTable) (Launcher, error) {
	switch strings.ToLower(engine) {
	case "", EngineChromedp:
		return &ChromedpLauncher{Executables: table}, nil
	case EngineRod:
		return &RodLauncher{Executables: table}, nil
	default:
		return nil, fmt.Errorf("unknown browser engine %q", engine)
	}
}
