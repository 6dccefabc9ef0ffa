package browser

import "sync"

// navGuard filters CDP events of documents replaced by a newer navigation.
// Chrome keeps reporting requests and a late load for the old document for a
// while after Page.navigate; those carry the old document's loader id.
type navGuard struct {
	mu      sync.Mutex
	current map[string]bool
	stale   map[string]bool
	// pending is set from a navigation until the main frame commits.
	pending bool
}

func newNavGuard() *navGuard {
	return &navGuard{current: map[string]bool{}, stale: map[string]bool{}}
}

// navigate marks the loaders of the current document as stale. Loaders of
// older documents are forgotten; the queue reset already dropped their
// events. When the previous navigation never committed the stale set is kept.
func (g *navGuard) navigate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.current) > 0 {
		g.stale = g.current
	}
	g.current = map[string]bool{}
	g.pending = true
}

// commit records a frame that navigated to a new document.
func (g *navGuard) commit(loader string, mainFrame bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if loader == "" || g.stale[loader] {
		return
	}
	g.current[loader] = true
	if mainFrame {
		g.pending = false
	}
}

// allow reports whether a network event of loader belongs to the current
// document. Worker requests have no loader and always pass.
func (g *navGuard) allow(loader string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return loader == "" || !g.stale[loader]
}

// allowLoad reports whether a load event can belong to the current document.
func (g *navGuard) allowLoad() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.pending
}
