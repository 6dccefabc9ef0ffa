// Package proxy rotates download traffic across a set of proxies.
package proxy

import (
	"strings"
	"sync"
	"time"
)

// DefaultCooldown is how long a failed proxy is skipped
const DefaultCooldown = 5 * time.Minute

// ProxyPool hands out proxies round-robin, skipping recently failed ones
type ProxyPool struct {
	proxies  []string
	index    int
	mu       sync.Mutex
	failed   map[string]time.Time
	cooldown time.Duration
	now      func() time.Time
}

// NewProxyPool creates a pool. Blank and duplicate entries are dropped.
func NewProxyPool(proxies []string) *ProxyPool {
	seen := make(map[string]bool)
	var list []string
	for _, p := range proxies {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		list = append(list, p)
	}
	return &ProxyPool{
		proxies:  list,
		failed:   make(map[string]time.Time),
		cooldown: DefaultCooldown,
		now:      time.Now,
	}
}

// SetCooldown changes how long a failed proxy is skipped.
func (p *ProxyPool) SetCooldown(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cooldown = d
}

// Len returns the number of proxies in the pool.
func (p *ProxyPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.proxies)
}

// GetNext returns the next healthy proxy. When every proxy is cooling down
// the rotation continues regardless.
func (p *ProxyPool) GetNext() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.proxies) == 0 {
		return ""
	}

	start := p.index
	for {
		proxy := p.proxies[p.index]
		p.index = (p.index + 1) % len(p.proxies)

		if failTime, ok := p.failed[proxy]; ok {
			if p.now().Sub(failTime) < p.cooldown {
				if p.index == start {
					return proxy
				}
				continue
			}
			delete(p.failed, proxy)
		}

		return proxy
	}
}

// MarkFailed marks a proxy as failed so it will be skipped for a while
func (p *ProxyPool) MarkFailed(proxy string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed[proxy] = p.now()
}

// MarkHealthy clears the failure status of a proxy
func (p *ProxyPool) MarkHealthy(proxy string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.failed, proxy)
}
