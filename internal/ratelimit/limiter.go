// internal/ratelimit/limiter.go
package ratelimit

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter throttles requests per host.
type RateLimiter interface {
	// Wait blocks until a request for the given URL can proceed.
	Wait(ctx context.Context, urlStr string) error
	// Allow reports whether a request for the given URL may proceed now.
	Allow(urlStr string) bool
}

// DomainLimiter keeps one token bucket per host so a burst of CDN downloads
// cannot get the client banned.
type DomainLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	perHost  rate.Limit // Requests per second per host
	burst    int        // Burst capacity
}

// NewDomainLimiter creates a new rate limiter with the specified per-host rate
func NewDomainLimiter(requestsPerSecond float64, burst int) *DomainLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 5.0
	}
	if burst <= 0 {
		burst = 10
	}

	return &DomainLimiter{
		limiters: make(map[string]*rate.Limiter),
		perHost:  rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

// Wait blocks until the request for the given URL can proceed according to rate limits
func (dl *DomainLimiter) Wait(ctx context.Context, urlStr string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	host := extractHost(urlStr)
	if host == "" {
		// Invalid URL, let it proceed (will fail elsewhere)
		return nil
	}
	return dl.getLimiter(host).Wait(ctx)
}

// Allow checks if a request can proceed immediately without blocking
func (dl *DomainLimiter) Allow(urlStr string) bool {
	host := extractHost(urlStr)
	if host == "" {
		return true
	}
	return dl.getLimiter(host).Allow()
}

// Hosts returns how many hosts have a bucket.
func (dl *DomainLimiter) Hosts() int {
	dl.mu.RLock()
	defer dl.mu.RUnlock()
	return len(dl.limiters)
}

// getLimiter returns or creates the limiter for host
func (dl *DomainLimiter) getLimiter(host string) *rate.Limiter {
	dl.mu.RLock()
	limiter, exists := dl.limiters[host]
	dl.mu.RUnlock()
	if exists {
		return limiter
	}

	dl.mu.Lock()
	defer dl.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := dl.limiters[host]; exists {
		return limiter
	}
	limiter = rate.NewLimiter(dl.perHost, dl.burst)
	dl.limiters[host] = limiter
	return limiter
}

// extractHost returns the lower-cased host name of a URL, port excluded
func extractHost(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
