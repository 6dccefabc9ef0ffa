// internal/downloader/downloader.go
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/mediacrawl/internal/proxy"
	"github.com/law-makers/mediacrawl/internal/ratelimit"
	"github.com/law-makers/mediacrawl/internal/retry"
	"github.com/law-makers/mediacrawl/pkg/models"
)

// Task is a single file to download
type Task = models.DownloadTask

// DownloadResult represents the result of a download operation
type DownloadResult struct {
	URL       string
	FilePath  string
	Size      int64
	Success   bool
	Skipped   bool
	Proxy     string
	Error     error
	StartTime time.Time
	Duration  time.Duration
}

// Options configures the download behavior
type Options struct {
	Concurrency int
	// Timeout bounds a single HTTP request.
	Timeout   time.Duration
	UserAgent string
	Retry     retry.Config
	// RatePerHost and Burst feed the per-host token bucket.
	RatePerHost float64
	Burst       int
	// Overwrite re-downloads files that already exist.
	Overwrite bool
	// Progress draws a bar on stderr when it is a terminal.
	Progress bool
	Headers  map[string]string
}

// DefaultOptions returns the options used by DownloadAll.
func DefaultOptions() Options {
	return Options{
		Concurrency: 5,
		Timeout:     2 * time.Minute,
		UserAgent:   "mediacrawl/1.0 (https://github.com/law-makers/mediacrawl)",
		Retry:       retry.DefaultConfig(),
		RatePerHost: 5,
		Burst:       10,
		Progress:    true,
	}
}

// Downloader fetches files over HTTP, optionally through rotating proxies
type Downloader struct {
	opts    Options
	limiter ratelimit.RateLimiter

	mu      sync.Mutex
	clients map[string]*http.Client
}

// NewDownloader creates a new Downloader instance
func NewDownloader(opts Options) *Downloader {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultOptions().UserAgent
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = retry.DefaultConfig()
	}
	return &Downloader{
		opts:    opts,
		limiter: ratelimit.NewDomainLimiter(opts.RatePerHost, opts.Burst),
		clients: make(map[string]*http.Client),
	}
}

// client returns the HTTP client for proxyURL, creating it on first use.
func (d *Downloader) client(proxyURL string) (*http.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if c, ok := d.clients[proxyURL]; ok {
		return c, nil
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	if proxyURL != "" {
		u, err := url.Parse(normalizeProxy(proxyURL))
		if err != nil {
			return nil, fmt.Errorf("invalid proxy %q: %w", proxyURL, err)
		}
		transport.Proxy = http.ProxyURL(u)
	}

	c := &http.Client{Timeout: d.opts.Timeout, Transport: transport}
	d.clients[proxyURL] = c
	return c, nil
}

// normalizeProxy accepts bare host:port proxies.
func normalizeProxy(p string) string {
	if strings.Contains(p, "://") {
		return p
	}
	return "http://" + p
}

// Download fetches one task into outputDir. Transient failures are retried
// with backoff; the proxy pool, when set, rotates on every attempt.
func (d *Downloader) Download(ctx context.Context, task Task, outputDir string, proxies *proxy.ProxyPool) *DownloadResult {
	result := &DownloadResult{
		URL:       task.URL,
		StartTime: time.Now(),
	}
	defer func() { result.Duration = time.Since(result.StartTime) }()

	if _, err := url.Parse(task.URL); err != nil {
		result.Error = fmt.Errorf("invalid URL: %w", err)
		return result
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		result.Error = fmt.Errorf("failed to create output directory: %w", err)
		return result
	}

	filename := task.Filename
	if filename == "" {
		filename = task.URL
	}
	result.FilePath = filepath.Join(outputDir, sanitizeFilename(filename))

	if !d.opts.Overwrite {
		if info, err := os.Stat(result.FilePath); err == nil && info.Size() > 0 {
			result.Success = true
			result.Skipped = true
			result.Size = info.Size()
			return result
		}
	}

	err := retry.WithRetry(ctx, d.opts.Retry, func() error {
		p := ""
		if proxies != nil {
			p = proxies.GetNext()
		}
		result.Proxy = p

		n, err := d.fetch(ctx, task.URL, result.FilePath, p)
		if err != nil {
			var httpErr retry.HTTPError
			if p != "" && !errors.As(err, &httpErr) {
				proxies.MarkFailed(p)
			}
			return err
		}
		if p != "" {
			proxies.MarkHealthy(p)
		}
		result.Size = n
		return nil
	})
	if err != nil {
		result.Error = err
		return result
	}

	result.Success = true
	log.Debug().
		Str("url", task.URL).
		Str("file", result.FilePath).
		Int64("bytes", result.Size).
		Dur("duration", time.Since(result.StartTime)).
		Msg("Download completed")
	return result
}

// fetch streams fileURL into a temporary sibling of filePath and renames it
// into place once complete.
func (d *Downloader) fetch(ctx context.Context, fileURL, filePath, proxyURL string) (int64, error) {
	if err := d.limiter.Wait(ctx, fileURL); err != nil {
		return 0, err
	}

	client, err := d.client(proxyURL)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", d.opts.UserAgent)
	for key, value := range d.opts.Headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, retry.NewHTTPError(resp.StatusCode, http.StatusText(resp.StatusCode), fileURL)
	}

	partPath := filePath + ".part"
	outFile, err := os.Create(partPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}

	n, err := io.Copy(outFile, resp.Body)
	if cerr := outFile.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(partPath)
		return 0, fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(partPath, filePath); err != nil {
		os.Remove(partPath)
		return 0, fmt.Errorf("failed to move file into place: %w", err)
	}
	return n, nil
}

// sanitizeFilename prevents path traversal attacks
func sanitizeFilename(input string) string {
	// Extract filename from URL
	var queryHash string
	if u, err := url.Parse(input); err == nil && u.Host != "" {
		parts := strings.Split(u.Path, "/")
		if len(parts) > 0 {
			input = parts[len(parts)-1]
		}
		if u.RawQuery != "" {
			queryHash = "_" + hashString(u.RawQuery)
		}
	}

	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", "..", "_", ":", "_", "*", "_",
		"?", "_", "\"", "_", "<", "_", ">", "_", "|", "_",
	)
	input = replacer.Replace(input)
	input = strings.TrimSpace(input)
	input = strings.Trim(input, ".")

	// CDN urls share a path and differ only in their signature query
	ext := filepath.Ext(input)
	stem := strings.TrimSuffix(input, ext)
	if queryHash != "" {
		input = stem + queryHash + ext
	}

	if input == "" {
		input = fmt.Sprintf("download_%d", time.Now().UnixNano())
	}
	if len(input) > 200 {
		input = input[:200]
	}

	return input
}

// hashString shortens a query string to a stable filename suffix
func hashString(s string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(s))[:8]
}
