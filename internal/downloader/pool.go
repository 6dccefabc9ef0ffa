// internal/downloader/pool.go
package downloader

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/law-makers/mediacrawl/internal/proxy"
)

// Summary reports a batch of downloads
type Summary struct {
	Total     int
	Succeeded int
	Skipped   int
	Failed    int
	Bytes     int64
	Duration  time.Duration
	// Results are in task order.
	Results []*DownloadResult
}

// Errors returns the failed results.
func (s Summary) Errors() []*DownloadResult {
	var failed []*DownloadResult
	for _, r := range s.Results {
		if !r.Success {
			failed = append(failed, r)
		}
	}
	return failed
}

// DownloadAll fetches tasks into outputDir with the default options.
func DownloadAll(ctx context.Context, outputDir, proxyList string, tasks []Task) Summary {
	return NewDownloader(DefaultOptions()).DownloadAll(ctx, outputDir, proxyList, tasks)
}

// ParseProxies splits a comma separated proxy setting.
func ParseProxies(proxyList string) []string {
	var out []string
	for _, p := range strings.Split(proxyList, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// DownloadAll fetches every task with bounded concurrency. A failed task never
// stops the others; failures are counted in the summary.
func (d *Downloader) DownloadAll(ctx context.Context, outputDir, proxyList string, tasks []Task) Summary {
	start := time.Now()
	summary := Summary{Total: len(tasks), Results: make([]*DownloadResult, len(tasks))}
	if len(tasks) == 0 {
		return summary
	}

	var proxies *proxy.ProxyPool
	if list := ParseProxies(proxyList); len(list) > 0 {
		proxies = proxy.NewProxyPool(list)
	}

	concurrency := d.opts.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	if concurrency > 50 {
		concurrency = 50
	}

	bar := newProgress(d.opts.Progress, len(tasks), outputDir)
	defer bar.finish()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			result := d.Download(gctx, task, outputDir, proxies)
			summary.Results[i] = result
			if result.Error != nil {
				log.Warn().Err(result.Error).Str("url", task.URL).Msg("Download failed")
			}
			bar.add()
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range summary.Results {
		switch {
		case r.Skipped:
			summary.Skipped++
		case r.Success:
			summary.Succeeded++
			summary.Bytes += r.Size
		default:
			summary.Failed++
		}
	}
	summary.Duration = time.Since(start)

	log.Info().
		Str("dir", outputDir).
		Int("total", summary.Total).
		Int("succeeded", summary.Succeeded).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Int64("bytes", summary.Bytes).
		Dur("duration", summary.Duration).
		Msg("Downloads finished")
	return summary
}
