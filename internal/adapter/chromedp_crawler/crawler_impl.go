package chromedp_crawler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/user/shouldipickitup/internal/repository"
	"github.com/user/shouldipickitup/pkg/logger"
)

// ChromedpFetcher renders pages in headless Chrome. It implements repository.Fetcher
// for sources that need JavaScript to produce their listing markup.
type ChromedpFetcher struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	timeout     time.Duration
	logger      *slog.Logger
}

// NewChromedpFetcher creates a browser allocator shared by all fetches.
func NewChromedpFetcher(pageLoadTimeout time.Duration, l *slog.Logger) *ChromedpFetcher {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(`Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36`),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &ChromedpFetcher{
		allocCtx:    allocCtx,
		allocCancel: cancel,
		timeout:     pageLoadTimeout,
		logger:      logger.OrDefault(l),
	}
}

// Get navigates to url in a fresh tab and returns the rendered HTML with the
// main document's HTTP status.
func (c *ChromedpFetcher) Get(ctx context.Context, url string) (*repository.Page, error) {
	taskCtx, cancel := chromedp.NewContext(c.allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		c.logger.Debug(fmt.Sprintf(format, args...))
	}))
	defer cancel()

	// The tab lives under the allocator, so tie it to the caller's context by hand.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if c.timeout > 0 {
		taskCtx, cancel = context.WithTimeout(taskCtx, c.timeout)
		defer cancel()
	}

	startTime := time.Now()
	resp, err := chromedp.RunResponse(taskCtx, chromedp.Navigate(url))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}

	var html string
	if err := chromedp.Run(taskCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("read html %s: %w", url, err)
	}

	status := 0
	if resp != nil {
		status = int(resp.Status)
	}
	c.logger.Debug("Rendered page", "url", url, "status", status, "response_time_ms", time.Since(startTime).Milliseconds())

	return &repository.Page{URL: url, StatusCode: status, Body: []byte(html)}, nil
}

// Close shuts down the browser.
func (c *ChromedpFetcher) Close() {
	c.allocCancel()
}
