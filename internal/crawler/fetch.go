package crawler

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/user/shouldipickitup/internal/repository"
)

// throttledGet fetches rawURL while holding its host slot, bounded by timeout.
func throttledGet(ctx context.Context, limiter *HostLimiter, fetcher repository.Fetcher, rawURL string, timeout time.Duration) (*repository.Page, error) {
	release, err := limiter.Acquire(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer release()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return fetcher.Get(ctx, rawURL)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func parseDocument(page *repository.Page) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", page.URL, err)
	}
	return doc, nil
}
