package crawler

import (
	"context"
	"errors"
	"sync"

	"github.com/user/shouldipickitup/internal/repository"
)

// stubFetcher serves canned pages by URL and records every request.
type stubFetcher struct {
	mu       sync.Mutex
	pages    map[string]*repository.Page
	err      error
	requests []string
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{pages: make(map[string]*repository.Page)}
}

func (s *stubFetcher) add(url string, status int, body string) {
	s.pages[url] = &repository.Page{URL: url, StatusCode: status, Body: []byte(body)}
}

func (s *stubFetcher) Get(ctx context.Context, url string) (*repository.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, url)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	if p, ok := s.pages[url]; ok {
		return p, nil
	}
	return &repository.Page{URL: url, StatusCode: 404}, nil
}

var errConnRefused = errors.New("connection refused")
