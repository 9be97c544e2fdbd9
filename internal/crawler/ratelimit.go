package crawler

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/user/shouldipickitup/pkg/utils"
)

// HostLimiter allows at most one in-flight request per host and enforces a
// random delay in [minDelay, maxDelay] between consecutive requests to it.
// The delay is measured from the moment the previous request released the host.
type HostLimiter struct {
	mu       sync.Mutex
	hosts    map[string]*hostSlot
	minDelay time.Duration
	maxDelay time.Duration

	// randomDelay picks the gap before the next request; replaced in tests.
	randomDelay func(min, max time.Duration) time.Duration
}

// hostSlot fields other than sem are only touched while sem is held.
type hostSlot struct {
	sem         chan struct{}
	lastRelease time.Time
	gap         time.Duration
}

// NewHostLimiter creates a limiter. A maxDelay below minDelay is raised to minDelay.
func NewHostLimiter(minDelay, maxDelay time.Duration) *HostLimiter {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &HostLimiter{
		hosts:       make(map[string]*hostSlot),
		minDelay:    minDelay,
		maxDelay:    maxDelay,
		randomDelay: RandomDelay,
	}
}

// RandomDelay returns a uniformly random duration in [min, max].
func RandomDelay(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + rand.N(max-min+1)
}

// Acquire blocks until rawURL's host is free and its inter-request delay has
// elapsed. The returned release func must be called once the request is done;
// calling it more than once is harmless. URLs without a host are not limited.
func (l *HostLimiter) Acquire(ctx context.Context, rawURL string) (func(), error) {
	host := utils.Host(rawURL)
	if l == nil || host == "" {
		return func() {}, nil
	}
	slot := l.slot(host)

	select {
	case slot.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if !slot.lastRelease.IsZero() {
		if wait := time.Until(slot.lastRelease.Add(slot.gap)); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				<-slot.sem
				return nil, ctx.Err()
			}
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			slot.lastRelease = time.Now()
			slot.gap = l.randomDelay(l.minDelay, l.maxDelay)
			<-slot.sem
		})
	}, nil
}

func (l *HostLimiter) slot(host string) *hostSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.hosts[host]
	if !ok {
		s = &hostSlot{sem: make(chan struct{}, 1)}
		l.hosts[host] = s
	}
	return s
}
