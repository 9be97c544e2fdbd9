package repository

import (
	"context"
	"time"
)

// LeaseRepository claims sources so that two batch processes never crawl the same one at once.
type LeaseRepository interface {
	// Acquire claims a source for ttl. It returns false if another holder has it.
	Acquire(ctx context.Context, sourceURL, holder string, ttl time.Duration) (bool, error)
	// Release drops the claim if it is still held by holder.
	Release(ctx context.Context, sourceURL, holder string) error
}
