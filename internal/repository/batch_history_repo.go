package repository

import (
	"context"

	"github.com/user/shouldipickitup/internal/entity"
)

// BatchHistoryRepository keeps the summaries of recent batch runs.
type BatchHistoryRepository interface {
	// Push records a finished batch. Only the most recent runs are kept.
	Push(ctx context.Context, summary *entity.BatchSummary) error
	// Recent returns up to limit summaries, newest first.
	Recent(ctx context.Context, limit int) ([]entity.BatchSummary, error)
}
