package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/user/shouldipickitup/internal/entity"
)

const batchHistoryKey = "crawler:batches"

// BatchHistoryRepoImpl keeps recent batch summaries in a capped Redis list,
// newest at the head.
type BatchHistoryRepoImpl struct {
	client *redis.Client
	keep   int64
}

// NewBatchHistoryRepo creates a new instance of BatchHistoryRepoImpl that keeps
// the last keep summaries.
func NewBatchHistoryRepo(client *redis.Client, keep int) *BatchHistoryRepoImpl {
	return &BatchHistoryRepoImpl{client: client, keep: int64(max(keep, 1))}
}

// Push adds a summary to the left side of the list and trims the tail.
func (r *BatchHistoryRepoImpl) Push(ctx context.Context, summary *entity.BatchSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal batch summary: %w", err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, batchHistoryKey, data)
		pipe.LTrim(ctx, batchHistoryKey, 0, r.keep-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("push batch summary: %w", err)
	}
	return nil
}

// Recent returns up to limit summaries, newest first.
func (r *BatchHistoryRepoImpl) Recent(ctx context.Context, limit int) ([]entity.BatchSummary, error) {
	if limit <= 0 {
		return nil, nil
	}
	raw, err := r.client.LRange(ctx, batchHistoryKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list batch summaries: %w", err)
	}
	out := make([]entity.BatchSummary, 0, len(raw))
	for _, item := range raw {
		var s entity.BatchSummary
		if err := json.Unmarshal([]byte(item), &s); err != nil {
			return nil, fmt.Errorf("failed to unmarshal batch summary: %w", err)
		}
		out = append(out, s)
	}
	return out, nil
}
