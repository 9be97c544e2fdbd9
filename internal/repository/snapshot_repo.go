package repository

import (
	"context"

	"github.com/user/shouldipickitup/internal/entity"
)

// SnapshotRepository is local durable storage used when the primary store is
// unreachable or when snapshot output is requested.
type SnapshotRepository interface {
	SourceRecordReader
	Save(ctx context.Context, rec *entity.SourceRecord) error
	Close() error
}
