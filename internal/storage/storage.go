package storage

import (
	"context"

	"pairEngine/internal/model"
)

// Storage defines a sink for log records.
type Storage interface {
	PutLogBatch(ctx context.Context, logs []model.LogRecord) error
}

// MetricsSink receives closed aggregation windows.
type MetricsSink interface {
	UpsertWindowMetrics(ctx context.Context, metrics []model.PairWindowMetrics) error
}

// SnapshotSink receives pair state snapshots.
type SnapshotSink interface {
	UpsertPairSnapshots(ctx context.Context, snapshots []model.PairSnapshot) error
}
