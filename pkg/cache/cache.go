// Package cache tracks which opportunity notices have already been run
// through the pipeline, so restarts skip completed work instead of
// re-invoking extraction. The cache is an optimization layer over the
// graph: the graph's opportunity set is the source of truth, and a miss
// here is always cross-checked against it.
package cache

import (
	"context"
	"time"

	"github.com/clearbridge/oppgraph/pkg/common"
)

// Entry is one processed-notice mark.
type Entry struct {
	NoticeID string         `json:"notice_id"`
	Outcome  common.Outcome `json:"status"`
	MarkedAt time.Time      `json:"timestamp"`
}

// Store persists processed-notice marks.
type Store interface {
	// HasProcessed reports whether a notice completed successfully.
	// Notices marked with an error outcome report false so a future run
	// retries them.
	HasProcessed(ctx context.Context, noticeID string) (bool, error)

	// MarkProcessed records the outcome of a run. Marking the same
	// notice with the same outcome again only refreshes the timestamp.
	MarkProcessed(ctx context.Context, noticeID string, outcome common.Outcome) error

	// Get returns the mark for a notice, if any.
	Get(ctx context.Context, noticeID string) (Entry, bool, error)

	// Clear drops every mark. It never touches the graph store.
	Clear(ctx context.Context) error

	// Len returns the number of marked notices.
	Len(ctx context.Context) (int, error)
}
