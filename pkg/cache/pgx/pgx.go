// Package pgx implements the processed-notice cache on the
// processed_notices table, sharing the graph's database so the cache
// mark and the merge commit live in the same failure domain.
package pgx

import (
	"context"
	"errors"
	"time"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clearbridge/oppgraph/pkg/cache"
	"github.com/clearbridge/oppgraph/pkg/common"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
}

// DBStore implements cache.Store on PostgreSQL.
type DBStore struct {
	conn pgxIConn
}

// NewDBStore creates a DBStore using an existing connection or pool.
func NewDBStore(conn pgxIConn) *DBStore {
	return &DBStore{conn: conn}
}

func (s *DBStore) HasProcessed(ctx context.Context, noticeID string) (bool, error) {
	var exists bool
	err := s.conn.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM processed_notices WHERE notice_id = $1 AND status = $2)
`, noticeID, common.OutcomeProcessed).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (s *DBStore) MarkProcessed(ctx context.Context, noticeID string, outcome common.Outcome) error {
	_, err := s.conn.Exec(ctx, `
INSERT INTO processed_notices (notice_id, status, marked_at)
VALUES ($1, $2, $3)
ON CONFLICT (notice_id) DO UPDATE SET
    status = EXCLUDED.status,
    marked_at = EXCLUDED.marked_at
`, noticeID, outcome, time.Now().UTC())
	return err
}

func (s *DBStore) Get(ctx context.Context, noticeID string) (cache.Entry, bool, error) {
	var entry cache.Entry
	err := s.conn.QueryRow(ctx, `
SELECT notice_id, status, marked_at FROM processed_notices WHERE notice_id = $1
`, noticeID).Scan(&entry.NoticeID, &entry.Outcome, &entry.MarkedAt)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return cache.Entry{}, false, nil
	}
	if err != nil {
		return cache.Entry{}, false, err
	}
	return entry, true, nil
}

func (s *DBStore) Clear(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `DELETE FROM processed_notices`)
	return err
}

func (s *DBStore) Len(ctx context.Context) (int, error) {
	var n int
	err := s.conn.QueryRow(ctx, `SELECT COUNT(*) FROM processed_notices`).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}
