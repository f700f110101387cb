package leaselock

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DBLocker binds a Client to fixed lease options so callers only supply
// a key. Used by the pipeline against the shared database.
type DBLocker struct {
	client *Client
	opts   Options
}

func NewDBLocker(pool *pgxpool.Pool, opts Options) *DBLocker {
	return &DBLocker{client: New(pool), opts: opts}
}

func (l *DBLocker) WithLease(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	return l.client.WithLease(ctx, key, l.opts, fn)
}

// LocalLocker serializes by key within a single process. It backs tests
// and single-process runs where the database lease would be overhead.
type LocalLocker struct {
	mu   sync.Mutex
	keys map[string]*sync.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{keys: make(map[string]*sync.Mutex)}
}

func (l *LocalLocker) WithLease(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	m, ok := l.keys[key]
	if !ok {
		m = &sync.Mutex{}
		l.keys[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}
