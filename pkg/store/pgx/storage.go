// Package pgx implements the GraphStorage interface on PostgreSQL with
// hand-written SQL. Every merge batch runs in a single transaction;
// failures are classified into transient and permanent so the pipeline
// can decide between retry and surfacing.
package pgx

import (
	"context"
	"errors"
	"io"
	"net"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clearbridge/oppgraph/pkg/store"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// GraphDBStorage implements store.GraphStorage on PostgreSQL.
type GraphDBStorage struct {
	conn pgxIConn
}

// NewGraphDBStorage creates a GraphDBStorage using an existing database
// connection or pool.
func NewGraphDBStorage(conn pgxIConn) *GraphDBStorage {
	return &GraphDBStorage{conn: conn}
}

// classify wraps a database error as transient or permanent.
//
// SQLSTATE classes: 08 (connection), 40 (serialization/deadlock), 53
// (resources) and 57 (operator intervention) are retryable; 22 (data),
// 23 (integrity) and 42 (schema) will fail the same way on every retry.
// Plain network errors with no SQLSTATE are treated as transient.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code[:2] {
		case "08", "40", "53", "57":
			return &store.TransientError{Err: err}
		case "22", "23", "42":
			return &store.PermanentError{Err: err}
		default:
			return &store.PermanentError{Err: err}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &store.TransientError{Err: err}
	}
	return &store.TransientError{Err: err}
}
