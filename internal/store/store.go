// Package store implements the label store: the durable relational
// backbone of per-flow labels, per-(ip, time-window) labels, counters
// and per-tool confusion matrices, plus the write policies
// (monotonic-malicious, discard-on-missing-ground-truth,
// discard-on-unregistered-window) that make the rest of the system
// produce correct numbers.
//
// A pgxpool.Pool, a schema loaded once at startup, and every mutating
// operation wrapped in its own BEGIN/COMMIT transaction. Writes
// additionally funnel through a single mutex and retry with a bounded
// backoff on serialization failures.
package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/idps-compare/internal/errs"
	"github.com/rawblock/idps-compare/internal/logging"
)

//go:embed schema.sql
var schemaFS embed.FS

const (
	maxRetries    = 5
	retryInterval = 20 * time.Millisecond
)

// LabelStore holds one comparison run's labels, counters and matrices.
type LabelStore struct {
	pool *pgxpool.Pool
	log  logging.Sink

	mu sync.Mutex
}

// Connect opens the connection pool and pings it.
func Connect(ctx context.Context, dsn string, log logging.Sink) (*LabelStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: unable to connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("store: ping failed: %w", err)
	}
	return &LabelStore{pool: pool, log: log}, nil
}

// Close releases the connection pool.
func (s *LabelStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema creates every table in schema.sql if it does not already
// exist.
func (s *LabelStore) InitSchema(ctx context.Context) error {
	b, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("store: reading embedded schema: %w", err)
	}
	if _, err := s.pool.Exec(ctx, string(b)); err != nil {
		return errs.New(errs.StoreFatal, "init schema", err)
	}
	return nil
}

// withTx serializes one write through the store's mutex, wraps it in a
// transaction, and retries on transient "busy" conditions (serialization
// failures, deadlocks) with a short backoff.
func (s *LabelStore) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := s.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isBusy(err) {
			return errs.New(errs.StoreFatal, "transaction", err)
		}
		if s.log != nil {
			s.log.Emit(logging.Record{
				Component: "LabelStore",
				PlainText: fmt.Sprintf("store busy, retrying (attempt %d/%d)", attempt+1, maxRetries),
				Severity:  logging.Warn,
			})
		}
		lastErr = err
		time.Sleep(retryInterval)
	}
	return errs.New(errs.StoreFatal, "transaction", fmt.Errorf("exhausted retries: %w", lastErr))
}

func (s *LabelStore) runOnce(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func isBusy(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return true
		}
	}
	return false
}
