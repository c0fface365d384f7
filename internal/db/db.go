package db

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"
	"time"

	"ledger/internal/apperr"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type TxRunner interface {
	WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error
	WithReadTx(ctx context.Context, fn func(*sqlx.Tx) error) error
}

type SQLXTxRunner struct {
	db       *sqlx.DB
	attempts int
}

func NewTxRunner(db *sqlx.DB, attempts int) SQLXTxRunner {
	if attempts < 1 {
		attempts = 1
	}
	return SQLXTxRunner{db: db, attempts: attempts}
}

func (r SQLXTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	return WithTx(ctx, r.db, TxOptions{Attempts: r.attempts}, fn)
}

func (r SQLXTxRunner) WithReadTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	return WithTx(ctx, r.db, TxOptions{
		Attempts:  r.attempts,
		Isolation: sql.LevelRepeatableRead,
		ReadOnly:  true,
	}, fn)
}

func Connect(databaseURL string, maxOpenConns int) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	if maxOpenConns <= 0 {
		maxOpenConns = 25
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetMaxIdleConns(5)
	db.SetMaxOpenConns(maxOpenConns)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// TxOptions controls a transaction. Writers run at READ COMMITTED and rely on
// explicit row locks; Attempts > 1 re-runs fn on serialization failures.
type TxOptions struct {
	Attempts  int
	Isolation sql.IsolationLevel
	ReadOnly  bool
}

func WithTx(ctx context.Context, db *sqlx.DB, opts TxOptions, fn func(*sqlx.Tx) error) error {
	attempts := opts.Attempts
	if attempts < 1 {
		attempts = 1
	}
	isolation := opts.Isolation
	if isolation == sql.LevelDefault {
		isolation = sql.LevelReadCommitted
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: isolation, ReadOnly: opts.ReadOnly})
		if err != nil {
			return apperr.Unavailable(err, "begin transaction")
		}
		err = fn(tx)
		if err != nil {
			_ = tx.Rollback()
		} else if err = tx.Commit(); err == nil {
			return nil
		} else {
			err = apperr.Unavailable(err, "commit transaction")
		}
		if !isRetryablePGError(err) {
			return err
		}
		lastErr = err
		if attempt < attempts {
			sleepWithBackoff(attempt)
		}
	}
	if attempts == 1 {
		return apperr.Unavailable(lastErr, "transaction conflict")
	}
	return apperr.Wrap(apperr.StoreUnavailable, lastErr, "transaction retry limit exceeded")
}

func isRetryablePGError(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}

func sleepWithBackoff(attempt int) {
	base := 20 * time.Millisecond
	backoff := time.Duration(attempt*attempt) * base
	jitter := time.Duration(rand.Int63n(int64(10 * time.Millisecond)))
	time.Sleep(backoff + jitter)
}
