package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// Postgres SQLSTATE codes the storage layer reacts to.
const (
	sqlStateInvalidText          = "22P02"
	sqlStateUniqueViolation      = "23505"
	sqlStateForeignKeyViolation  = "23503"
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// DBTX is the query surface shared by pools and transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxBeginner starts pgx transactions. *pgxpool.Pool satisfies it.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// TxOptions selects the isolation a unit of work runs under.
type TxOptions struct {
	Serializable bool
}

// Serializable is shorthand for the strongest isolation level.
var Serializable = TxOptions{Serializable: true}

// Transactor runs fn as one atomic unit. Repositories called with the ctx
// passed to fn take part in the same transaction.
type Transactor interface {
	WithinTx(ctx context.Context, opts TxOptions, fn func(ctx context.Context) error) error
}

type txKey struct{}

// Conn returns the transaction bound to ctx, or fallback when there is none.
func Conn(ctx context.Context, fallback DBTX) DBTX {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return fallback
}

// PgTransactor implements Transactor over a pgx pool. Serializable units
// that fail with a serialization error are retried up to MaxRetries times.
type PgTransactor struct {
	db         TxBeginner
	maxRetries int
	logger     *zap.Logger
}

// NewPgTransactor wires a transactor over db.
func NewPgTransactor(db TxBeginner, maxRetries int, logger *zap.Logger) *PgTransactor {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &PgTransactor{db: db, maxRetries: maxRetries, logger: logger}
}

func (t *PgTransactor) WithinTx(ctx context.Context, opts TxOptions, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	attempts := 1
	if opts.Serializable {
		attempts += t.maxRetries
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = t.run(ctx, opts, fn)
		if err == nil || !IsRetryable(err) || ctx.Err() != nil {
			return err
		}
		t.logger.Warn("retrying transaction after serialization failure",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return err
}

func (t *PgTransactor) run(ctx context.Context, opts TxOptions, fn func(ctx context.Context) error) (err error) {
	txOpts := pgx.TxOptions{IsoLevel: pgx.ReadCommitted}
	if opts.Serializable {
		txOpts.IsoLevel = pgx.Serializable
	}

	tx, err := t.db.BeginTx(ctx, txOpts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				t.logger.Error("rollback failed", zap.Error(rbErr))
			}
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsUniqueViolation reports a unique constraint failure.
func IsUniqueViolation(err error) bool {
	return sqlState(err) == sqlStateUniqueViolation
}

// IsForeignKeyViolation reports a foreign key constraint failure.
func IsForeignKeyViolation(err error) bool {
	return sqlState(err) == sqlStateForeignKeyViolation
}

// IsInvalidText reports a malformed literal, such as a bad uuid.
func IsInvalidText(err error) bool {
	return sqlState(err) == sqlStateInvalidText
}

// IsRetryable reports errors a serializable unit may be re-run after.
func IsRetryable(err error) bool {
	switch sqlState(err) {
	case sqlStateSerializationFailure, sqlStateDeadlockDetected:
		return true
	}
	return false
}
