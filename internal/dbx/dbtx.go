// Package dbx holds the storage glue shared by repositories: the DBTX
// interface satisfied by *sql.DB and *sql.Tx, transactional helpers, and the
// dialect layer that runs one set of Postgres-style queries on SQLite.
package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DBTX is the subset of database/sql used by repositories.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxFunc is the unit of work run inside a transaction.
type TxFunc func(ctx context.Context, tx DBTX) error

// WithTx runs fn in a transaction on db. The transaction commits when fn
// returns nil and rolls back otherwise; a panic in fn rolls back and is
// re-raised.
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn TxFunc) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		rbErr := tx.Rollback()
		if p := recover(); p != nil {
			panic(p)
		}
		if rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// DB couples a connection pool with the SQL dialect it speaks.
type DB struct {
	*sql.DB
	Dialect Dialect
}

func NewDB(db *sql.DB, d Dialect) *DB {
	return &DB{DB: db, Dialect: d}
}

// Handle returns a non-transactional DBTX speaking the pool's dialect.
func (d *DB) Handle() DBTX {
	return Rebind(d.Dialect, d.DB)
}

// WithTx is the package-level WithTx with dialect-aware placeholders.
func (d *DB) WithTx(ctx context.Context, fn TxFunc) error {
	return WithTx(ctx, d.DB, nil, func(ctx context.Context, tx DBTX) error {
		return fn(ctx, Rebind(d.Dialect, tx))
	})
}
