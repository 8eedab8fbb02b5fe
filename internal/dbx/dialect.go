package dbx

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
)

// Dialect names follow goose's dialect identifiers.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

// DialectForDriver maps a database/sql driver name to its dialect.
func DialectForDriver(driver string) (Dialect, error) {
	switch driver {
	case "pgx", "postgres":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

var placeholder = regexp.MustCompile(`\$(\d+)`)

// RebindQuery turns Postgres $N placeholders into SQLite's numbered ?N form.
// Numbered parameters keep their index, so a query may reuse $1.
func RebindQuery(query string) string {
	return placeholder.ReplaceAllString(query, "?$1")
}

// Rebind returns db unchanged for Postgres and a placeholder-rewriting
// wrapper for SQLite.
func Rebind(d Dialect, db DBTX) DBTX {
	if d != DialectSQLite {
		return db
	}
	if _, ok := db.(sqliteDBTX); ok {
		return db
	}
	return sqliteDBTX{db: db}
}

type sqliteDBTX struct {
	db DBTX
}

func (s sqliteDBTX) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, RebindQuery(query), args...)
}

func (s sqliteDBTX) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, RebindQuery(query), args...)
}

func (s sqliteDBTX) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, RebindQuery(query), args...)
}
