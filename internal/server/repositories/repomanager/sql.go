// Package repomanager provides the SQL RepositoryManager used by the ballot
// server, wiring repository constructors, connection setup and goose
// migrations for PostgreSQL and SQLite.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/dbx"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/migrations"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/repositories/audit"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/repositories/elections"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/repositories/sessions"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/repositories/voters"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/repositories/votes"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
	_ "modernc.org/sqlite"
)

// SQLRepositoryManager vends SQL repositories for one dialect. Handles passed
// in must already rebind placeholders (see dbx.DB).
type SQLRepositoryManager struct {
	dialect dbx.Dialect
}

func NewSQLRepositoryManager(d dbx.Dialect) *SQLRepositoryManager {
	return &SQLRepositoryManager{dialect: d}
}

func (m *SQLRepositoryManager) Elections(db dbx.DBTX) elections.Repository {
	return elections.NewSQLRepository(dbx.Rebind(m.dialect, db))
}

func (m *SQLRepositoryManager) Voters(db dbx.DBTX) voters.Repository {
	return voters.NewSQLRepository(dbx.Rebind(m.dialect, db))
}

func (m *SQLRepositoryManager) Votes(db dbx.DBTX) votes.Repository {
	return votes.NewSQLRepository(dbx.Rebind(m.dialect, db))
}

func (m *SQLRepositoryManager) Sessions(db dbx.DBTX) sessions.Repository {
	return sessions.NewSQLRepository(dbx.Rebind(m.dialect, db))
}

func (m *SQLRepositoryManager) Audit(db dbx.DBTX) audit.Repository {
	return audit.NewSQLRepository(dbx.Rebind(m.dialect, db))
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded migrations for the manager's dialect.
func (m *SQLRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(string(m.dialect)); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, migrations.Dir(m.dialect)); err != nil {
		return err
	}
	return nil
}

// Open opens a pool for driver ("pgx" or "sqlite") and dsn.
func Open(driver, dsn string) (*dbx.DB, error) {
	dialect, err := dbx.DialectForDriver(driver)
	if err != nil {
		return nil, err
	}

	sqlDriver := "pgx"
	if dialect == dbx.DialectSQLite {
		sqlDriver = "sqlite"
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	if dialect == dbx.DialectSQLite {
		// a single writer; concurrent connections on a shared cache fail with SQLITE_LOCKED
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}

	return dbx.NewDB(db, dialect), nil
}

// WaitReady pings db with exponential backoff until it answers, a
// non-transient error occurs, or maxWait elapses.
func WaitReady(ctx context.Context, db *sql.DB, maxWait time.Duration) error {
	b := retry.NewExponential(100 * time.Millisecond)
	b = retry.WithCappedDuration(2*time.Second, b)
	b = retry.WithMaxDuration(maxWait, b)

	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := db.PingContext(ctx)
		if err != nil && dbx.IsTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
