package dbx

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebindQuery(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"SELECT 1", "SELECT 1"},
		{"SELECT * FROM votes WHERE election_id = $1 AND voter_fingerprint = $2", "SELECT * FROM votes WHERE election_id = ?1 AND voter_fingerprint = ?2"},
		{"VALUES ($1, $2, $10, $1)", "VALUES (?1, ?2, ?10, ?1)"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, RebindQuery(tc.in))
	}
}

func TestDialectForDriver(t *testing.T) {
	d, err := DialectForDriver("pgx")
	require.NoError(t, err)
	assert.Equal(t, DialectPostgres, d)

	d, err = DialectForDriver("sqlite")
	require.NoError(t, err)
	assert.Equal(t, DialectSQLite, d)

	_, err = DialectForDriver("mysql")
	require.Error(t, err)
}

func TestRebind_PostgresPassThrough(t *testing.T) {
	var db *sql.DB
	assert.Equal(t, DBTX(db), Rebind(DialectPostgres, db))
}

func TestRebind_NoDoubleWrap(t *testing.T) {
	var db *sql.DB
	once := Rebind(DialectSQLite, db)
	assert.Equal(t, once, Rebind(DialectSQLite, once))
}

func TestIsUniqueViolation_SQLite(t *testing.T) {
	db := setupDB(t)
	_, err := db.Exec(`CREATE TABLE u (k TEXT PRIMARY KEY, b TEXT UNIQUE)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO u(k, b) VALUES ('a', 'x')`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO u(k, b) VALUES ('b', 'x')`)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	_, err = db.Exec(`INSERT INTO u(k, b) VALUES ('a', 'y')`)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	_, err = db.Exec(`INSERT INTO missing(k) VALUES ('a')`)
	require.Error(t, err)
	assert.False(t, IsUniqueViolation(err))
}

func TestIsUniqueViolation_Postgres(t *testing.T) {
	err := &pgconn.PgError{Code: "23505", ConstraintName: "votes_ballot_key_key"}
	assert.True(t, IsUniqueViolation(err))
	assert.True(t, IsUniqueViolation(errors.Join(errors.New("insert vote"), err)))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(nil))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsTransient(sql.ErrConnDone))
	assert.True(t, IsTransient(&pgconn.PgError{Code: "08006"}))
	assert.True(t, IsTransient(&pgconn.PgError{Code: "40001"}))
	assert.False(t, IsTransient(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsTransient(errors.New("syntax error")))
	assert.False(t, IsTransient(nil))
}
