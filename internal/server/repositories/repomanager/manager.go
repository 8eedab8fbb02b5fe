package repomanager

import (
	"context"
	"database/sql"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/dbx"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/repositories/audit"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/repositories/elections"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/repositories/sessions"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/repositories/voters"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/repositories/votes"
)

// RepositoryManager vends repositories bound to a DBTX, so the same code
// path serves both pooled and transactional access.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Elections(db dbx.DBTX) elections.Repository
	Voters(db dbx.DBTX) voters.Repository
	Votes(db dbx.DBTX) votes.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	Audit(db dbx.DBTX) audit.Repository
}
