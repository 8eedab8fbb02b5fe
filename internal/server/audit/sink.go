// Package audit delivers audit entries to their destinations: the
// relational audit table and, optionally, an object-storage archive.
package audit

import (
	"context"
	"errors"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/models"
	auditrepo "github.com/ezforhamza/awaz-e-talba-sub000/internal/server/repositories/audit"
)

// Sink accepts audit entries. Implementations never modify an entry.
type Sink interface {
	Write(ctx context.Context, e *models.AuditEntry) error
}

// SQLSink appends to the audit table through a repository, which may be
// bound to a transaction.
type SQLSink struct {
	repo auditrepo.Repository
}

func NewSQLSink(repo auditrepo.Repository) *SQLSink {
	return &SQLSink{repo: repo}
}

func (s *SQLSink) Write(ctx context.Context, e *models.AuditEntry) error {
	return s.repo.Append(ctx, e)
}

// FanOut writes to every sink and joins their errors. Nil sinks are skipped.
type FanOut []Sink

func (f FanOut) Write(ctx context.Context, e *models.AuditEntry) error {
	var errs []error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Write(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops entries.
type Discard struct{}

func (Discard) Write(context.Context, *models.AuditEntry) error { return nil }
