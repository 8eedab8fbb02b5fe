package services

import (
	"context"
	"errors"
	"time"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/common"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/dbx"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/event"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/audit"
	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/models"
)

// SessionManager owns the NoSession -> Active -> Completed lifecycle.
// At most one active session exists per tenant and voter fingerprint; the storage layer
// enforces it with a partial unique index, which also makes Start safe to
// retry.
type SessionManager struct {
	deps Deps
}

func NewSessionManager(d Deps) *SessionManager {
	return &SessionManager{deps: d.withDefaults()}
}

// Start opens a session for an eligible voter, or returns the voter's
// current active session. An expired active session is completed first.
func (m *SessionManager) Start(ctx context.Context, elig *models.Eligibility, client models.ClientMeta) (*models.VotingSession, error) {
	if elig == nil || !elig.Eligible {
		if elig != nil && elig.Reason != nil {
			return nil, elig.Reason
		}
		return nil, common.ErrUnknownOrInactiveVoter
	}

	for attempt := 0; attempt < 2; attempt++ {
		existing, err := m.deps.Repos.Sessions(m.deps.DB.Handle()).GetActiveByFingerprint(ctx, elig.TenantID, elig.Fingerprint)
		switch {
		case err == nil && !existing.ExpiredAt(m.deps.Now(), m.deps.SessionTTL):
			m.deps.Metrics.Session("resumed")
			return existing, nil
		case err == nil:
			if err := m.complete(ctx, existing, EndReasonExpired); err != nil {
				return nil, err
			}
		case !errors.Is(err, common.ErrorNotFound):
			return nil, storageErr("load active session", err)
		}

		s, err := m.create(ctx, elig, client)
		if err == nil {
			return s, nil
		}
		// a concurrent Start won the partial unique index; go load its session
		if !errors.Is(err, common.ErrorAlreadyExists) {
			return nil, err
		}
	}
	return nil, storageErr("start session", errors.New("active session changed concurrently"))
}

func (m *SessionManager) create(ctx context.Context, elig *models.Eligibility, client models.ClientMeta) (*models.VotingSession, error) {
	now := m.deps.Now()
	s := &models.VotingSession{
		ID:               newID(),
		TenantID:         elig.TenantID,
		VoterFingerprint: elig.Fingerprint,
		Status:           models.SessionActive,
		StartedAt:        now,
		Client:           client,
	}
	entry := &models.AuditEntry{
		ID:        newID(),
		Type:      models.AuditSessionStarted,
		SessionID: s.ID,
		Detail: map[string]any{
			"user_agent":         client.UserAgent,
			"origin":             client.Origin,
			"eligible_elections": len(elig.RemainingFor(nil)),
		},
		CreatedAt: now,
	}

	err := m.deps.DB.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := m.deps.Repos.Sessions(tx).Create(ctx, s); err != nil {
			return err
		}
		return audit.NewSQLSink(m.deps.Repos.Audit(tx)).Write(ctx, entry)
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, err
		}
		return nil, storageErr("create session", err)
	}

	m.archive(ctx, entry)
	m.deps.Metrics.Session("started")
	m.deps.Logger.Info(ctx, "voting session started", "session_id", s.ID, "tenant_id", s.TenantID)
	return s, nil
}

// lookup loads a session owned by tenantID in any state.
func (m *SessionManager) lookup(ctx context.Context, tenantID, sessionID string) (*models.VotingSession, error) {
	s, err := m.deps.Repos.Sessions(m.deps.DB.Handle()).Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrSessionInvalid
		}
		return nil, storageErr("load session", err)
	}
	if s.TenantID != tenantID {
		return nil, common.ErrSessionInvalid
	}
	return s, nil
}

// Get returns an active, unexpired session owned by tenantID, or
// common.ErrSessionInvalid.
func (m *SessionManager) Get(ctx context.Context, tenantID, sessionID string) (*models.VotingSession, error) {
	s, err := m.lookup(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}
	return m.ensureActive(ctx, s)
}

func (m *SessionManager) ensureActive(ctx context.Context, s *models.VotingSession) (*models.VotingSession, error) {
	if !s.IsActive() {
		return nil, common.ErrSessionInvalid
	}
	if s.ExpiredAt(m.deps.Now(), m.deps.SessionTTL) {
		if err := m.complete(ctx, s, EndReasonExpired); err != nil {
			m.deps.Logger.Warn(ctx, "failed to close expired session", "session_id", s.ID, "error", err)
		}
		return nil, common.ErrSessionInvalid
	}
	return s, nil
}

// End completes the session. Ending an already completed session is a no-op.
func (m *SessionManager) End(ctx context.Context, tenantID, sessionID, reason string) error {
	s, err := m.lookup(ctx, tenantID, sessionID)
	if err != nil {
		return err
	}
	if !s.IsActive() {
		return nil
	}
	return m.complete(ctx, s, reason)
}

// CompleteIfDone completes s when no election remains available to it.
func (m *SessionManager) CompleteIfDone(ctx context.Context, s *models.VotingSession, remaining []string) (bool, error) {
	if len(remaining) > 0 {
		return false, nil
	}
	if err := m.complete(ctx, s, EndReasonAllVoted); err != nil {
		return false, err
	}
	return true, nil
}

func (m *SessionManager) complete(ctx context.Context, s *models.VotingSession, reason string) error {
	now := m.deps.Now()
	entry := &models.AuditEntry{
		ID:        newID(),
		Type:      models.AuditSessionEnded,
		SessionID: s.ID,
		Detail: map[string]any{
			"reason":              reason,
			"elapsed_seconds":     int64(now.Sub(s.StartedAt) / time.Second),
			"completed_elections": len(s.ElectionsVoted),
		},
		CreatedAt: now,
	}

	moved := false
	err := m.deps.DB.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		if moved, err = m.deps.Repos.Sessions(tx).Complete(ctx, s.ID, now); err != nil || !moved {
			return err
		}
		return audit.NewSQLSink(m.deps.Repos.Audit(tx)).Write(ctx, entry)
	})
	if err != nil {
		return storageErr("complete session", err)
	}
	if !moved {
		// someone else completed it first
		return nil
	}

	s.Status = models.SessionCompleted
	s.EndedAt = &now
	m.archive(ctx, entry)
	m.deps.Metrics.Session(reason)
	if m.deps.Bus != nil {
		m.deps.Bus.PublishAsync(event.SessionEndedEventType, event.NewEvent(event.SessionEndedEventType,
			event.SessionEndedEvent{SessionID: s.ID, Reason: reason, ElectionsVoted: len(s.ElectionsVoted)}))
	}
	m.deps.Logger.Info(ctx, "voting session ended", "session_id", s.ID, "reason", reason,
		"completed_elections", len(s.ElectionsVoted))
	return nil
}

func (m *SessionManager) archive(ctx context.Context, e *models.AuditEntry) {
	if err := m.deps.Archive.Write(ctx, e); err != nil {
		m.deps.Logger.Warn(ctx, "audit archive failed", "audit_id", e.ID, "type", e.Type, "error", err)
	}
}
