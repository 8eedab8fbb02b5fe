package models

import "time"

type AuditEventType string

const (
	AuditSessionStarted AuditEventType = "session_started"
	AuditVoteCast       AuditEventType = "vote_cast"
	AuditSessionEnded   AuditEventType = "session_ended"
	AuditFraudAttempt   AuditEventType = "fraud_attempt"
)

// AuditEntry is never mutated once written.
type AuditEntry struct {
	ID         string
	Type       AuditEventType
	SessionID  string
	ElectionID string
	Detail     map[string]any
	CreatedAt  time.Time
}
