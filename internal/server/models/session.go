package models

import (
	"slices"
	"time"
)

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
)

// ClientMeta is what a voting station reports about itself.
type ClientMeta struct {
	UserAgent string
	Origin    string
}

// VotingSession is one voter's visit across possibly several elections.
type VotingSession struct {
	ID               string
	TenantID         string
	VoterFingerprint string
	Status           SessionStatus
	ElectionsVoted   []string
	StartedAt        time.Time
	EndedAt          *time.Time
	Client           ClientMeta
}

func (s *VotingSession) IsActive() bool {
	return s.Status == SessionActive
}

// HasVoted reports whether electionID was completed within this session.
func (s *VotingSession) HasVoted(electionID string) bool {
	return slices.Contains(s.ElectionsVoted, electionID)
}

// ExpiredAt reports whether an active session started more than ttl before now.
// A zero ttl disables expiry.
func (s *VotingSession) ExpiredAt(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 || !s.IsActive() {
		return false
	}
	return now.Sub(s.StartedAt) >= ttl
}
