package models

import (
	"strings"
	"time"
)

// Vote is an append-only ledger entry.
type Vote struct {
	ID               string
	ElectionID       string
	CandidateID      string
	VoterFingerprint string
	SessionID        string
	// BallotKey carries the uniqueness constraint, see BallotKey.
	BallotKey     string
	IntegrityHash string
	CastAt        time.Time
	Client        ClientMeta
}

// VoteRef is the part of a ledger row the tally needs.
type VoteRef struct {
	ID          string
	CandidateID string
	CastAt      time.Time
}

// BallotKey is the value stored under the ledger's UNIQUE ballot_key column:
// one vote per (election, voter), or one per (election, voter, candidate)
// when the election allows multiple votes.
func BallotKey(e *Election, fingerprint, candidateID string) string {
	parts := []string{e.ID, fingerprint}
	if e.AllowMultipleVotes {
		parts = append(parts, candidateID)
	}
	return strings.Join(parts, "|")
}

// VoteResult is returned by a successful cast.
type VoteResult struct {
	VoteID      string
	ElectionID  string
	CandidateID string
	CastAt      time.Time
	// Remaining lists elections the voter can still vote in within this session.
	Remaining []string
	// SessionCompleted is set when the cast closed the session.
	SessionCompleted bool
}
