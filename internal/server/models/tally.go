package models

import "time"

type CandidateTally struct {
	CandidateID string
	Name        string
	Position    int
	Count       int64
	// Percentage of the election total, rounded half-up.
	Percentage int
}

// TallySnapshot is a read projection over the vote ledger; it is always
// re-derivable from it and never persisted.
type TallySnapshot struct {
	ElectionID string
	Total      int64
	// Candidates are ordered by position.
	Candidates []CandidateTally
	Leaders    []string
	IsDraw     bool
	// Version increases every time a new snapshot is published for the election.
	Version    uint64
	ComputedAt time.Time
}

// Count returns the tally for candidateID, or zero.
func (s *TallySnapshot) Count(candidateID string) int64 {
	for _, c := range s.Candidates {
		if c.CandidateID == candidateID {
			return c.Count
		}
	}
	return 0
}
