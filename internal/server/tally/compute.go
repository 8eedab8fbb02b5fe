package tally

import (
	"time"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/models"
)

// Percentage is round(count/total*100) with halves rounded up, in integer
// arithmetic so every path agrees. A zero total yields zero.
func Percentage(count, total int64) int {
	if total <= 0 {
		return 0
	}
	return int((200*count + total) / (2 * total))
}

// Compute builds a snapshot for the given candidates and per-candidate
// counts. Candidates keep their order; counts for unknown candidates are
// ignored.
func Compute(electionID string, candidates []models.Candidate, counts map[string]int64, version uint64, at time.Time) *models.TallySnapshot {
	s := &models.TallySnapshot{
		ElectionID: electionID,
		Candidates: make([]models.CandidateTally, 0, len(candidates)),
		Version:    version,
		ComputedAt: at,
	}

	for _, c := range candidates {
		s.Total += counts[c.ID]
	}

	var max int64
	for _, c := range candidates {
		n := counts[c.ID]
		s.Candidates = append(s.Candidates, models.CandidateTally{
			CandidateID: c.ID,
			Name:        c.Name,
			Position:    c.Position,
			Count:       n,
			Percentage:  Percentage(n, s.Total),
		})
		if n > max {
			max = n
		}
	}

	if max > 0 {
		for _, c := range s.Candidates {
			if c.Count == max {
				s.Leaders = append(s.Leaders, c.CandidateID)
			}
		}
	}
	s.IsDraw = len(s.Leaders) > 1
	return s
}

// sameCounts reports whether two snapshots agree on every count.
func sameCounts(a, b *models.TallySnapshot) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Total != b.Total || len(a.Candidates) != len(b.Candidates) {
		return false
	}
	for i := range a.Candidates {
		if a.Candidates[i].CandidateID != b.Candidates[i].CandidateID || a.Candidates[i].Count != b.Candidates[i].Count {
			return false
		}
	}
	return true
}
