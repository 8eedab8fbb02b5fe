package models

// ElectionEligibility describes one votable election for a voter.
type ElectionEligibility struct {
	Election   Election
	Candidates []Candidate
	HasVoted   bool
}

// Available reports whether the voter may still cast in this election.
func (e *ElectionEligibility) Available() bool {
	return !e.HasVoted || e.Election.AllowMultipleVotes
}

// Eligibility is the outcome of resolving a voting identifier. When Eligible
// is false, Reason holds one of the eligibility sentinel errors.
type Eligibility struct {
	Eligible    bool
	Reason      error
	TenantID    string
	Fingerprint string
	Elections   []ElectionEligibility
}

// RemainingFor lists the available elections not already completed in a
// session that has voted in the given elections.
func (e *Eligibility) RemainingFor(voted func(electionID string) bool) []string {
	var out []string
	for i := range e.Elections {
		el := &e.Elections[i]
		if voted != nil && voted(el.Election.ID) {
			continue
		}
		if el.Available() {
			out = append(out, el.Election.ID)
		}
	}
	return out
}
