package event

import (
	"time"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/server/models"
)

const (
	// VoteCommittedEventType fires once per ledger insert.
	VoteCommittedEventType EventType = "vote.committed"
	// TallyUpdatedEventType fires when a new tally snapshot is published.
	TallyUpdatedEventType EventType = "tally.updated"
	// SessionEndedEventType fires when a voting session completes.
	SessionEndedEventType EventType = "session.ended"
)

type VoteCommittedEvent struct {
	VoteID      string
	ElectionID  string
	CandidateID string
	CastAt      time.Time
}

// TallyUpdatedEvent carries the published snapshot; receivers must treat it
// as read-only.
type TallyUpdatedEvent struct {
	Snapshot *models.TallySnapshot
}

func (e TallyUpdatedEvent) EventVersion() uint64 {
	return e.Snapshot.Version
}

type SessionEndedEvent struct {
	SessionID      string
	Reason         string
	ElectionsVoted int
}
