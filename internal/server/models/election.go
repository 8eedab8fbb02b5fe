// Package models defines the catalog, ledger and projection types shared by
// the ballot server's repositories, services and transport.
package models

import "time"

type ElectionStatus string

const (
	ElectionDraft     ElectionStatus = "draft"
	ElectionActive    ElectionStatus = "active"
	ElectionCompleted ElectionStatus = "completed"
	ElectionArchived  ElectionStatus = "archived"
)

// Valid reports whether s is a known lifecycle status.
func (s ElectionStatus) Valid() bool {
	switch s {
	case ElectionDraft, ElectionActive, ElectionCompleted, ElectionArchived:
		return true
	}
	return false
}

// Election is owned by exactly one tenant (administrator). It accepts votes
// only while active and inside its [StartAt, EndAt) window.
type Election struct {
	ID                 string
	TenantID           string
	Title              string
	Category           string
	Status             ElectionStatus
	StartAt            time.Time
	EndAt              time.Time
	AllowMultipleVotes bool
}

// AcceptsVotes reports whether a ballot cast at now may be recorded.
func (e *Election) AcceptsVotes(now time.Time) bool {
	if e.Status != ElectionActive {
		return false
	}
	return !now.Before(e.StartAt) && now.Before(e.EndAt)
}

// Candidate positions are unique within an election.
type Candidate struct {
	ID         string
	ElectionID string
	Name       string
	Position   int
	ImageURL   string
}
