package models

import "time"

// VotingSession is an election round owned by one admin.
// Invariant: EndTime is strictly after StartTime.
type VotingSession struct {
	ID          string
	Title       string
	Description string
	AdminID     string
	StartTime   time.Time
	EndTime     time.Time
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Open reports whether the session currently accepts votes.
func (s VotingSession) Open(now time.Time) bool {
	return s.Active && !now.Before(s.StartTime) && now.Before(s.EndTime)
}

// SessionPatch carries optional session updates applied by a fixed set of
// column writers.
type SessionPatch struct {
	Title       *string
	Description *string
	EndTime     *time.Time
	Active      *bool
}

// SessionSummary adds participation counts to the admin session listing.
type SessionSummary struct {
	VotingSession
	VoterCount int
	VotesCast  int
}

type SessionStatusFilter string

const (
	SessionStatusAll      SessionStatusFilter = "all"
	SessionStatusActive   SessionStatusFilter = "active"
	SessionStatusEnded    SessionStatusFilter = "ended"
	SessionStatusInactive SessionStatusFilter = "inactive"
)
