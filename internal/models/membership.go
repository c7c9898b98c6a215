package models

import "time"

// Membership joins one voter to one session. The (SessionID, VoterID) pair
// is unique; HasVoted is write-once and VotedAt is set iff HasVoted.
type Membership struct {
	SessionID string
	VoterID   string
	HasVoted  bool
	VotedAt   *time.Time
	JoinedAt  time.Time
}

// MembershipView is the read-side projection of a membership joined with
// the voter identity.
type MembershipView struct {
	VoterID       string
	Email         string
	FirstName     string
	LastName      string
	WalletAddress *string
	Registered    bool
	Verified      bool
	Active        bool
	HasVoted      bool
	VotedAt       *time.Time
	JoinedAt      time.Time
}

// MembershipFilter shapes the per-session voter listing. Filters are ANDed.
type MembershipFilter struct {
	Search   string
	Verified *bool
	Active   *bool
	Voted    *bool
	Limit    int
	Offset   int
}

type Candidate struct {
	ID          string
	SessionID   string
	Name        string
	Description string
	CreatedAt   time.Time
}
