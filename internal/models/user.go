package models

import "time"

type UserRole string

const (
	UserRoleAdmin UserRole = "admin"
	UserRoleVoter UserRole = "voter"
)

// User is the canonical voter/admin identity. Voter lifecycle: an
// unredeemed invitation token means "invited"; Registered flips when the
// voter completes onboarding; Verified gates session participation, not
// login; Active gates login.
type User struct {
	ID            string
	Email         string
	PasswordHash  []byte
	FirstName     string
	LastName      string
	Role          UserRole
	WalletAddress *string
	Registered    bool
	Verified      bool
	Active        bool
	InviteToken   *string
	InviteExpires *time.Time
	LastLoginAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Invited reports whether the user still holds an unredeemed invitation.
func (u User) Invited() bool {
	return !u.Registered && u.InviteToken != nil
}

// UserPatch carries optional profile updates. Each field is applied by a
// fixed column writer in the repository; nil means leave unchanged.
type UserPatch struct {
	FirstName    *string
	LastName     *string
	PasswordHash []byte
}

// VoterSummary is the admin list projection with participation counts.
type VoterSummary struct {
	ID            string
	Email         string
	FirstName     string
	LastName      string
	WalletAddress *string
	Registered    bool
	Verified      bool
	Active        bool
	SessionCount  int
	VotesCast     int
	CreatedAt     time.Time
}

// VoterFilter shapes the admin voter listing. Filters are ANDed.
type VoterFilter struct {
	Search   string
	Verified *bool
	Active   *bool
	Limit    int
	Offset   int
}
