package service

import (
	"context"
	"time"

	"civicvote/api/internal/models"
)

// Store contracts consumed by the services. The repository package
// implements them against Postgres; tests implement them in memory with
// the same uniqueness and conditional-update semantics.

type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByWallet(ctx context.Context, wallet string) (models.User, error)
	FindByInviteToken(ctx context.Context, token string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	SetVerified(ctx context.Context, ids []string, verified bool) (int64, error)
	SetActive(ctx context.Context, id string, active bool) error
	SetInvitation(ctx context.Context, id string, token string, expires time.Time) error
	Redeem(ctx context.Context, token string, hash []byte, wallet string, firstName, lastName *string) error
	UpdateProfile(ctx context.Context, id string, patch models.UserPatch) error
	TouchLogin(ctx context.Context, id string) error
	ListVoters(ctx context.Context, filter models.VoterFilter) ([]models.VoterSummary, int, error)
}

type ElectionStore interface {
	Create(ctx context.Context, session models.VotingSession) error
	GetByID(ctx context.Context, id string) (models.VotingSession, error)
	Update(ctx context.Context, id string, patch models.SessionPatch) error
	ListByAdmin(ctx context.Context, adminID string, status models.SessionStatusFilter, limit, offset int) ([]models.SessionSummary, int, error)
}

type MembershipStore interface {
	Enroll(ctx context.Context, sessionID, voterID string) (bool, error)
	Remove(ctx context.Context, sessionID string, voterIDs []string) (int64, error)
	MarkVoted(ctx context.Context, sessionID, voterID string) error
	Get(ctx context.Context, sessionID, voterID string) (models.Membership, error)
	ListForSession(ctx context.Context, sessionID string, filter models.MembershipFilter) ([]models.MembershipView, int, error)
}

type CandidateStore interface {
	Create(ctx context.Context, c models.Candidate) error
	ListBySession(ctx context.Context, sessionID string) ([]models.Candidate, error)
	CountBySession(ctx context.Context, sessionID string) (int, error)
	Delete(ctx context.Context, sessionID, candidateID string) error
}

// InvitationMailer is the outbound email collaborator. Send failures are
// logged, never propagated into the triggering operation.
type InvitationMailer interface {
	SendInvitation(email, firstName, lastName, registrationURL string) error
}
