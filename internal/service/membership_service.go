package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"civicvote/api/internal/apperr"
	"civicvote/api/internal/models"
	"civicvote/api/internal/repository"
)

// IneligibleReason explains why a voter may not cast a ballot right now.
type IneligibleReason string

const (
	ReasonSessionNotOpen  IneligibleReason = "session_not_open"
	ReasonInactiveAccount IneligibleReason = "inactive_account"
	ReasonNotVerified     IneligibleReason = "not_verified"
	ReasonNotEnrolled     IneligibleReason = "not_enrolled"
	ReasonAlreadyVoted    IneligibleReason = "already_voted"
)

type Eligibility struct {
	Eligible bool
	Reason   IneligibleReason
}

// MembershipService owns the session-voter join: idempotent enrollment,
// removal, the write-once vote flag, and the eligibility gate the
// vote-casting subsystem must consult.
type MembershipService struct {
	memberships MembershipStore
	elections   ElectionStore
	users       UserStore
	log         zerolog.Logger
}

func NewMembershipService(memberships MembershipStore, elections ElectionStore, users UserStore, log zerolog.Logger) *MembershipService {
	return &MembershipService{
		memberships: memberships,
		elections:   elections,
		users:       users,
		log:         log,
	}
}

// Enroll adds a voter to a session. Re-enrolling an existing member is a
// no-op reported through created=false, never an error.
func (s *MembershipService) Enroll(ctx context.Context, sessionID, voterID string) (bool, error) {
	if _, err := s.elections.GetByID(ctx, sessionID); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return false, apperr.New(apperr.KindNotFound, "voting session not found")
		}
		return false, apperr.Wrap(apperr.KindInternal, "get session", err)
	}
	user, err := s.users.GetByID(ctx, voterID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return false, apperr.New(apperr.KindNotFound, "voter not found")
		}
		return false, apperr.Wrap(apperr.KindInternal, "get voter", err)
	}
	if user.Role != models.UserRoleVoter {
		return false, apperr.New(apperr.KindInvalid, "only voters can be enrolled")
	}

	created, err := s.memberships.Enroll(ctx, sessionID, voterID)
	if err != nil {
		return false, apperr.Wrap(apperr.KindInternal, "enroll voter", err)
	}
	return created, nil
}

type BulkEnrollResult struct {
	Added           int
	AlreadyEnrolled int
	Errors          []string
}

// BulkEnroll applies Enroll per voter id. Each id's outcome is
// independent; failures are collected, never thrown.
func (s *MembershipService) BulkEnroll(ctx context.Context, sessionID string, voterIDs []string) (BulkEnrollResult, error) {
	if _, err := s.elections.GetByID(ctx, sessionID); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return BulkEnrollResult{}, apperr.New(apperr.KindNotFound, "voting session not found")
		}
		return BulkEnrollResult{}, apperr.Wrap(apperr.KindInternal, "get session", err)
	}

	var result BulkEnrollResult
	for _, voterID := range voterIDs {
		created, err := s.memberships.Enroll(ctx, sessionID, voterID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to enroll %s: %v", voterID, err))
			continue
		}
		if created {
			result.Added++
		} else {
			result.AlreadyEnrolled++
		}
	}
	return result, nil
}

func (s *MembershipService) Remove(ctx context.Context, sessionID string, voterIDs []string) (int64, error) {
	removed, err := s.memberships.Remove(ctx, sessionID, voterIDs)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, "remove voters", err)
	}
	return removed, nil
}

// MarkVoted performs the write-once transition. Callers must treat
// AlreadyVoted as a hard stop, never a retry-with-overwrite.
func (s *MembershipService) MarkVoted(ctx context.Context, sessionID, voterID string) error {
	err := s.memberships.MarkVoted(ctx, sessionID, voterID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrAlreadyVoted):
		return apperr.New(apperr.KindAlreadyVoted, "voter has already voted in this session")
	case errors.Is(err, repository.ErrNotEnrolled):
		return apperr.New(apperr.KindNotEnrolled, "voter is not enrolled in this session")
	default:
		return apperr.Wrap(apperr.KindInternal, "mark voted", err)
	}
}

func (s *MembershipService) ListForSession(ctx context.Context, sessionID string, filter models.MembershipFilter) ([]models.MembershipView, int, error) {
	views, total, err := s.memberships.ListForSession(ctx, sessionID, filter)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.KindInternal, "list session voters", err)
	}
	return views, total, nil
}

// EligibilityCheck is the single authoritative gate before a vote is
// accepted. The evaluation order is part of the contract: session-open
// first, then account active, then verified, then enrolled, then
// already-voted, so the voter always sees the most stable reason.
func (s *MembershipService) EligibilityCheck(ctx context.Context, sessionID, voterID string) (Eligibility, error) {
	session, err := s.elections.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return Eligibility{}, apperr.New(apperr.KindNotFound, "voting session not found")
		}
		return Eligibility{}, apperr.Wrap(apperr.KindInternal, "get session", err)
	}
	if !session.Open(time.Now()) {
		return Eligibility{Reason: ReasonSessionNotOpen}, nil
	}

	user, err := s.users.GetByID(ctx, voterID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return Eligibility{}, apperr.New(apperr.KindNotFound, "voter not found")
		}
		return Eligibility{}, apperr.Wrap(apperr.KindInternal, "get voter", err)
	}
	if !user.Active {
		return Eligibility{Reason: ReasonInactiveAccount}, nil
	}
	if !user.Verified {
		return Eligibility{Reason: ReasonNotVerified}, nil
	}

	membership, err := s.memberships.Get(ctx, sessionID, voterID)
	if err != nil {
		if errors.Is(err, repository.ErrNotEnrolled) {
			return Eligibility{Reason: ReasonNotEnrolled}, nil
		}
		return Eligibility{}, apperr.Wrap(apperr.KindInternal, "get membership", err)
	}
	if membership.HasVoted {
		return Eligibility{Reason: ReasonAlreadyVoted}, nil
	}

	return Eligibility{Eligible: true}, nil
}

// CastBallot is the in-core half of vote casting: the eligibility gate
// followed by the write-once mark. The race between two concurrent casts
// is decided by MarkVoted, not by the check.
func (s *MembershipService) CastBallot(ctx context.Context, sessionID, voterID string) error {
	elig, err := s.EligibilityCheck(ctx, sessionID, voterID)
	if err != nil {
		return err
	}
	if !elig.Eligible {
		return ineligibleError(elig.Reason)
	}
	return s.MarkVoted(ctx, sessionID, voterID)
}

func ineligibleError(reason IneligibleReason) error {
	switch reason {
	case ReasonSessionNotOpen:
		return apperr.New(apperr.KindInvalid, "voting session is not open")
	case ReasonInactiveAccount:
		return apperr.New(apperr.KindForbidden, "account is deactivated")
	case ReasonNotVerified:
		return apperr.New(apperr.KindForbidden, "voter is not approved for this session")
	case ReasonNotEnrolled:
		return apperr.New(apperr.KindNotEnrolled, "voter is not enrolled in this session")
	case ReasonAlreadyVoted:
		return apperr.New(apperr.KindAlreadyVoted, "voter has already voted in this session")
	default:
		return apperr.New(apperr.KindInternal, "unknown eligibility state")
	}
}
