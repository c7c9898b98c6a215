package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"civicvote/api/internal/apperr"
	"civicvote/api/internal/ids"
	"civicvote/api/internal/models"
	"civicvote/api/internal/repository"
)

// ElectionService owns voting-session lifecycle and the candidates
// attached to a session. Mutations are owner-gated: only the admin who
// created a session may change it.
type ElectionService struct {
	elections   ElectionStore
	candidates  CandidateStore
	memberships MembershipStore
	log         zerolog.Logger
}

func NewElectionService(elections ElectionStore, candidates CandidateStore, memberships MembershipStore, log zerolog.Logger) *ElectionService {
	return &ElectionService{
		elections:   elections,
		candidates:  candidates,
		memberships: memberships,
		log:         log,
	}
}

type CreateSessionInput struct {
	Title       string
	Description string
	StartTime   *time.Time // defaults to now
	EndTime     time.Time
}

func (s *ElectionService) CreateSession(ctx context.Context, adminID string, input CreateSessionInput) (models.VotingSession, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return models.VotingSession{}, apperr.New(apperr.KindInvalid, "title and end date are required")
	}

	now := time.Now()
	start := now
	if input.StartTime != nil {
		start = *input.StartTime
	}
	if !input.EndTime.After(now) {
		return models.VotingSession{}, apperr.New(apperr.KindInvalid, "end date must be in the future")
	}
	if !input.EndTime.After(start) {
		return models.VotingSession{}, apperr.New(apperr.KindInvalid, "end date must be after start date")
	}

	session := models.VotingSession{
		ID:          ids.New(),
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		AdminID:     adminID,
		StartTime:   start,
		EndTime:     input.EndTime,
		Active:      true,
	}

	if err := s.elections.Create(ctx, session); err != nil {
		return models.VotingSession{}, apperr.Wrap(apperr.KindInternal, "create session", err)
	}
	return session, nil
}

// GetOwnedSession loads a session and enforces ownership.
func (s *ElectionService) GetOwnedSession(ctx context.Context, adminID, sessionID string) (models.VotingSession, error) {
	session, err := s.elections.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return models.VotingSession{}, apperr.New(apperr.KindNotFound, "voting session not found")
		}
		return models.VotingSession{}, apperr.Wrap(apperr.KindInternal, "get session", err)
	}
	if session.AdminID != adminID {
		return models.VotingSession{}, apperr.New(apperr.KindForbidden, "you do not own this voting session")
	}
	return session, nil
}

func (s *ElectionService) GetSession(ctx context.Context, sessionID string) (models.VotingSession, error) {
	session, err := s.elections.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return models.VotingSession{}, apperr.New(apperr.KindNotFound, "voting session not found")
		}
		return models.VotingSession{}, apperr.Wrap(apperr.KindInternal, "get session", err)
	}
	return session, nil
}

// UpdateSession applies the patch after the ownership gate. Activating a
// session demands at least one candidate; an end-time change must keep
// the window valid.
func (s *ElectionService) UpdateSession(ctx context.Context, adminID, sessionID string, patch models.SessionPatch) error {
	session, err := s.GetOwnedSession(ctx, adminID, sessionID)
	if err != nil {
		return err
	}

	if patch.Title == nil && patch.Description == nil && patch.EndTime == nil && patch.Active == nil {
		return apperr.New(apperr.KindInvalid, "no fields to update")
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return apperr.New(apperr.KindInvalid, "title cannot be empty")
	}
	if patch.EndTime != nil && !patch.EndTime.After(session.StartTime) {
		return apperr.New(apperr.KindInvalid, "end date must be after start date")
	}

	if patch.Active != nil && *patch.Active && !session.Active {
		count, err := s.candidates.CountBySession(ctx, sessionID)
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, "count candidates", err)
		}
		if count == 0 {
			return apperr.New(apperr.KindInvalid, "session has no candidates")
		}
	}

	if err := s.elections.Update(ctx, sessionID, patch); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return apperr.New(apperr.KindNotFound, "voting session not found")
		}
		return apperr.Wrap(apperr.KindInternal, "update session", err)
	}
	return nil
}

func (s *ElectionService) ListSessions(ctx context.Context, adminID string, status models.SessionStatusFilter, limit, offset int) ([]models.SessionSummary, int, error) {
	sessions, total, err := s.elections.ListByAdmin(ctx, adminID, status, limit, offset)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.KindInternal, "list sessions", err)
	}
	return sessions, total, nil
}

func (s *ElectionService) AddCandidate(ctx context.Context, adminID, sessionID, name, description string) (models.Candidate, error) {
	if _, err := s.GetOwnedSession(ctx, adminID, sessionID); err != nil {
		return models.Candidate{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Candidate{}, apperr.New(apperr.KindInvalid, "candidate name is required")
	}

	candidate := models.Candidate{
		ID:          ids.New(),
		SessionID:   sessionID,
		Name:        name,
		Description: strings.TrimSpace(description),
	}
	if err := s.candidates.Create(ctx, candidate); err != nil {
		if errors.Is(err, repository.ErrDuplicateCandidate) {
			return models.Candidate{}, apperr.New(apperr.KindConflict, "candidate name already exists in this session")
		}
		return models.Candidate{}, apperr.Wrap(apperr.KindInternal, "create candidate", err)
	}
	return candidate, nil
}

func (s *ElectionService) ListCandidates(ctx context.Context, sessionID string) ([]models.Candidate, error) {
	candidates, err := s.candidates.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list candidates", err)
	}
	return candidates, nil
}

func (s *ElectionService) RemoveCandidate(ctx context.Context, adminID, sessionID, candidateID string) error {
	if _, err := s.GetOwnedSession(ctx, adminID, sessionID); err != nil {
		return err
	}
	err := s.candidates.Delete(ctx, sessionID, candidateID)
	if errors.Is(err, repository.ErrCandidateNotFound) {
		return apperr.New(apperr.KindNotFound, "candidate not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "delete candidate", err)
	}
	return nil
}
