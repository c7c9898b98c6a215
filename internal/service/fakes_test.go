package service

import (
	"context"
	"strings"
	"time"

	"civicvote/api/internal/config"
	"civicvote/api/internal/models"
	"civicvote/api/internal/repository"
)

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Security: config.SecurityConfig{
			JWTSecret:    "test-secret",
			JWTAccessTTL: time.Hour,
		},
		Registration: config.RegistrationConfig{
			TokenTTL:    7 * 24 * time.Hour,
			FrontendURL: "http://localhost:3000",
		},
	}
}

// In-memory stores mirroring the Postgres semantics the services rely
// on: case-insensitive email uniqueness, wallet and token uniqueness,
// and the conditional updates behind redemption and vote marking.

type fakeUserStore struct {
	users map[string]models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]models.User)}
}

func (s *fakeUserStore) Create(_ context.Context, user models.User) error {
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return repository.ErrDuplicateEmail
		}
		if user.WalletAddress != nil && existing.WalletAddress != nil &&
			*existing.WalletAddress == *user.WalletAddress {
			return repository.ErrDuplicateWallet
		}
	}
	user.CreatedAt = time.Now()
	s.users[user.ID] = user
	return nil
}

func (s *fakeUserStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (s *fakeUserStore) FindByWallet(_ context.Context, wallet string) (models.User, error) {
	for _, u := range s.users {
		if u.WalletAddress != nil && *u.WalletAddress == wallet {
			return u, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (s *fakeUserStore) FindByInviteToken(_ context.Context, token string) (models.User, error) {
	for _, u := range s.users {
		if u.Role == models.UserRoleVoter && u.InviteToken != nil && *u.InviteToken == token {
			return u, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (s *fakeUserStore) GetByID(_ context.Context, id string) (models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (s *fakeUserStore) SetVerified(_ context.Context, ids []string, verified bool) (int64, error) {
	var affected int64
	for _, id := range ids {
		u, ok := s.users[id]
		if !ok || u.Role != models.UserRoleVoter {
			continue
		}
		u.Verified = verified
		s.users[id] = u
		affected++
	}
	return affected, nil
}

func (s *fakeUserStore) SetActive(_ context.Context, id string, active bool) error {
	u, ok := s.users[id]
	if !ok || u.Role != models.UserRoleVoter {
		return repository.ErrUserNotFound
	}
	u.Active = active
	s.users[id] = u
	return nil
}

func (s *fakeUserStore) SetInvitation(_ context.Context, id string, token string, expires time.Time) error {
	u, ok := s.users[id]
	if !ok || u.Registered {
		return repository.ErrUserNotFound
	}
	u.InviteToken = &token
	u.InviteExpires = &expires
	s.users[id] = u
	return nil
}

func (s *fakeUserStore) Redeem(_ context.Context, token string, hash []byte, wallet string, firstName, lastName *string) error {
	for id, u := range s.users {
		if u.InviteToken == nil || *u.InviteToken != token {
			continue
		}
		if u.Registered || u.InviteExpires == nil || !u.InviteExpires.After(time.Now()) {
			return repository.ErrNothingToRedeem
		}
		for otherID, other := range s.users {
			if otherID != id && other.WalletAddress != nil && *other.WalletAddress == wallet {
				return repository.ErrDuplicateWallet
			}
		}
		u.PasswordHash = hash
		u.WalletAddress = &wallet
		if firstName != nil {
			u.FirstName = *firstName
		}
		if lastName != nil {
			u.LastName = *lastName
		}
		u.Registered = true
		u.InviteToken = nil
		u.InviteExpires = nil
		s.users[id] = u
		return nil
	}
	return repository.ErrNothingToRedeem
}

func (s *fakeUserStore) UpdateProfile(_ context.Context, id string, patch models.UserPatch) error {
	u, ok := s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	if patch.FirstName != nil {
		u.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		u.LastName = *patch.LastName
	}
	if patch.PasswordHash != nil {
		u.PasswordHash = patch.PasswordHash
	}
	s.users[id] = u
	return nil
}

func (s *fakeUserStore) TouchLogin(_ context.Context, id string) error {
	u, ok := s.users[id]
	if !ok {
		return nil
	}
	now := time.Now()
	u.LastLoginAt = &now
	s.users[id] = u
	return nil
}

func (s *fakeUserStore) ListVoters(_ context.Context, filter models.VoterFilter) ([]models.VoterSummary, int, error) {
	var voters []models.VoterSummary
	for _, u := range s.users {
		if u.Role != models.UserRoleVoter {
			continue
		}
		if filter.Verified != nil && u.Verified != *filter.Verified {
			continue
		}
		if filter.Active != nil && u.Active != *filter.Active {
			continue
		}
		voters = append(voters, models.VoterSummary{
			ID:         u.ID,
			Email:      u.Email,
			FirstName:  u.FirstName,
			LastName:   u.LastName,
			Registered: u.Registered,
			Verified:   u.Verified,
			Active:     u.Active,
		})
	}
	return voters, len(voters), nil
}

type fakeElectionStore struct {
	sessions map[string]models.VotingSession
}

func newFakeElectionStore() *fakeElectionStore {
	return &fakeElectionStore{sessions: make(map[string]models.VotingSession)}
}

func (s *fakeElectionStore) Create(_ context.Context, session models.VotingSession) error {
	session.CreatedAt = time.Now()
	s.sessions[session.ID] = session
	return nil
}

func (s *fakeElectionStore) GetByID(_ context.Context, id string) (models.VotingSession, error) {
	session, ok := s.sessions[id]
	if !ok {
		return models.VotingSession{}, repository.ErrSessionNotFound
	}
	return session, nil
}

func (s *fakeElectionStore) Update(_ context.Context, id string, patch models.SessionPatch) error {
	session, ok := s.sessions[id]
	if !ok {
		return repository.ErrSessionNotFound
	}
	if patch.Title != nil {
		session.Title = *patch.Title
	}
	if patch.Description != nil {
		session.Description = *patch.Description
	}
	if patch.EndTime != nil {
		session.EndTime = *patch.EndTime
	}
	if patch.Active != nil {
		session.Active = *patch.Active
	}
	s.sessions[id] = session
	return nil
}

func (s *fakeElectionStore) ListByAdmin(_ context.Context, adminID string, _ models.SessionStatusFilter, _, _ int) ([]models.SessionSummary, int, error) {
	var summaries []models.SessionSummary
	for _, session := range s.sessions {
		if session.AdminID != adminID {
			continue
		}
		summaries = append(summaries, models.SessionSummary{VotingSession: session})
	}
	return summaries, len(summaries), nil
}

type fakeMembershipStore struct {
	memberships map[string]models.Membership
	users       *fakeUserStore
}

func newFakeMembershipStore(users *fakeUserStore) *fakeMembershipStore {
	return &fakeMembershipStore{
		memberships: make(map[string]models.Membership),
		users:       users,
	}
}

func membershipKey(sessionID, voterID string) string {
	return sessionID + "|" + voterID
}

func (s *fakeMembershipStore) Enroll(_ context.Context, sessionID, voterID string) (bool, error) {
	key := membershipKey(sessionID, voterID)
	if _, exists := s.memberships[key]; exists {
		return false, nil
	}
	s.memberships[key] = models.Membership{
		SessionID: sessionID,
		VoterID:   voterID,
		JoinedAt:  time.Now(),
	}
	return true, nil
}

func (s *fakeMembershipStore) Remove(_ context.Context, sessionID string, voterIDs []string) (int64, error) {
	var removed int64
	for _, voterID := range voterIDs {
		key := membershipKey(sessionID, voterID)
		if _, exists := s.memberships[key]; exists {
			delete(s.memberships, key)
			removed++
		}
	}
	return removed, nil
}

func (s *fakeMembershipStore) MarkVoted(_ context.Context, sessionID, voterID string) error {
	key := membershipKey(sessionID, voterID)
	m, exists := s.memberships[key]
	if !exists {
		return repository.ErrNotEnrolled
	}
	if m.HasVoted {
		return repository.ErrAlreadyVoted
	}
	now := time.Now()
	m.HasVoted = true
	m.VotedAt = &now
	s.memberships[key] = m
	return nil
}

func (s *fakeMembershipStore) Get(_ context.Context, sessionID, voterID string) (models.Membership, error) {
	m, exists := s.memberships[membershipKey(sessionID, voterID)]
	if !exists {
		return models.Membership{}, repository.ErrNotEnrolled
	}
	return m, nil
}

func (s *fakeMembershipStore) ListForSession(_ context.Context, sessionID string, _ models.MembershipFilter) ([]models.MembershipView, int, error) {
	var views []models.MembershipView
	for _, m := range s.memberships {
		if m.SessionID != sessionID {
			continue
		}
		view := models.MembershipView{
			VoterID:  m.VoterID,
			HasVoted: m.HasVoted,
			VotedAt:  m.VotedAt,
			JoinedAt: m.JoinedAt,
		}
		if u, ok := s.users.users[m.VoterID]; ok {
			view.Email = u.Email
			view.FirstName = u.FirstName
			view.LastName = u.LastName
			view.Registered = u.Registered
			view.Verified = u.Verified
			view.Active = u.Active
		}
		views = append(views, view)
	}
	return views, len(views), nil
}

type fakeCandidateStore struct {
	candidates map[string]models.Candidate
}

func newFakeCandidateStore() *fakeCandidateStore {
	return &fakeCandidateStore{candidates: make(map[string]models.Candidate)}
}

func (s *fakeCandidateStore) Create(_ context.Context, c models.Candidate) error {
	for _, existing := range s.candidates {
		if existing.SessionID == c.SessionID && existing.Name == c.Name {
			return repository.ErrDuplicateCandidate
		}
	}
	s.candidates[c.ID] = c
	return nil
}

func (s *fakeCandidateStore) ListBySession(_ context.Context, sessionID string) ([]models.Candidate, error) {
	var out []models.Candidate
	for _, c := range s.candidates {
		if c.SessionID == sessionID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeCandidateStore) CountBySession(_ context.Context, sessionID string) (int, error) {
	count := 0
	for _, c := range s.candidates {
		if c.SessionID == sessionID {
			count++
		}
	}
	return count, nil
}

func (s *fakeCandidateStore) Delete(_ context.Context, sessionID, candidateID string) error {
	c, ok := s.candidates[candidateID]
	if !ok || c.SessionID != sessionID {
		return repository.ErrCandidateNotFound
	}
	delete(s.candidates, candidateID)
	return nil
}

type sentInvitation struct {
	Email string
	URL   string
}

type fakeMailer struct {
	sent []sentInvitation
	err  error
}

func (m *fakeMailer) SendInvitation(email, _, _ string, registrationURL string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentInvitation{Email: email, URL: registrationURL})
	return nil
}
