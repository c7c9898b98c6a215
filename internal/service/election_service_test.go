package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"civicvote/api/internal/apperr"
	"civicvote/api/internal/models"
)

type electionFixture struct {
	svc        *ElectionService
	elections  *fakeElectionStore
	candidates *fakeCandidateStore
}

func newElectionFixture() electionFixture {
	users := newFakeUserStore()
	elections := newFakeElectionStore()
	candidates := newFakeCandidateStore()
	memberships := newFakeMembershipStore(users)
	return electionFixture{
		svc:        NewElectionService(elections, candidates, memberships, zerolog.Nop()),
		elections:  elections,
		candidates: candidates,
	}
}

func TestCreateSessionDefaultsAndValidation(t *testing.T) {
	f := newElectionFixture()
	ctx := context.Background()

	session, err := f.svc.CreateSession(ctx, "admin", CreateSessionInput{
		Title:   "  Board Election ",
		EndTime: time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if session.Title != "Board Election" {
		t.Fatalf("expected trimmed title, got %q", session.Title)
	}
	if session.AdminID != "admin" || !session.Active {
		t.Fatalf("unexpected session %+v", session)
	}
	if session.StartTime.After(time.Now()) {
		t.Fatal("start time must default to now")
	}

	if _, err := f.svc.CreateSession(ctx, "admin", CreateSessionInput{
		EndTime: time.Now().Add(time.Hour),
	}); apperr.KindOf(err) != apperr.KindInvalid {
		t.Fatalf("expected invalid for missing title, got %v", err)
	}

	if _, err := f.svc.CreateSession(ctx, "admin", CreateSessionInput{
		Title:   "Past",
		EndTime: time.Now().Add(-time.Hour),
	}); apperr.KindOf(err) != apperr.KindInvalid {
		t.Fatalf("expected invalid for past end date, got %v", err)
	}

	future := time.Now().Add(48 * time.Hour)
	if _, err := f.svc.CreateSession(ctx, "admin", CreateSessionInput{
		Title:     "Inverted",
		StartTime: &future,
		EndTime:   time.Now().Add(time.Hour),
	}); apperr.KindOf(err) != apperr.KindInvalid {
		t.Fatalf("expected invalid for end before start, got %v", err)
	}
}

func TestGetOwnedSessionEnforcesOwnership(t *testing.T) {
	f := newElectionFixture()
	f.elections.sessions["s1"] = models.VotingSession{ID: "s1", AdminID: "owner"}

	if _, err := f.svc.GetOwnedSession(context.Background(), "owner", "s1"); err != nil {
		t.Fatalf("owner access: %v", err)
	}
	if _, err := f.svc.GetOwnedSession(context.Background(), "intruder", "s1"); apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := f.svc.GetOwnedSession(context.Background(), "owner", "ghost"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateSessionActivationRequiresCandidates(t *testing.T) {
	f := newElectionFixture()
	f.elections.sessions["s1"] = models.VotingSession{
		ID:        "s1",
		AdminID:   "owner",
		StartTime: time.Now().Add(-time.Hour),
		EndTime:   time.Now().Add(time.Hour),
		Active:    false,
	}

	active := true
	err := f.svc.UpdateSession(context.Background(), "owner", "s1", models.SessionPatch{Active: &active})
	if apperr.KindOf(err) != apperr.KindInvalid {
		t.Fatalf("activation without candidates must fail, got %v", err)
	}

	f.candidates.candidates["c1"] = models.Candidate{ID: "c1", SessionID: "s1", Name: "Alice"}
	if err := f.svc.UpdateSession(context.Background(), "owner", "s1", models.SessionPatch{Active: &active}); err != nil {
		t.Fatalf("activation with candidates: %v", err)
	}
	if !f.elections.sessions["s1"].Active {
		t.Fatal("expected session activated")
	}
}

func TestUpdateSessionValidatesPatch(t *testing.T) {
	f := newElectionFixture()
	f.elections.sessions["s1"] = models.VotingSession{
		ID:        "s1",
		AdminID:   "owner",
		StartTime: time.Now(),
		EndTime:   time.Now().Add(time.Hour),
		Active:    true,
	}

	if err := f.svc.UpdateSession(context.Background(), "owner", "s1", models.SessionPatch{}); apperr.KindOf(err) != apperr.KindInvalid {
		t.Fatalf("empty patch must fail, got %v", err)
	}

	empty := "   "
	if err := f.svc.UpdateSession(context.Background(), "owner", "s1", models.SessionPatch{Title: &empty}); apperr.KindOf(err) != apperr.KindInvalid {
		t.Fatalf("blank title must fail, got %v", err)
	}

	past := time.Now().Add(-time.Hour)
	if err := f.svc.UpdateSession(context.Background(), "owner", "s1", models.SessionPatch{EndTime: &past}); apperr.KindOf(err) != apperr.KindInvalid {
		t.Fatalf("end before start must fail, got %v", err)
	}
}

func TestAddCandidateRejectsDuplicates(t *testing.T) {
	f := newElectionFixture()
	f.elections.sessions["s1"] = models.VotingSession{ID: "s1", AdminID: "owner"}

	if _, err := f.svc.AddCandidate(context.Background(), "owner", "s1", "Alice", "incumbent"); err != nil {
		t.Fatalf("add candidate: %v", err)
	}
	_, err := f.svc.AddCandidate(context.Background(), "owner", "s1", "Alice", "challenger")
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}

	if _, err := f.svc.AddCandidate(context.Background(), "intruder", "s1", "Bob", ""); apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("expected forbidden for non-owner, got %v", err)
	}
}

func TestRemoveCandidate(t *testing.T) {
	f := newElectionFixture()
	f.elections.sessions["s1"] = models.VotingSession{ID: "s1", AdminID: "owner"}
	f.candidates.candidates["c1"] = models.Candidate{ID: "c1", SessionID: "s1", Name: "Alice"}

	if err := f.svc.RemoveCandidate(context.Background(), "owner", "s1", "c1"); err != nil {
		t.Fatalf("remove candidate: %v", err)
	}
	if err := f.svc.RemoveCandidate(context.Background(), "owner", "s1", "c1"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
