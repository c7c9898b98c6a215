package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"civicvote/api/internal/apperr"
	"civicvote/api/internal/models"
	"civicvote/api/internal/security"
)

func newRegistrationFixture() (*RegistrationService, *fakeUserStore, *fakeMailer) {
	users := newFakeUserStore()
	mailer := &fakeMailer{}
	svc := NewRegistrationService(users, mailer, testConfig(), zerolog.Nop())
	return svc, users, mailer
}

func invitedVoter(users *fakeUserStore, id, email, token string, expires time.Time) {
	users.users[id] = models.User{
		ID:            id,
		Email:         email,
		FirstName:     "Jo",
		LastName:      "Voter",
		Role:          models.UserRoleVoter,
		Active:        true,
		InviteToken:   &token,
		InviteExpires: &expires,
	}
}

func TestIssueInvitationGeneratesTokenAndMails(t *testing.T) {
	svc, users, mailer := newRegistrationFixture()
	users.users["v1"] = models.User{
		ID:     "v1",
		Email:  "jo@example.com",
		Role:   models.UserRoleVoter,
		Active: true,
	}

	token, err := svc.IssueInvitation(context.Background(), "v1")
	if err != nil {
		t.Fatalf("issue invitation: %v", err)
	}
	if len(token) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(token))
	}

	stored := users.users["v1"]
	if stored.InviteToken == nil || *stored.InviteToken != token {
		t.Fatal("expected token stored on the voter")
	}
	if stored.InviteExpires == nil || !stored.InviteExpires.After(time.Now().Add(6*24*time.Hour)) {
		t.Fatal("expected expiry roughly seven days out")
	}

	if len(mailer.sent) != 1 {
		t.Fatalf("expected 1 invitation email, got %d", len(mailer.sent))
	}
	if !strings.HasSuffix(mailer.sent[0].URL, "/voter/register/"+token) {
		t.Fatalf("unexpected registration url %q", mailer.sent[0].URL)
	}
}

func TestIssueInvitationReplacesPriorToken(t *testing.T) {
	svc, users, _ := newRegistrationFixture()
	invitedVoter(users, "v1", "jo@example.com", "oldtoken", time.Now().Add(time.Hour))

	token, err := svc.IssueInvitation(context.Background(), "v1")
	if err != nil {
		t.Fatalf("issue invitation: %v", err)
	}
	if token == "oldtoken" {
		t.Fatal("expected a fresh token")
	}
	if _, err := svc.VerifyToken(context.Background(), "oldtoken"); !errors.Is(err, apperr.ErrInvalidToken) {
		t.Fatalf("expected old token invalid, got %v", err)
	}
}

func TestIssueInvitationRejectsRegisteredUser(t *testing.T) {
	svc, users, _ := newRegistrationFixture()
	users.users["v1"] = models.User{
		ID:         "v1",
		Email:      "jo@example.com",
		Role:       models.UserRoleVoter,
		Registered: true,
		Active:     true,
	}

	if _, err := svc.IssueInvitation(context.Background(), "v1"); apperr.KindOf(err) != apperr.KindInvalid {
		t.Fatalf("expected invalid, got %v", err)
	}
}

func TestIssueInvitationRejectsAdmin(t *testing.T) {
	svc, users, _ := newRegistrationFixture()
	users.users["a1"] = models.User{ID: "a1", Email: "admin@example.com", Role: models.UserRoleAdmin}

	if _, err := svc.IssueInvitation(context.Background(), "a1"); apperr.KindOf(err) != apperr.KindInvalid {
		t.Fatalf("expected invalid, got %v", err)
	}
}

func TestVerifyTokenClassification(t *testing.T) {
	svc, users, _ := newRegistrationFixture()
	invitedVoter(users, "fresh", "fresh@example.com", "freshtoken", time.Now().Add(time.Hour))
	invitedVoter(users, "stale", "stale@example.com", "staletoken", time.Now().Add(-time.Hour))

	done := users.users["fresh"]
	done.ID = "done"
	done.Email = "done@example.com"
	doneToken := "donetoken"
	done.InviteToken = &doneToken
	done.Registered = true
	users.users["done"] = done

	if user, err := svc.VerifyToken(context.Background(), "freshtoken"); err != nil || user.Email != "fresh@example.com" {
		t.Fatalf("expected fresh token valid, got %v / %v", user.Email, err)
	}
	if _, err := svc.VerifyToken(context.Background(), "staletoken"); !errors.Is(err, apperr.ErrExpiredToken) {
		t.Fatalf("expected expired, got %v", err)
	}
	if _, err := svc.VerifyToken(context.Background(), "donetoken"); !errors.Is(err, apperr.ErrAlreadyRegistered) {
		t.Fatalf("expected already registered, got %v", err)
	}
	if _, err := svc.VerifyToken(context.Background(), "unknown"); !errors.Is(err, apperr.ErrInvalidToken) {
		t.Fatalf("expected invalid, got %v", err)
	}
}

func TestRedeemRegistersVoterAndConsumesToken(t *testing.T) {
	svc, users, _ := newRegistrationFixture()
	invitedVoter(users, "v1", "jo@example.com", "tok", time.Now().Add(time.Hour))

	input := RedeemInput{
		Token:         "tok",
		Password:      "secret123",
		WalletAddress: "0xabc",
		FirstName:     "Joan",
	}
	voterID, err := svc.Redeem(context.Background(), input)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if voterID != "v1" {
		t.Fatalf("expected voter v1, got %q", voterID)
	}

	stored := users.users["v1"]
	if !stored.Registered {
		t.Fatal("expected voter registered")
	}
	if stored.InviteToken != nil {
		t.Fatal("expected token cleared")
	}
	if stored.WalletAddress == nil || *stored.WalletAddress != "0xabc" {
		t.Fatal("expected wallet stored")
	}
	if stored.FirstName != "Joan" {
		t.Fatalf("expected first name updated, got %q", stored.FirstName)
	}
	if stored.LastName != "Voter" {
		t.Fatalf("expected last name unchanged, got %q", stored.LastName)
	}
	if ok, _ := security.VerifyPassword("secret123", stored.PasswordHash); !ok {
		t.Fatal("expected stored hash to verify against the password")
	}

	// Second use of the same token must fail without touching the row.
	if _, err := svc.Redeem(context.Background(), input); !errors.Is(err, apperr.ErrInvalidToken) {
		t.Fatalf("expected second redemption invalid, got %v", err)
	}
}

func TestRedeemExpiredTokenDoesNotMutate(t *testing.T) {
	svc, users, _ := newRegistrationFixture()
	invitedVoter(users, "v1", "jo@example.com", "tok", time.Now().Add(-time.Minute))

	_, err := svc.Redeem(context.Background(), RedeemInput{
		Token:         "tok",
		Password:      "secret123",
		WalletAddress: "0xabc",
	})
	if !errors.Is(err, apperr.ErrExpiredToken) {
		t.Fatalf("expected expired, got %v", err)
	}

	stored := users.users["v1"]
	if stored.Registered || stored.PasswordHash != nil || stored.WalletAddress != nil {
		t.Fatal("expired redemption must not mutate the voter")
	}
	if stored.InviteToken == nil {
		t.Fatal("expired token must remain on the row")
	}
}

func TestRedeemRejectsWalletConflict(t *testing.T) {
	svc, users, _ := newRegistrationFixture()
	invitedVoter(users, "v1", "jo@example.com", "tok", time.Now().Add(time.Hour))

	wallet := "0xtaken"
	users.users["other"] = models.User{
		ID:            "other",
		Email:         "other@example.com",
		Role:          models.UserRoleVoter,
		WalletAddress: &wallet,
	}

	_, err := svc.Redeem(context.Background(), RedeemInput{
		Token:         "tok",
		Password:      "secret123",
		WalletAddress: "0xtaken",
	})
	if !errors.Is(err, apperr.ErrWalletConflict) {
		t.Fatalf("expected wallet conflict, got %v", err)
	}
	if users.users["v1"].Registered {
		t.Fatal("conflicting redemption must not register the voter")
	}
}

func TestRedeemRequiresAllFields(t *testing.T) {
	svc, _, _ := newRegistrationFixture()

	cases := []RedeemInput{
		{Password: "x", WalletAddress: "w"},
		{Token: "t", WalletAddress: "w"},
		{Token: "t", Password: "x"},
	}
	for _, input := range cases {
		if _, err := svc.Redeem(context.Background(), input); apperr.KindOf(err) != apperr.KindInvalid {
			t.Fatalf("expected invalid input for %+v, got %v", input, err)
		}
	}
}
