package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"civicvote/api/internal/apperr"
	"civicvote/api/internal/models"
	"civicvote/api/internal/security"
)

func newIdentityFixture() (*IdentityService, *fakeUserStore) {
	users := newFakeUserStore()
	return NewIdentityService(users, testConfig(), zerolog.Nop()), users
}

func registeredVoter(t *testing.T, users *fakeUserStore, id, email, password string) {
	t.Helper()
	hash, err := security.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	users.users[id] = models.User{
		ID:           id,
		Email:        email,
		PasswordHash: hash,
		Role:         models.UserRoleVoter,
		Registered:   true,
		Active:       true,
	}
}

func TestCreateSelfRegisteredUser(t *testing.T) {
	svc, users := newIdentityFixture()

	user, err := svc.Create(context.Background(), CreateUserInput{
		Email:     "  Jo@Example.COM ",
		Password:  "secret123",
		FirstName: "Jo",
		LastName:  "Admin",
		Role:      models.UserRoleAdmin,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if user.Email != "jo@example.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if !user.Registered || !user.Active {
		t.Fatal("credentialed user must start registered and active")
	}
	if user.Verified {
		t.Fatal("new user must not start verified")
	}
	if _, ok := users.users[user.ID]; !ok {
		t.Fatal("expected user persisted")
	}
}

func TestCreateWithoutPasswordStaysUnregistered(t *testing.T) {
	svc, _ := newIdentityFixture()

	user, err := svc.Create(context.Background(), CreateUserInput{
		Email:     "invitee@example.com",
		FirstName: "In",
		LastName:  "Vitee",
		Role:      models.UserRoleVoter,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if user.Registered {
		t.Fatal("voter without a credential must stay unregistered")
	}
	if user.PasswordHash != nil {
		t.Fatal("expected no password hash")
	}
}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	svc, _ := newIdentityFixture()

	input := CreateUserInput{
		Email:     "dup@example.com",
		Password:  "secret123",
		FirstName: "Du",
		LastName:  "Plicate",
		Role:      models.UserRoleVoter,
	}
	if _, err := svc.Create(context.Background(), input); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := svc.Create(context.Background(), input)
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestAuthenticateByCredential(t *testing.T) {
	svc, users := newIdentityFixture()
	registeredVoter(t, users, "v1", "jo@example.com", "secret123")

	result, err := svc.AuthenticateByCredential(context.Background(), "JO@example.com", "secret123")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if result.AccessToken == "" {
		t.Fatal("expected an access token")
	}
	if result.User.ID != "v1" {
		t.Fatalf("expected voter v1, got %q", result.User.ID)
	}
	if users.users["v1"].LastLoginAt == nil {
		t.Fatal("expected last login touched")
	}
}

func TestAuthenticateWrongPasswordAndUnknownEmailIndistinguishable(t *testing.T) {
	svc, users := newIdentityFixture()
	registeredVoter(t, users, "v1", "jo@example.com", "secret123")

	_, errWrong := svc.AuthenticateByCredential(context.Background(), "jo@example.com", "wrong")
	_, errUnknown := svc.AuthenticateByCredential(context.Background(), "ghost@example.com", "whatever")

	if !errors.Is(errWrong, apperr.ErrInvalidCredentials) || !errors.Is(errUnknown, apperr.ErrInvalidCredentials) {
		t.Fatalf("expected identical invalid-credentials errors, got %v and %v", errWrong, errUnknown)
	}
}

func TestAuthenticateUnregisteredVoterIsGated(t *testing.T) {
	svc, users := newIdentityFixture()
	users.users["v1"] = models.User{
		ID:     "v1",
		Email:  "invited@example.com",
		Role:   models.UserRoleVoter,
		Active: true,
	}

	_, err := svc.AuthenticateByCredential(context.Background(), "invited@example.com", "anything")
	if !errors.Is(err, apperr.ErrRegistrationIncomplete) {
		t.Fatalf("expected registration-incomplete gate, got %v", err)
	}
}

func TestAuthenticateDeactivatedAccount(t *testing.T) {
	svc, users := newIdentityFixture()
	registeredVoter(t, users, "v1", "jo@example.com", "secret123")
	u := users.users["v1"]
	u.Active = false
	users.users["v1"] = u

	_, err := svc.AuthenticateByCredential(context.Background(), "jo@example.com", "secret123")
	if !errors.Is(err, apperr.ErrAccountDeactivated) {
		t.Fatalf("expected deactivated, got %v", err)
	}
}

func TestAuthenticateByWallet(t *testing.T) {
	svc, users := newIdentityFixture()
	registeredVoter(t, users, "v1", "jo@example.com", "secret123")
	wallet := "0xabc"
	u := users.users["v1"]
	u.WalletAddress = &wallet
	users.users["v1"] = u

	result, err := svc.AuthenticateByWallet(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("wallet login: %v", err)
	}
	if result.User.ID != "v1" {
		t.Fatalf("expected voter v1, got %q", result.User.ID)
	}

	if _, err := svc.AuthenticateByWallet(context.Background(), "0xunknown"); apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Fatalf("expected unauthorized for unknown wallet, got %v", err)
	}
}

func TestUpdateProfileRotatesPassword(t *testing.T) {
	svc, users := newIdentityFixture()
	registeredVoter(t, users, "v1", "jo@example.com", "oldsecret")

	err := svc.UpdateProfile(context.Background(), "v1", UpdateProfileInput{
		CurrentPassword: "oldsecret",
		NewPassword:     "newsecret",
	})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if ok, _ := security.VerifyPassword("newsecret", users.users["v1"].PasswordHash); !ok {
		t.Fatal("expected new password to verify")
	}
	if ok, _ := security.VerifyPassword("oldsecret", users.users["v1"].PasswordHash); ok {
		t.Fatal("old password must no longer verify")
	}
}

func TestUpdateProfileRotationRules(t *testing.T) {
	svc, users := newIdentityFixture()
	registeredVoter(t, users, "v1", "jo@example.com", "oldsecret")

	err := svc.UpdateProfile(context.Background(), "v1", UpdateProfileInput{NewPassword: "newsecret"})
	if apperr.KindOf(err) != apperr.KindInvalid {
		t.Fatalf("rotation without current password must fail, got %v", err)
	}

	err = svc.UpdateProfile(context.Background(), "v1", UpdateProfileInput{
		CurrentPassword: "wrong",
		NewPassword:     "newsecret",
	})
	if !errors.Is(err, apperr.ErrCredentialMismatch) {
		t.Fatalf("expected credential mismatch, got %v", err)
	}

	err = svc.UpdateProfile(context.Background(), "v1", UpdateProfileInput{CurrentPassword: "oldsecret"})
	if apperr.KindOf(err) != apperr.KindInvalid {
		t.Fatalf("current password without new password must fail, got %v", err)
	}

	err = svc.UpdateProfile(context.Background(), "v1", UpdateProfileInput{})
	if apperr.KindOf(err) != apperr.KindInvalid {
		t.Fatalf("empty patch must fail, got %v", err)
	}
}

func TestSetVerifiedIgnoresNonVoters(t *testing.T) {
	svc, users := newIdentityFixture()
	users.users["v1"] = models.User{ID: "v1", Email: "v@example.com", Role: models.UserRoleVoter}
	users.users["a1"] = models.User{ID: "a1", Email: "a@example.com", Role: models.UserRoleAdmin}

	affected, err := svc.SetVerified(context.Background(), []string{"v1", "a1", "ghost"}, true)
	if err != nil {
		t.Fatalf("set verified: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected only the voter affected, got %d", affected)
	}
	if !users.users["v1"].Verified {
		t.Fatal("expected voter verified")
	}
	if users.users["a1"].Verified {
		t.Fatal("admin must be untouched")
	}
}
