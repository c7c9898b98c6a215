package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"civicvote/api/internal/apperr"
	"civicvote/api/internal/config"
	"civicvote/api/internal/ids"
	"civicvote/api/internal/models"
	"civicvote/api/internal/repository"
	"civicvote/api/internal/security"
)

// IdentityService owns the canonical user entity: creation, login,
// administrative flag toggles and credential rotation.
type IdentityService struct {
	users UserStore
	cfg   *config.AppConfig
	log   zerolog.Logger
}

func NewIdentityService(users UserStore, cfg *config.AppConfig, log zerolog.Logger) *IdentityService {
	return &IdentityService{users: users, cfg: cfg, log: log}
}

type CreateUserInput struct {
	Email         string
	Password      string // empty for invited voters
	FirstName     string
	LastName      string
	Role          models.UserRole
	WalletAddress *string
}

// Create adds a user. A non-empty password means the account is
// immediately registered (self-registration); without one the voter stays
// unregistered until the invitation protocol completes.
func (s *IdentityService) Create(ctx context.Context, input CreateUserInput) (models.User, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	if input.Email == "" {
		return models.User{}, apperr.New(apperr.KindInvalid, "email is required")
	}
	if input.Role != models.UserRoleAdmin && input.Role != models.UserRoleVoter {
		return models.User{}, apperr.New(apperr.KindInvalid, "invalid role")
	}

	user := models.User{
		ID:            ids.New(),
		Email:         input.Email,
		FirstName:     strings.TrimSpace(input.FirstName),
		LastName:      strings.TrimSpace(input.LastName),
		Role:          input.Role,
		WalletAddress: input.WalletAddress,
		Active:        true,
	}

	if input.Password != "" {
		hash, err := security.HashPassword(input.Password)
		if err != nil {
			return models.User{}, apperr.Wrap(apperr.KindInternal, "hash password", err)
		}
		user.PasswordHash = hash
		user.Registered = true
	}

	if err := s.users.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			return models.User{}, apperr.New(apperr.KindConflict, "user with this email already exists")
		case errors.Is(err, repository.ErrDuplicateWallet):
			return models.User{}, apperr.ErrWalletConflict
		default:
			return models.User{}, apperr.Wrap(apperr.KindInternal, "create user", err)
		}
	}
	return user, nil
}

// AuthResult is the session principal handed back to the transport layer.
type AuthResult struct {
	AccessToken string
	User        models.User
}

// AuthenticateByCredential logs a user in with email and password.
// Unknown email and wrong password are indistinguishable to the caller;
// an unregistered voter is told to complete registration before the
// secret is even checked, since no usable credential exists yet.
func (s *IdentityService) AuthenticateByCredential(ctx context.Context, email, secret string) (AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || secret == "" {
		return AuthResult{}, apperr.New(apperr.KindInvalid, "email and password are required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, apperr.ErrInvalidCredentials
		}
		return AuthResult{}, apperr.Wrap(apperr.KindInternal, "find user", err)
	}

	if !user.Registered {
		return AuthResult{}, apperr.ErrRegistrationIncomplete
	}
	if !user.Active {
		return AuthResult{}, apperr.ErrAccountDeactivated
	}

	ok, err := security.VerifyPassword(secret, user.PasswordHash)
	if err != nil || !ok {
		return AuthResult{}, apperr.ErrInvalidCredentials
	}

	return s.issue(ctx, user)
}

// AuthenticateByWallet logs a voter in by wallet address. Possession of
// the wallet is asserted by the caller's wallet-connection flow; this
// only enforces the registration and activity gates.
func (s *IdentityService) AuthenticateByWallet(ctx context.Context, wallet string) (AuthResult, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return AuthResult{}, apperr.New(apperr.KindInvalid, "wallet address is required")
	}

	user, err := s.users.FindByWallet(ctx, wallet)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, apperr.New(apperr.KindUnauthorized, "wallet address not found or not registered")
		}
		return AuthResult{}, apperr.Wrap(apperr.KindInternal, "find user", err)
	}

	if !user.Registered {
		return AuthResult{}, apperr.ErrRegistrationIncomplete
	}
	if !user.Active {
		return AuthResult{}, apperr.ErrAccountDeactivated
	}

	return s.issue(ctx, user)
}

func (s *IdentityService) issue(ctx context.Context, user models.User) (AuthResult, error) {
	token, err := security.GenerateAccessToken(
		s.cfg.Security.JWTSecret,
		user.ID,
		string(user.Role),
		s.cfg.Security.JWTAccessTTL,
	)
	if err != nil {
		return AuthResult{}, apperr.Wrap(apperr.KindInternal, "issue token", err)
	}

	if err := s.users.TouchLogin(ctx, user.ID); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("touch last login failed")
	}

	return AuthResult{AccessToken: token, User: user}, nil
}

// SetVerified bulk-toggles participation approval. Ids that are not
// voters are silently ignored.
func (s *IdentityService) SetVerified(ctx context.Context, voterIDs []string, verified bool) (int64, error) {
	if len(voterIDs) == 0 {
		return 0, apperr.New(apperr.KindInvalid, "voter ids are required")
	}
	affected, err := s.users.SetVerified(ctx, voterIDs, verified)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, "set verified", err)
	}
	return affected, nil
}

func (s *IdentityService) SetActive(ctx context.Context, voterID string, active bool) error {
	err := s.users.SetActive(ctx, voterID, active)
	if errors.Is(err, repository.ErrUserNotFound) {
		return apperr.New(apperr.KindNotFound, "voter not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "set active", err)
	}
	return nil
}

type UpdateProfileInput struct {
	FirstName       *string
	LastName        *string
	CurrentPassword string
	NewPassword     string
}

// UpdateProfile applies name changes and optionally rotates the
// credential. Rotation demands re-proof of the current secret.
func (s *IdentityService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) error {
	patch := models.UserPatch{
		FirstName: input.FirstName,
		LastName:  input.LastName,
	}

	if input.NewPassword != "" {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return apperr.New(apperr.KindNotFound, "user not found")
			}
			return apperr.Wrap(apperr.KindInternal, "get user", err)
		}

		if input.CurrentPassword == "" {
			return apperr.New(apperr.KindInvalid, "current password is required to set a new password")
		}
		ok, err := security.VerifyPassword(input.CurrentPassword, user.PasswordHash)
		if err != nil || !ok {
			return apperr.ErrCredentialMismatch
		}

		hash, err := security.HashPassword(input.NewPassword)
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, "hash password", err)
		}
		patch.PasswordHash = hash
	} else if input.CurrentPassword != "" {
		return apperr.New(apperr.KindInvalid, "new password is required when current password is given")
	}

	if patch.FirstName == nil && patch.LastName == nil && patch.PasswordHash == nil {
		return apperr.New(apperr.KindInvalid, "no fields to update")
	}

	if err := s.users.UpdateProfile(ctx, userID, patch); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apperr.New(apperr.KindNotFound, "user not found")
		}
		return apperr.Wrap(apperr.KindInternal, "update profile", err)
	}
	return nil
}

func (s *IdentityService) GetByID(ctx context.Context, userID string) (models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, apperr.New(apperr.KindNotFound, "user not found")
		}
		return models.User{}, apperr.Wrap(apperr.KindInternal, "get user", err)
	}
	return user, nil
}

// ListVoters is the admin management projection.
func (s *IdentityService) ListVoters(ctx context.Context, filter models.VoterFilter) ([]models.VoterSummary, int, error) {
	voters, total, err := s.users.ListVoters(ctx, filter)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.KindInternal, "list voters", err)
	}
	return voters, total, nil
}
