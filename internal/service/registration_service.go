package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"civicvote/api/internal/apperr"
	"civicvote/api/internal/config"
	"civicvote/api/internal/models"
	"civicvote/api/internal/repository"
	"civicvote/api/internal/security"
)

// RegistrationService runs the invitation protocol:
// NoToken -> Invited(token, expiry) -> Registered. A registered voter can
// never re-enter the invited state through this path.
type RegistrationService struct {
	users  UserStore
	mailer InvitationMailer
	cfg    *config.AppConfig
	log    zerolog.Logger
}

func NewRegistrationService(users UserStore, mailer InvitationMailer, cfg *config.AppConfig, log zerolog.Logger) *RegistrationService {
	return &RegistrationService{users: users, mailer: mailer, cfg: cfg, log: log}
}

// IssueInvitation generates a fresh single-use token for an unregistered
// voter, discarding any prior one, and emails the registration link.
// Email failure does not roll back the issuance.
func (s *RegistrationService) IssueInvitation(ctx context.Context, voterID string) (string, error) {
	user, err := s.users.GetByID(ctx, voterID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", apperr.New(apperr.KindNotFound, "voter not found")
		}
		return "", apperr.Wrap(apperr.KindInternal, "get voter", err)
	}
	if user.Role != models.UserRoleVoter {
		return "", apperr.New(apperr.KindInvalid, "only voters can be invited")
	}
	if user.Registered {
		return "", apperr.New(apperr.KindInvalid, "user is already registered")
	}

	token, err := security.GenerateInviteToken()
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "generate token", err)
	}

	expires := time.Now().Add(s.cfg.Registration.TokenTTL)
	if err := s.users.SetInvitation(ctx, voterID, token, expires); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", apperr.New(apperr.KindNotFound, "voter not found")
		}
		return "", apperr.Wrap(apperr.KindInternal, "store invitation", err)
	}

	s.DeliverInvitation(user, token)
	return token, nil
}

// DeliverInvitation sends the registration link. Exposed for the
// enrollment reconciler, which creates invited voters in bulk with the
// token already attached.
func (s *RegistrationService) DeliverInvitation(user models.User, token string) {
	url := fmt.Sprintf("%s/voter/register/%s",
		strings.TrimRight(s.cfg.Registration.FrontendURL, "/"), token)
	if err := s.mailer.SendInvitation(user.Email, user.FirstName, user.LastName, url); err != nil {
		s.log.Warn().Err(err).Str("email", user.Email).Msg("send invitation email failed")
	}
}

// VerifyToken is the read-only preview used by the registration form: it
// reports who the token belongs to without consuming it.
func (s *RegistrationService) VerifyToken(ctx context.Context, token string) (models.User, error) {
	user, err := s.users.FindByInviteToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, apperr.ErrInvalidToken
		}
		return models.User{}, apperr.Wrap(apperr.KindInternal, "find token", err)
	}
	if user.InviteExpires == nil || time.Now().After(*user.InviteExpires) {
		return models.User{}, apperr.ErrExpiredToken
	}
	if user.Registered {
		return models.User{}, apperr.ErrAlreadyRegistered
	}
	return user, nil
}

type RedeemInput struct {
	Token         string
	Password      string
	WalletAddress string
	FirstName     string
	LastName      string
}

// Redeem consumes an invitation token: it hashes the new secret, stores
// the wallet address, flips the voter to registered and clears the token,
// all in one conditional update. The classification reads before it only
// shape the user-facing message; the update is what decides the race.
func (s *RegistrationService) Redeem(ctx context.Context, input RedeemInput) (string, error) {
	if input.Token == "" || input.Password == "" || input.WalletAddress == "" {
		return "", apperr.New(apperr.KindInvalid, "token, password, and wallet address are required")
	}

	user, err := s.VerifyToken(ctx, input.Token)
	if err != nil {
		return "", err
	}

	wallet := strings.TrimSpace(input.WalletAddress)
	if other, err := s.users.FindByWallet(ctx, wallet); err == nil && other.ID != user.ID {
		return "", apperr.ErrWalletConflict
	} else if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return "", apperr.Wrap(apperr.KindInternal, "check wallet", err)
	}

	hash, err := security.HashPassword(input.Password)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "hash password", err)
	}

	var firstName, lastName *string
	if v := strings.TrimSpace(input.FirstName); v != "" {
		firstName = &v
	}
	if v := strings.TrimSpace(input.LastName); v != "" {
		lastName = &v
	}

	err = s.users.Redeem(ctx, input.Token, hash, wallet, firstName, lastName)
	switch {
	case err == nil:
		return user.ID, nil
	case errors.Is(err, repository.ErrNothingToRedeem):
		// Lost a concurrent redemption, or expired between the read and
		// the update. Either way the token no longer redeems.
		return "", apperr.ErrInvalidToken
	case errors.Is(err, repository.ErrDuplicateWallet):
		return "", apperr.ErrWalletConflict
	default:
		return "", apperr.Wrap(apperr.KindInternal, "redeem invitation", err)
	}
}
