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
	"civicvote/api/internal/ids"
	"civicvote/api/internal/models"
	"civicvote/api/internal/repository"
	"civicvote/api/internal/security"
)

// VoterRecord is one raw row from a bulk import, CSV or API body.
type VoterRecord struct {
	Email         string
	FirstName     string
	LastName      string
	WalletAddress string
}

// ReconcileReport is the deterministic outcome of one bulk merge.
type ReconcileReport struct {
	Processed int
	Added     int
	Existing  int
	Errors    []string
}

// EnrollmentService bulk-merges incoming voter lists into the identity
// store and session membership. Unknown emails become invited voters: no
// credential, a fresh invitation token, and an emailed registration link.
type EnrollmentService struct {
	users        UserStore
	memberships  MembershipStore
	elections    ElectionStore
	registration *RegistrationService
	cfg          *config.AppConfig
	log          zerolog.Logger
}

func NewEnrollmentService(
	users UserStore,
	memberships MembershipStore,
	elections ElectionStore,
	registration *RegistrationService,
	cfg *config.AppConfig,
	log zerolog.Logger,
) *EnrollmentService {
	return &EnrollmentService{
		users:        users,
		memberships:  memberships,
		elections:    elections,
		registration: registration,
		cfg:          cfg,
		log:          log,
	}
}

// Reconcile validates every record, then merges them into the target
// session. Validation is all-or-nothing: a single bad row rejects the
// whole batch before any mutation. The merge itself is per-row
// independent and idempotent at the membership level, so re-running the
// same file never duplicates memberships.
func (s *EnrollmentService) Reconcile(ctx context.Context, sessionID string, records []VoterRecord) (ReconcileReport, error) {
	if _, err := s.elections.GetByID(ctx, sessionID); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return ReconcileReport{}, apperr.New(apperr.KindNotFound, "voting session not found")
		}
		return ReconcileReport{}, apperr.Wrap(apperr.KindInternal, "get session", err)
	}

	normalized, rowErrors := validateRecords(records)
	if len(rowErrors) > 0 {
		return ReconcileReport{Errors: rowErrors}, apperr.New(apperr.KindInvalid, "voter list validation failed")
	}
	if len(normalized) == 0 {
		return ReconcileReport{}, apperr.ErrEmptyBatch
	}

	report := ReconcileReport{Processed: len(normalized)}
	for _, rec := range normalized {
		created, err := s.mergeRecord(ctx, sessionID, rec)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("failed to process %s: %v", rec.Email, err))
			continue
		}
		if created {
			report.Added++
		} else {
			report.Existing++
		}
	}
	return report, nil
}

// mergeRecord resolves the record to a voter id, creating an invited
// voter when the email is unknown, then enrolls it. The returned flag is
// whether a new membership was created.
func (s *EnrollmentService) mergeRecord(ctx context.Context, sessionID string, rec VoterRecord) (bool, error) {
	user, err := s.users.FindByEmail(ctx, rec.Email)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		user, err = s.createInvited(ctx, rec)
		if err != nil {
			return false, err
		}
	case err != nil:
		return false, err
	}

	return s.memberships.Enroll(ctx, sessionID, user.ID)
}

func (s *EnrollmentService) createInvited(ctx context.Context, rec VoterRecord) (models.User, error) {
	token, err := security.GenerateInviteToken()
	if err != nil {
		return models.User{}, err
	}
	expires := time.Now().Add(s.cfg.Registration.TokenTTL)

	user := models.User{
		ID:            ids.New(),
		Email:         rec.Email,
		FirstName:     rec.FirstName,
		LastName:      rec.LastName,
		Role:          models.UserRoleVoter,
		Active:        true,
		InviteToken:   &token,
		InviteExpires: &expires,
	}
	if rec.WalletAddress != "" {
		wallet := rec.WalletAddress
		user.WalletAddress = &wallet
	}

	err = s.users.Create(ctx, user)
	if errors.Is(err, repository.ErrDuplicateEmail) {
		// Lost a concurrent create for the same email; the winner's row
		// is the one to enroll.
		return s.users.FindByEmail(ctx, rec.Email)
	}
	if err != nil {
		return models.User{}, err
	}

	s.registration.DeliverInvitation(user, token)
	return user, nil
}

// validateRecords checks and normalizes every row. Row numbers in error
// messages start at 2: row 1 is the header line of the source file.
func validateRecords(records []VoterRecord) ([]VoterRecord, []string) {
	var (
		normalized []VoterRecord
		rowErrors  []string
	)

	for i, rec := range records {
		rowNumber := i + 2

		email := strings.TrimSpace(strings.ToLower(rec.Email))
		firstName := strings.TrimSpace(rec.FirstName)
		lastName := strings.TrimSpace(rec.LastName)
		wallet := strings.TrimSpace(rec.WalletAddress)

		if email == "" || firstName == "" || lastName == "" {
			rowErrors = append(rowErrors,
				fmt.Sprintf("Row %d: missing required fields (email, first_name, last_name)", rowNumber))
			continue
		}
		if !validEmail(email) {
			rowErrors = append(rowErrors, fmt.Sprintf("Row %d: invalid email format", rowNumber))
			continue
		}

		normalized = append(normalized, VoterRecord{
			Email:         email,
			FirstName:     firstName,
			LastName:      lastName,
			WalletAddress: wallet,
		})
	}
	return normalized, rowErrors
}

// validEmail checks the local@domain shape: exactly one @, a non-empty
// local part, and a dotted domain without whitespace.
func validEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at != strings.LastIndex(email, "@") {
		return false
	}
	local, domain := email[:at], email[at+1:]
	if local == "" || domain == "" {
		return false
	}
	if strings.ContainsAny(email, " \t") {
		return false
	}
	dot := strings.Index(domain, ".")
	return dot > 0 && dot < len(domain)-1
}
