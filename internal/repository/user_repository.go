package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"civicvote/api/internal/models"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrDuplicateEmail  = errors.New("email already registered")
	ErrDuplicateWallet = errors.New("wallet address already registered")
	ErrNothingToRedeem = errors.New("no redeemable invitation")
)

const userColumns = `
	id, email, password_hash, first_name, last_name, role, wallet_address,
	is_registered, is_verified, is_active,
	registration_token, registration_token_expires, last_login,
	created_at, updated_at
`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Role,
		&user.WalletAddress,
		&user.Registered,
		&user.Verified,
		&user.Active,
		&user.InviteToken,
		&user.InviteExpires,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

// translateUnique maps unique-violation failures onto the sentinel for the
// column that lost the race. Anything else passes through untouched.
func translateUnique(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}
	switch {
	case strings.Contains(pgErr.ConstraintName, "email"):
		return ErrDuplicateEmail
	case strings.Contains(pgErr.ConstraintName, "wallet"):
		return ErrDuplicateWallet
	default:
		return err
	}
}

func (r *UserRepository) Create(ctx context.Context, user models.User) error {
	const query = `
		INSERT INTO users (
			id, email, password_hash, first_name, last_name, role, wallet_address,
			is_registered, is_verified, is_active,
			registration_token, registration_token_expires,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Role,
		user.WalletAddress,
		user.Registered,
		user.Verified,
		user.Active,
		user.InviteToken,
		user.InviteExpires,
	)
	return translateUnique(err)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	query := `SELECT` + userColumns + `FROM users WHERE email = LOWER($1)`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *UserRepository) FindByWallet(ctx context.Context, wallet string) (models.User, error) {
	query := `SELECT` + userColumns + `FROM users WHERE wallet_address = $1`
	return scanUser(r.pool.QueryRow(ctx, query, wallet))
}

func (r *UserRepository) FindByInviteToken(ctx context.Context, token string) (models.User, error) {
	query := `SELECT` + userColumns + `FROM users WHERE registration_token = $1 AND role = 'voter'`
	return scanUser(r.pool.QueryRow(ctx, query, token))
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	query := `SELECT` + userColumns + `FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// SetVerified bulk-toggles verification. Non-voter ids are silently
// ignored; the affected count is what the admin UI reports.
func (r *UserRepository) SetVerified(ctx context.Context, ids []string, verified bool) (int64, error) {
	const query = `
		UPDATE users SET is_verified = $2, updated_at = NOW()
		WHERE id = ANY($1) AND role = 'voter'
	`
	cmd, err := r.pool.Exec(ctx, query, ids, verified)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *UserRepository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `
		UPDATE users SET is_active = $2, updated_at = NOW()
		WHERE id = $1 AND role = 'voter'
	`
	cmd, err := r.pool.Exec(ctx, query, id, active)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetInvitation overwrites any prior unredeemed token.
func (r *UserRepository) SetInvitation(ctx context.Context, id string, token string, expires time.Time) error {
	const query = `
		UPDATE users
		SET registration_token = $2, registration_token_expires = $3, updated_at = NOW()
		WHERE id = $1 AND is_registered = FALSE
	`
	cmd, err := r.pool.Exec(ctx, query, id, token, expires)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Redeem is the single atomic transition of the registration protocol:
// the token must still match, be unexpired and unredeemed, and the same
// statement that flips is_registered clears it. Two concurrent
// redemptions race on this WHERE clause; the loser gets
// ErrNothingToRedeem.
func (r *UserRepository) Redeem(ctx context.Context, token string, hash []byte, wallet string, firstName, lastName *string) error {
	const query = `
		UPDATE users SET
			password_hash = $2,
			wallet_address = $3,
			first_name = COALESCE($4, first_name),
			last_name = COALESCE($5, last_name),
			is_registered = TRUE,
			registration_token = NULL,
			registration_token_expires = NULL,
			updated_at = NOW()
		WHERE registration_token = $1
		  AND is_registered = FALSE
		  AND registration_token_expires > NOW()
	`
	cmd, err := r.pool.Exec(ctx, query, token, hash, wallet, firstName, lastName)
	if err != nil {
		return translateUnique(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNothingToRedeem
	}
	return nil
}

// UpdateProfile applies the patch through a fixed set of column writers.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, patch models.UserPatch) error {
	const query = `
		UPDATE users SET
			first_name = COALESCE($2, first_name),
			last_name = COALESCE($3, last_name),
			password_hash = COALESCE($4, password_hash),
			updated_at = NOW()
		WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, id, patch.FirstName, patch.LastName, patch.PasswordHash)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) TouchLogin(ctx context.Context, id string) error {
	const query = `UPDATE users SET last_login = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

// ListVoters returns the admin projection with per-voter participation
// counts. Filters are ANDed; search matches name or email.
func (r *UserRepository) ListVoters(ctx context.Context, filter models.VoterFilter) ([]models.VoterSummary, int, error) {
	where := []string{`u.role = 'voter'`}
	args := []any{}

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			`(u.first_name ILIKE $%d OR u.last_name ILIKE $%d OR u.email ILIKE $%d)`, n, n, n))
	}
	if filter.Verified != nil {
		args = append(args, *filter.Verified)
		where = append(where, fmt.Sprintf(`u.is_verified = $%d`, len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		where = append(where, fmt.Sprintf(`u.is_active = $%d`, len(args)))
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM users u WHERE ` + whereClause
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	args = append(args, limit, filter.Offset)

	query := fmt.Sprintf(`
		SELECT u.id, u.email, u.first_name, u.last_name, u.wallet_address,
		       u.is_registered, u.is_verified, u.is_active, u.created_at,
		       COUNT(sv.session_id) AS session_count,
		       COUNT(CASE WHEN sv.has_voted THEN 1 END) AS votes_cast
		FROM users u
		LEFT JOIN session_voters sv ON u.id = sv.voter_id
		WHERE %s
		GROUP BY u.id
		ORDER BY u.created_at DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var voters []models.VoterSummary
	for rows.Next() {
		var v models.VoterSummary
		if err := rows.Scan(
			&v.ID,
			&v.Email,
			&v.FirstName,
			&v.LastName,
			&v.WalletAddress,
			&v.Registered,
			&v.Verified,
			&v.Active,
			&v.CreatedAt,
			&v.SessionCount,
			&v.VotesCast,
		); err != nil {
			return nil, 0, err
		}
		voters = append(voters, v)
	}
	return voters, total, rows.Err()
}
