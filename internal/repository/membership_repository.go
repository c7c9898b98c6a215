package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"civicvote/api/internal/models"
)

var (
	ErrNotEnrolled  = errors.New("voter not enrolled in session")
	ErrAlreadyVoted = errors.New("voter has already voted in session")
)

type MembershipRepository struct {
	pool *pgxpool.Pool
}

func NewMembershipRepository(pool *pgxpool.Pool) *MembershipRepository {
	return &MembershipRepository{pool: pool}
}

// Enroll inserts the (session, voter) pair. The primary key makes the
// insert race-safe: the conflict loser simply reports created=false.
func (r *MembershipRepository) Enroll(ctx context.Context, sessionID, voterID string) (bool, error) {
	const query = `
		INSERT INTO session_voters (session_id, voter_id, joined_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (session_id, voter_id) DO NOTHING
	`
	cmd, err := r.pool.Exec(ctx, query, sessionID, voterID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *MembershipRepository) Remove(ctx context.Context, sessionID string, voterIDs []string) (int64, error) {
	const query = `DELETE FROM session_voters WHERE session_id = $1 AND voter_id = ANY($2)`
	cmd, err := r.pool.Exec(ctx, query, sessionID, voterIDs)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// MarkVoted flips has_voted with a single conditional update. Of two
// concurrent casts the loser matches zero rows; the follow-up read
// decides whether that was a missing membership or a prior vote.
func (r *MembershipRepository) MarkVoted(ctx context.Context, sessionID, voterID string) error {
	const query = `
		UPDATE session_voters
		SET has_voted = TRUE, voted_at = NOW()
		WHERE session_id = $1 AND voter_id = $2 AND has_voted = FALSE
	`
	cmd, err := r.pool.Exec(ctx, query, sessionID, voterID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 1 {
		return nil
	}

	if _, err := r.Get(ctx, sessionID, voterID); err != nil {
		return err
	}
	return ErrAlreadyVoted
}

func (r *MembershipRepository) Get(ctx context.Context, sessionID, voterID string) (models.Membership, error) {
	const query = `
		SELECT session_id, voter_id, has_voted, voted_at, joined_at
		FROM session_voters
		WHERE session_id = $1 AND voter_id = $2
	`
	var m models.Membership
	if err := r.pool.QueryRow(ctx, query, sessionID, voterID).Scan(
		&m.SessionID,
		&m.VoterID,
		&m.HasVoted,
		&m.VotedAt,
		&m.JoinedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Membership{}, ErrNotEnrolled
		}
		return models.Membership{}, err
	}
	return m, nil
}

// ListForSession joins memberships with voter identity. Pure read; filters
// are ANDed and search matches name or email.
func (r *MembershipRepository) ListForSession(ctx context.Context, sessionID string, filter models.MembershipFilter) ([]models.MembershipView, int, error) {
	where := []string{`sv.session_id = $1`}
	args := []any{sessionID}

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
	if filter.Voted != nil {
		args = append(args, *filter.Voted)
		where = append(where, fmt.Sprintf(`sv.has_voted = $%d`, len(args)))
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := `
		SELECT COUNT(*)
		FROM session_voters sv
		JOIN users u ON sv.voter_id = u.id
		WHERE ` + whereClause
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)

	query := fmt.Sprintf(`
		SELECT sv.voter_id, u.email, u.first_name, u.last_name, u.wallet_address,
		       u.is_registered, u.is_verified, u.is_active,
		       sv.has_voted, sv.voted_at, sv.joined_at
		FROM session_voters sv
		JOIN users u ON sv.voter_id = u.id
		WHERE %s
		ORDER BY u.last_name, u.first_name
		LIMIT $%d OFFSET $%d
	`, whereClause, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var views []models.MembershipView
	for rows.Next() {
		var v models.MembershipView
		if err := rows.Scan(
			&v.VoterID,
			&v.Email,
			&v.FirstName,
			&v.LastName,
			&v.WalletAddress,
			&v.Registered,
			&v.Verified,
			&v.Active,
			&v.HasVoted,
			&v.VotedAt,
			&v.JoinedAt,
		); err != nil {
			return nil, 0, err
		}
		views = append(views, v)
	}
	return views, total, rows.Err()
}
