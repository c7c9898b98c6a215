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

var ErrSessionNotFound = errors.New("voting session not found")

const sessionColumns = `
	id, title, description, admin_id, start_time, end_time, is_active,
	created_at, updated_at
`

type ElectionRepository struct {
	pool *pgxpool.Pool
}

func NewElectionRepository(pool *pgxpool.Pool) *ElectionRepository {
	return &ElectionRepository{pool: pool}
}

func scanSession(row pgx.Row) (models.VotingSession, error) {
	var s models.VotingSession
	if err := row.Scan(
		&s.ID,
		&s.Title,
		&s.Description,
		&s.AdminID,
		&s.StartTime,
		&s.EndTime,
		&s.Active,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.VotingSession{}, ErrSessionNotFound
		}
		return models.VotingSession{}, err
	}
	return s, nil
}

func (r *ElectionRepository) Create(ctx context.Context, session models.VotingSession) error {
	const query = `
		INSERT INTO voting_sessions (
			id, title, description, admin_id, start_time, end_time, is_active,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, NOW(), NOW()
		)
	`
	_, err := r.pool.Exec(ctx, query,
		session.ID,
		session.Title,
		session.Description,
		session.AdminID,
		session.StartTime,
		session.EndTime,
		session.Active,
	)
	return err
}

func (r *ElectionRepository) GetByID(ctx context.Context, id string) (models.VotingSession, error) {
	query := `SELECT` + sessionColumns + `FROM voting_sessions WHERE id = $1`
	return scanSession(r.pool.QueryRow(ctx, query, id))
}

// Update applies the patch through a fixed set of column writers.
func (r *ElectionRepository) Update(ctx context.Context, id string, patch models.SessionPatch) error {
	const query = `
		UPDATE voting_sessions SET
			title = COALESCE($2, title),
			description = COALESCE($3, description),
			end_time = COALESCE($4, end_time),
			is_active = COALESCE($5, is_active),
			updated_at = NOW()
		WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, id, patch.Title, patch.Description, patch.EndTime, patch.Active)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ListByAdmin returns an admin's sessions with voter/vote counts.
func (r *ElectionRepository) ListByAdmin(ctx context.Context, adminID string, status models.SessionStatusFilter, limit, offset int) ([]models.SessionSummary, int, error) {
	where := []string{`vs.admin_id = $1`}
	args := []any{adminID}

	switch status {
	case models.SessionStatusActive:
		where = append(where, `vs.is_active = TRUE AND vs.end_time > NOW()`)
	case models.SessionStatusEnded:
		where = append(where, `vs.end_time <= NOW()`)
	case models.SessionStatusInactive:
		where = append(where, `vs.is_active = FALSE`)
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM voting_sessions vs WHERE ` + whereClause
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 10
	}
	args = append(args, limit, offset)

	query := fmt.Sprintf(`
		SELECT vs.id, vs.title, vs.description, vs.admin_id, vs.start_time,
		       vs.end_time, vs.is_active, vs.created_at, vs.updated_at,
		       COUNT(DISTINCT sv.voter_id) AS voter_count,
		       COUNT(DISTINCT CASE WHEN sv.has_voted THEN sv.voter_id END) AS votes_cast
		FROM voting_sessions vs
		LEFT JOIN session_voters sv ON vs.id = sv.session_id
		WHERE %s
		GROUP BY vs.id
		ORDER BY vs.created_at DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var sessions []models.SessionSummary
	for rows.Next() {
		var s models.SessionSummary
		if err := rows.Scan(
			&s.ID,
			&s.Title,
			&s.Description,
			&s.AdminID,
			&s.StartTime,
			&s.EndTime,
			&s.Active,
			&s.CreatedAt,
			&s.UpdatedAt,
			&s.VoterCount,
			&s.VotesCast,
		); err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, s)
	}
	return sessions, total, rows.Err()
}
