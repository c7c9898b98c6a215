package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"civicvote/api/internal/models"
)

var (
	ErrCandidateNotFound  = errors.New("candidate not found")
	ErrDuplicateCandidate = errors.New("candidate name already exists in session")
)

type CandidateRepository struct {
	pool *pgxpool.Pool
}

func NewCandidateRepository(pool *pgxpool.Pool) *CandidateRepository {
	return &CandidateRepository{pool: pool}
}

func (r *CandidateRepository) Create(ctx context.Context, c models.Candidate) error {
	const query = `
		INSERT INTO candidates (id, session_id, name, description, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`
	_, err := r.pool.Exec(ctx, query, c.ID, c.SessionID, c.Name, c.Description)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateCandidate
	}
	return err
}

func (r *CandidateRepository) ListBySession(ctx context.Context, sessionID string) ([]models.Candidate, error) {
	const query = `
		SELECT id, session_id, name, description, created_at
		FROM candidates
		WHERE session_id = $1
		ORDER BY name
	`
	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []models.Candidate
	for rows.Next() {
		var c models.Candidate
		if err := rows.Scan(&c.ID, &c.SessionID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

func (r *CandidateRepository) CountBySession(ctx context.Context, sessionID string) (int, error) {
	const query = `SELECT COUNT(*) FROM candidates WHERE session_id = $1`
	var count int
	if err := r.pool.QueryRow(ctx, query, sessionID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *CandidateRepository) Delete(ctx context.Context, sessionID, candidateID string) error {
	const query = `DELETE FROM candidates WHERE id = $1 AND session_id = $2`
	cmd, err := r.pool.Exec(ctx, query, candidateID, sessionID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrCandidateNotFound
	}
	return nil
}
