package jobs

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// eventStream receives registration lifecycle events for downstream
// consumers (reminder mailers, audit sinks).
const eventStream = "registration:events"

// Scheduler runs periodic housekeeping: closing sessions whose end time
// has passed and emitting reminders for invitations about to expire.
type Scheduler struct {
	cron  *cron.Cron
	db    *pgxpool.Pool
	queue *redis.Client
	log   zerolog.Logger
}

func NewScheduler(db *pgxpool.Pool, queue *redis.Client, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:  c,
		db:    db,
		queue: queue,
		log:   log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 */10 * * * *", s.closeEndedSessions); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("0 0 9 * * *", s.enqueueExpiryReminders); err != nil { // daily at 09:00
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts the cron loop; running jobs finish on their own timeouts.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// closeEndedSessions flips the active flag on sessions past their end
// time. The flag is informational for listings; the eligibility gate
// already rejects votes outside the time window.
func (s *Scheduler) closeEndedSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const query = `
		UPDATE voting_sessions
		SET is_active = FALSE, updated_at = NOW()
		WHERE is_active = TRUE AND end_time < NOW()
	`
	cmd, err := s.db.Exec(ctx, query)
	if err != nil {
		s.log.Error().Err(err).Msg("session close sweep failed")
		return
	}
	if n := cmd.RowsAffected(); n > 0 {
		s.log.Info().Int64("closed", n).Msg("closed ended sessions")
	}
}

// enqueueExpiryReminders publishes an event per invitation expiring
// within the next 24 hours. Tokens are never cleared here: an expired
// token must stay on the row so redemption can report it as expired
// rather than unknown.
func (s *Scheduler) enqueueExpiryReminders() {
	if s.queue == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const query = `
		SELECT id, email
		FROM users
		WHERE is_registered = FALSE
		  AND registration_token IS NOT NULL
		  AND registration_token_expires > NOW()
		  AND registration_token_expires < NOW() + INTERVAL '24 hours'
	`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		s.log.Error().Err(err).Msg("expiry reminder query failed")
		return
	}
	defer rows.Close()

	for rows.Next() {
		var id, email string
		if err := rows.Scan(&id, &email); err != nil {
			s.log.Error().Err(err).Msg("expiry reminder scan failed")
			return
		}
		if err := s.enqueueEvent(ctx, map[string]any{
			"type":     "invitation_expiring",
			"voter_id": id,
			"email":    email,
		}); err != nil {
			s.log.Error().Err(err).Str("voter_id", id).Msg("enqueue reminder failed")
		}
	}
	if err := rows.Err(); err != nil {
		s.log.Error().Err(err).Msg("expiry reminder rows failed")
	}
}

func (s *Scheduler) enqueueEvent(ctx context.Context, payload map[string]any) error {
	if s.queue == nil {
		return nil
	}
	_, err := s.queue.XAdd(ctx, &redis.XAddArgs{
		Stream: eventStream,
		Values: payload,
	}).Result()
	return err
}
