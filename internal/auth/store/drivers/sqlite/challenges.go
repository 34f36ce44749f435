package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/driftlock/authd/internal/auth/domain"
	"github.com/driftlock/authd/internal/auth/store"
)

type challengesRepo struct {
	q querier
}

func (r *challengesRepo) ReplaceChallenge(ctx context.Context, c domain.Challenge) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO otp_challenges (identifier, purpose, id, code_hash, attempts, expires_at, consumed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (identifier, purpose) DO UPDATE SET
			id = excluded.id,
			code_hash = excluded.code_hash,
			attempts = excluded.attempts,
			expires_at = excluded.expires_at,
			consumed_at = excluded.consumed_at,
			created_at = excluded.created_at`,
		c.Identifier, string(c.Purpose), c.ID, c.CodeHash, c.Attempts,
		c.ExpiresAt, mapOptionalTime(c.ConsumedAt), c.CreatedAt,
	)
	return err
}

func (r *challengesRepo) GetChallenge(ctx context.Context, identifier string, purpose domain.Purpose) (domain.Challenge, error) {
	var (
		c        domain.Challenge
		consumed sql.NullTime
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT identifier, purpose, id, code_hash, attempts, expires_at, consumed_at, created_at
		FROM otp_challenges
		WHERE identifier = ? AND purpose = ?`,
		identifier, string(purpose),
	).Scan(&c.Identifier, &c.Purpose, &c.ID, &c.CodeHash, &c.Attempts, &c.ExpiresAt, &consumed, &c.CreatedAt)
	if err != nil {
		return domain.Challenge{}, mapNotFound(err)
	}
	c.ConsumedAt = mapNullTimePtr(consumed)
	return c, nil
}

func (r *challengesRepo) IncrementChallengeAttempts(ctx context.Context, challengeID string) (int, error) {
	var attempts int
	err := r.q.QueryRowContext(ctx, `
		UPDATE otp_challenges
		SET attempts = attempts + 1
		WHERE id = ?
		RETURNING attempts`,
		challengeID).Scan(&attempts)
	if err != nil {
		return 0, mapNotFound(err)
	}
	return attempts, nil
}

func (r *challengesRepo) ConsumeChallenge(ctx context.Context, challengeID string, at time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE otp_challenges
		SET consumed_at = ?
		WHERE id = ? AND consumed_at IS NULL`,
		at.UTC(), challengeID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrAlreadyConsumed
	}
	return nil
}

func (r *challengesRepo) RecordOTPRequest(ctx context.Context, identifier string, at time.Time) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO otp_requests (identifier, requested_at) VALUES (?, ?)`,
		identifier, at.UTC())
	return err
}

func (r *challengesRepo) CountOTPRequestsSince(ctx context.Context, identifier string, since time.Time) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM otp_requests WHERE identifier = ? AND requested_at > ?`,
		identifier, since.UTC()).Scan(&n)
	return n, err
}

func (r *challengesRepo) DeleteExpiredChallenges(ctx context.Context, before time.Time) error {
	before = before.UTC()
	if _, err := r.q.ExecContext(ctx,
		`DELETE FROM otp_challenges WHERE expires_at < ?`, before); err != nil {
		return err
	}
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM otp_requests WHERE requested_at < ?`, before)
	return err
}
