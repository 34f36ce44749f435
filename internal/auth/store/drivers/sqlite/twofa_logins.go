package sqlite

import (
	"context"
	"time"

	"github.com/driftlock/authd/internal/auth/domain"
	"github.com/driftlock/authd/internal/auth/store"
)

type twoFALoginsRepo struct {
	q querier
}

func (r *twoFALoginsRepo) CreateTwoFALogin(ctx context.Context, c domain.TwoFAChallenge) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO twofa_logins (id, account_id, method, attempts, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.AccountID, string(c.Method), c.Attempts, c.ExpiresAt, c.CreatedAt)
	return mapConstraint(err)
}

func (r *twoFALoginsRepo) GetTwoFALogin(ctx context.Context, id string) (domain.TwoFAChallenge, error) {
	var c domain.TwoFAChallenge
	err := r.q.QueryRowContext(ctx, `
		SELECT id, account_id, method, attempts, expires_at, created_at
		FROM twofa_logins
		WHERE id = ? AND expires_at > ?`,
		id, time.Now().UTC(),
	).Scan(&c.ID, &c.AccountID, &c.Method, &c.Attempts, &c.ExpiresAt, &c.CreatedAt)
	if err != nil {
		return domain.TwoFAChallenge{}, mapNotFound(err)
	}
	return c, nil
}

func (r *twoFALoginsRepo) IncrementTwoFALoginAttempts(ctx context.Context, id string) (int, error) {
	var attempts int
	err := r.q.QueryRowContext(ctx, `
		UPDATE twofa_logins
		SET attempts = attempts + 1
		WHERE id = ?
		RETURNING attempts`,
		id).Scan(&attempts)
	if err != nil {
		return 0, mapNotFound(err)
	}
	return attempts, nil
}

func (r *twoFALoginsRepo) DeleteTwoFALogin(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM twofa_logins WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *twoFALoginsRepo) DeleteExpiredTwoFALogins(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM twofa_logins WHERE expires_at <= ?`, time.Now().UTC())
	return err
}
