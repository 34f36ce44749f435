package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/driftlock/authd/internal/auth/domain"
	"github.com/driftlock/authd/internal/auth/store"
)

type accountsRepo struct {
	q querier
}

const accountColumns = `id, email, phone, country_code,
	pending_email, pending_phone, pending_country_code,
	password_hash, email_verified, phone_verified, token_version,
	twofa_enabled, twofa_method, twofa_secret,
	login_attempts, last_password_change_at,
	provider, provider_id, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (domain.Account, error) {
	var (
		a                        domain.Account
		email, phone, cc         sql.NullString
		pEmail, pPhone, pCC      sql.NullString
		passwordHash             sql.NullString
		twofaEnabled             sql.NullTime
		twofaMethod, twofaSecret sql.NullString
		lastPasswordChange       sql.NullTime
		provider, providerID     sql.NullString
	)

	err := row.Scan(
		&a.ID, &email, &phone, &cc,
		&pEmail, &pPhone, &pCC,
		&passwordHash, &a.EmailVerified, &a.PhoneVerified, &a.TokenVersion,
		&twofaEnabled, &twofaMethod, &twofaSecret,
		&a.LoginAttempts, &lastPasswordChange,
		&provider, &providerID, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}

	a.Email = mapNullStringPtr(email)
	a.Phone = mapNullStringPtr(phone)
	a.CountryCode = mapNullStringPtr(cc)
	a.PendingEmail = mapNullStringPtr(pEmail)
	a.PendingPhone = mapNullStringPtr(pPhone)
	a.PendingCountryCode = mapNullStringPtr(pCC)
	a.PasswordHash = mapNullStringPtr(passwordHash)
	a.TwoFAEnabled = mapNullTimePtr(twofaEnabled)
	a.TwoFASecret = mapNullStringPtr(twofaSecret)
	a.LastPasswordChangeAt = mapNullTimePtr(lastPasswordChange)
	a.Provider = mapNullStringPtr(provider)
	a.ProviderID = mapNullStringPtr(providerID)

	if twofaMethod.Valid {
		m := domain.TwoFAMethod(twofaMethod.String)
		a.TwoFAMethod = &m
	}

	return a, nil
}

func (r *accountsRepo) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	return scanAccount(r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
}

func (r *accountsRepo) GetAccountByEmail(ctx context.Context, email string) (domain.Account, error) {
	return scanAccount(r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = ?`, email))
}

func (r *accountsRepo) GetAccountByPhone(ctx context.Context, countryCode, phone string) (domain.Account, error) {
	return scanAccount(r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE country_code = ? AND phone = ?`,
		countryCode, phone))
}

func (r *accountsRepo) GetAccountByProvider(ctx context.Context, provider, providerID string) (domain.Account, error) {
	return scanAccount(r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE provider = ? AND provider_id = ?`,
		provider, providerID))
}

func (r *accountsRepo) CreateAccount(ctx context.Context, a domain.Account) error {
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = now
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO accounts (
			id, email, phone, country_code,
			pending_email, pending_phone, pending_country_code,
			password_hash, email_verified, phone_verified, token_version,
			twofa_enabled, twofa_method, twofa_secret,
			login_attempts, last_password_change_at,
			provider, provider_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, mapOptionalString(a.Email), mapOptionalString(a.Phone), mapOptionalString(a.CountryCode),
		mapOptionalString(a.PendingEmail), mapOptionalString(a.PendingPhone), mapOptionalString(a.PendingCountryCode),
		mapOptionalString(a.PasswordHash), a.EmailVerified, a.PhoneVerified, a.TokenVersion,
		mapOptionalTime(a.TwoFAEnabled), mapOptionalMethod(a.TwoFAMethod), mapOptionalString(a.TwoFASecret),
		a.LoginAttempts, mapOptionalTime(a.LastPasswordChangeAt),
		mapOptionalString(a.Provider), mapOptionalString(a.ProviderID), a.CreatedAt, a.UpdatedAt,
	)
	return mapConstraint(err)
}

func (r *accountsRepo) UpdatePasswordHash(ctx context.Context, accountID, newHash string) error {
	now := time.Now().UTC()
	res, err := r.q.ExecContext(ctx, `
		UPDATE accounts
		SET password_hash = ?, last_password_change_at = ?, updated_at = ?
		WHERE id = ?`,
		newHash, now, now, accountID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *accountsRepo) IncrementTokenVersion(ctx context.Context, accountID string) (int64, error) {
	var version int64
	err := r.q.QueryRowContext(ctx, `
		UPDATE accounts
		SET token_version = token_version + 1, updated_at = ?
		WHERE id = ?
		RETURNING token_version`,
		time.Now().UTC(), accountID).Scan(&version)
	if err != nil {
		return 0, mapNotFound(err)
	}
	return version, nil
}

func (r *accountsRepo) MarkEmailVerified(ctx context.Context, accountID string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE accounts SET email_verified = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), accountID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *accountsRepo) MarkPhoneVerified(ctx context.Context, accountID string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE accounts SET phone_verified = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), accountID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *accountsRepo) StagePendingEmail(ctx context.Context, accountID, email string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE accounts SET pending_email = ?, updated_at = ? WHERE id = ?`,
		email, time.Now().UTC(), accountID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *accountsRepo) StagePendingPhone(ctx context.Context, accountID, countryCode, phone string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE accounts SET pending_phone = ?, pending_country_code = ?, updated_at = ? WHERE id = ?`,
		phone, countryCode, time.Now().UTC(), accountID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *accountsRepo) CommitPendingEmail(ctx context.Context, accountID string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE accounts
		SET email = pending_email, email_verified = 1, pending_email = NULL, updated_at = ?
		WHERE id = ? AND pending_email IS NOT NULL`,
		time.Now().UTC(), accountID)
	if err != nil {
		return mapConstraint(err)
	}
	return requireRow(res)
}

func (r *accountsRepo) CommitPendingPhone(ctx context.Context, accountID string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE accounts
		SET phone = pending_phone, country_code = pending_country_code, phone_verified = 1,
		    pending_phone = NULL, pending_country_code = NULL, updated_at = ?
		WHERE id = ? AND pending_phone IS NOT NULL`,
		time.Now().UTC(), accountID)
	if err != nil {
		return mapConstraint(err)
	}
	return requireRow(res)
}

func (r *accountsRepo) SetTwoFAPending(ctx context.Context, accountID string, method domain.TwoFAMethod, secret *string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE accounts SET twofa_method = ?, twofa_secret = ?, updated_at = ? WHERE id = ?`,
		string(method), mapOptionalString(secret), time.Now().UTC(), accountID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *accountsRepo) EnableTwoFA(ctx context.Context, accountID string) error {
	now := time.Now().UTC()
	res, err := r.q.ExecContext(ctx, `
		UPDATE accounts
		SET twofa_enabled = ?, updated_at = ?
		WHERE id = ? AND twofa_method IS NOT NULL`,
		now, now, accountID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *accountsRepo) DisableTwoFA(ctx context.Context, accountID string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE accounts
		SET twofa_enabled = NULL, twofa_method = NULL, twofa_secret = NULL, updated_at = ?
		WHERE id = ?`,
		time.Now().UTC(), accountID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *accountsRepo) IncrementLoginAttempts(ctx context.Context, accountID string) (int, error) {
	var attempts int
	err := r.q.QueryRowContext(ctx, `
		UPDATE accounts
		SET login_attempts = login_attempts + 1, updated_at = ?
		WHERE id = ?
		RETURNING login_attempts`,
		time.Now().UTC(), accountID).Scan(&attempts)
	if err != nil {
		return 0, mapNotFound(err)
	}
	return attempts, nil
}

func (r *accountsRepo) ResetLoginAttempts(ctx context.Context, accountID string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE accounts SET login_attempts = 0, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), accountID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
