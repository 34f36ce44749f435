package store

import (
	"context"
	"errors"
	"time"

	"github.com/driftlock/authd/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrAlreadyConsumed is returned by ConsumeChallenge when the row was
	// consumed by a concurrent caller. Exactly one consume wins.
	ErrAlreadyConsumed = errors.New("store: challenge already consumed")
)

// Store is the root data access interface. Concrete drivers (sqlite today)
// implement this. Sub-repositories keep concerns tidy and let the service
// layer depend only on what it touches.
//
// The driver must guarantee atomic conditional updates: token version bumps,
// challenge consumption and pending-contact commits are all single
// conditional statements so concurrent requests for the same account
// serialize at the storage layer.
type Store interface {
	Accounts() Accounts
	Challenges() Challenges
	TwoFALogins() TwoFALogins

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, rolling back when fn returns
	// an error and committing otherwise. This is the recommended way to run
	// multi-step operations that must be atomic (e.g. rate check + challenge
	// supersede).
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds
// Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Accounts interface {
	// GetAccountByID returns an account by id.
	GetAccountByID(ctx context.Context, id string) (domain.Account, error)

	// GetAccountByEmail resolves the unique email identifier.
	GetAccountByEmail(ctx context.Context, email string) (domain.Account, error)

	// GetAccountByPhone resolves the compound (country code, phone) identifier.
	GetAccountByPhone(ctx context.Context, countryCode, phone string) (domain.Account, error)

	// GetAccountByProvider resolves a social-login link.
	GetAccountByProvider(ctx context.Context, provider, providerID string) (domain.Account, error)

	// CreateAccount inserts a new account (id is provided by the app via
	// ULID). Returns ErrAlreadyExists when email, phone or provider link is
	// already taken.
	CreateAccount(ctx context.Context, a domain.Account) error

	// UpdatePasswordHash sets the password hash and stamps
	// last_password_change_at.
	UpdatePasswordHash(ctx context.Context, accountID, newHash string) error

	// IncrementTokenVersion bumps token_version by exactly 1 and returns the
	// new value. This is the whole session-revocation mechanism.
	IncrementTokenVersion(ctx context.Context, accountID string) (int64, error)

	// MarkEmailVerified / MarkPhoneVerified flip the per-channel flag.
	MarkEmailVerified(ctx context.Context, accountID string) error
	MarkPhoneVerified(ctx context.Context, accountID string) error

	// StagePendingEmail stores the candidate new address without touching
	// the authoritative one.
	StagePendingEmail(ctx context.Context, accountID, email string) error

	// StagePendingPhone stores the candidate new number without touching
	// the authoritative one.
	StagePendingPhone(ctx context.Context, accountID, countryCode, phone string) error

	// CommitPendingEmail atomically swaps pending_email into email, marks it
	// verified and clears the staging column. ErrNotFound when nothing is
	// staged.
	CommitPendingEmail(ctx context.Context, accountID string) error

	// CommitPendingPhone is the phone mirror of CommitPendingEmail.
	CommitPendingPhone(ctx context.Context, accountID string) error

	// SetTwoFAPending records the chosen method (and TOTP secret, if any)
	// during setup, before 2FA is enabled.
	SetTwoFAPending(ctx context.Context, accountID string, method domain.TwoFAMethod, secret *string) error

	// EnableTwoFA stamps twofa_enabled. ErrNotFound when no setup is pending.
	EnableTwoFA(ctx context.Context, accountID string) error

	// DisableTwoFA clears the enabled stamp, method and secret.
	DisableTwoFA(ctx context.Context, accountID string) error

	// IncrementLoginAttempts bumps the failed-login counter and returns the
	// new value. ResetLoginAttempts zeroes it after a successful login.
	IncrementLoginAttempts(ctx context.Context, accountID string) (int, error)
	ResetLoginAttempts(ctx context.Context, accountID string) error
}

type Challenges interface {
	// ReplaceChallenge upserts the single challenge row for the
	// (identifier, purpose) key, superseding any prior challenge regardless
	// of its state.
	ReplaceChallenge(ctx context.Context, c domain.Challenge) error

	// GetChallenge returns the latest challenge for the key in any state;
	// the OTP engine decides between not-found, expired and consumed.
	GetChallenge(ctx context.Context, identifier string, purpose domain.Purpose) (domain.Challenge, error)

	// IncrementChallengeAttempts bumps the failed-attempt counter and
	// returns the new value.
	IncrementChallengeAttempts(ctx context.Context, challengeID string) (int, error)

	// ConsumeChallenge marks the challenge consumed at most once.
	// ErrAlreadyConsumed when a concurrent consume won the race.
	ConsumeChallenge(ctx context.Context, challengeID string, at time.Time) error

	// RecordOTPRequest logs a generate request for rate accounting.
	RecordOTPRequest(ctx context.Context, identifier string, at time.Time) error

	// CountOTPRequestsSince counts generate requests for the identifier in
	// the open window.
	CountOTPRequestsSince(ctx context.Context, identifier string, since time.Time) (int, error)

	// DeleteExpiredChallenges removes challenge rows past expiry and request
	// log rows older than before. Idempotent housekeeping.
	DeleteExpiredChallenges(ctx context.Context, before time.Time) error
}

type TwoFALogins interface {
	// CreateTwoFALogin stores a pending second login step.
	CreateTwoFALogin(ctx context.Context, c domain.TwoFAChallenge) error

	// GetTwoFALogin retrieves a pending login by reference, only if not
	// expired.
	GetTwoFALogin(ctx context.Context, id string) (domain.TwoFAChallenge, error)

	// IncrementTwoFALoginAttempts bumps the failed-attempt counter and
	// returns the new value.
	IncrementTwoFALoginAttempts(ctx context.Context, id string) (int, error)

	// DeleteTwoFALogin removes a pending login (after success or too many
	// failures).
	DeleteTwoFALogin(ctx context.Context, id string) error

	// DeleteExpiredTwoFALogins is housekeeping.
	DeleteExpiredTwoFALogins(ctx context.Context) error
}
