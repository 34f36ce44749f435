package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"github.com/driftlock/authd/internal/auth/domain"
	"github.com/driftlock/authd/internal/auth/notify"
	"github.com/driftlock/authd/internal/auth/obs"
	"github.com/driftlock/authd/internal/auth/store"
	"github.com/driftlock/authd/pkg/cryptox"
	"github.com/driftlock/authd/pkg/idx"
	"github.com/driftlock/authd/pkg/slogx"
)

const (
	// DefaultOTPLength is the number of digits in a generated code.
	DefaultOTPLength = 6

	// DefaultOTPTTL is how long a code stays valid.
	DefaultOTPTTL = 10 * time.Minute

	// MaxOTPAttempts is the failed-validation ceiling per challenge.
	MaxOTPAttempts = 5

	// DefaultOTPRequestLimit and DefaultOTPRequestWindow bound how often
	// codes may be generated per identifier.
	DefaultOTPRequestLimit  = 3
	DefaultOTPRequestWindow = 5 * time.Minute

	// DefaultSendTimeout bounds a single delivery attempt so a slow
	// provider cannot stall the request.
	DefaultSendTimeout = 5 * time.Second
)

// OTPEngine generates, delivers and validates one-time codes. One active
// challenge per (identifier, purpose): generating again supersedes the old
// code regardless of its state.
type OTPEngine struct {
	Store  store.Store
	Sender notify.Sender

	TTL           time.Duration
	CodeLength    int
	RequestLimit  int
	RequestWindow time.Duration
	SendTimeout   time.Duration
}

func (e *OTPEngine) ttl() time.Duration {
	if e.TTL > 0 {
		return e.TTL
	}
	return DefaultOTPTTL
}

func (e *OTPEngine) codeLength() int {
	if e.CodeLength > 0 {
		return e.CodeLength
	}
	return DefaultOTPLength
}

func (e *OTPEngine) requestLimit() int {
	if e.RequestLimit > 0 {
		return e.RequestLimit
	}
	return DefaultOTPRequestLimit
}

func (e *OTPEngine) requestWindow() time.Duration {
	if e.RequestWindow > 0 {
		return e.RequestWindow
	}
	return DefaultOTPRequestWindow
}

func (e *OTPEngine) sendTimeout() time.Duration {
	if e.SendTimeout > 0 {
		return e.SendTimeout
	}
	return DefaultSendTimeout
}

// GenerateAndSend mints a code for (identifier, purpose), persists its
// fingerprint and dispatches it to destination. The rate check, request
// log append and challenge upsert happen in one transaction so concurrent
// generates cannot overshoot the window limit. Delivery failure is
// reported via the Delivered flag, not an error: the challenge stands and
// the client may ask for a resend.
func (e *OTPEngine) GenerateAndSend(ctx context.Context, identifier string, purpose domain.Purpose, channel domain.Channel, destination string) (domain.OTPResult, error) {
	l := slogx.FromContext(ctx)
	now := time.Now().UTC()

	code, err := cryptox.GenerateNumericCode(e.codeLength())
	if err != nil {
		return domain.OTPResult{}, err
	}

	challenge := domain.Challenge{
		ID:         idx.New().String(),
		Identifier: identifier,
		Purpose:    purpose,
		CodeHash:   cryptox.FingerprintToken(code),
		ExpiresAt:  now.Add(e.ttl()),
		CreatedAt:  now,
	}

	err = e.Store.WithTx(ctx, func(tx store.Tx) error {
		n, err := tx.Challenges().CountOTPRequestsSince(ctx, identifier, now.Add(-e.requestWindow()))
		if err != nil {
			return err
		}
		if n >= e.requestLimit() {
			return ErrTooManyRequests
		}
		if err := tx.Challenges().RecordOTPRequest(ctx, identifier, now); err != nil {
			return err
		}
		return tx.Challenges().ReplaceChallenge(ctx, challenge)
	})
	if err != nil {
		return domain.OTPResult{}, err
	}

	obs.ObserveOTPIssued(string(purpose))

	result := domain.OTPResult{
		ChallengeID: challenge.ID,
		Channel:     channel,
		Destination: destination,
		ExpiresAt:   challenge.ExpiresAt,
		Delivered:   true,
	}

	sendCtx, cancel := context.WithTimeout(ctx, e.sendTimeout())
	defer cancel()

	if err := e.Sender.Send(sendCtx, channel, destination, renderOTPMessage(purpose, code)); err != nil {
		l.Warn("otp delivery failed",
			slog.String("purpose", string(purpose)),
			slog.String("channel", string(channel)),
			slog.Any("error", err),
		)
		result.Delivered = false
	}

	return result, nil
}

// Validate checks a submitted code against the stored challenge and
// consumes it on success. A consumed or superseded code never validates
// again; too many wrong guesses burn the challenge.
func (e *OTPEngine) Validate(ctx context.Context, identifier string, purpose domain.Purpose, code string) error {
	now := time.Now().UTC()

	challenge, err := e.Store.Challenges().GetChallenge(ctx, identifier, purpose)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			obs.ObserveOTPValidated("not_found")
			return ErrOTPNotFound
		}
		return err
	}

	if challenge.ConsumedAt != nil {
		obs.ObserveOTPValidated("consumed")
		return ErrOTPConsumed
	}
	if !now.Before(challenge.ExpiresAt) {
		obs.ObserveOTPValidated("expired")
		return ErrOTPExpired
	}
	if challenge.Attempts >= MaxOTPAttempts {
		obs.ObserveOTPValidated("exhausted")
		return ErrTooManyAttempts
	}

	submitted := cryptox.FingerprintToken(code)
	if subtle.ConstantTimeCompare([]byte(submitted), []byte(challenge.CodeHash)) != 1 {
		attempts, err := e.Store.Challenges().IncrementChallengeAttempts(ctx, challenge.ID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if attempts >= MaxOTPAttempts {
			obs.ObserveOTPValidated("exhausted")
			return ErrTooManyAttempts
		}
		obs.ObserveOTPValidated("mismatch")
		return ErrOTPMismatch
	}

	if err := e.Store.Challenges().ConsumeChallenge(ctx, challenge.ID, now); err != nil {
		if errors.Is(err, store.ErrAlreadyConsumed) {
			obs.ObserveOTPValidated("consumed")
			return ErrOTPConsumed
		}
		return err
	}

	obs.ObserveOTPValidated("ok")
	return nil
}

// CleanupExpired drops challenges past expiry and request-log rows older
// than the rate window. Called by housekeeping.
func (e *OTPEngine) CleanupExpired(ctx context.Context) error {
	now := time.Now().UTC()
	return e.Store.Challenges().DeleteExpiredChallenges(ctx, now.Add(-e.requestWindow()))
}

func renderOTPMessage(purpose domain.Purpose, code string) notify.Message {
	switch purpose {
	case domain.PurposePasswordReset:
		return notify.Message{
			Subject: "Password reset code",
			Body:    "Your password reset code is " + code + ". If you did not request this, ignore this message.",
		}
	case domain.PurposeTwoFASetup, domain.PurposeTwoFALogin:
		return notify.Message{
			Subject: "Sign-in verification code",
			Body:    "Your sign-in verification code is " + code + ".",
		}
	default:
		return notify.Message{
			Subject: "Verification code",
			Body:    "Your verification code is " + code + ".",
		}
	}
}
