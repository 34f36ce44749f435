package domain

import "time"

// Purpose partitions OTP challenges; there is at most one active challenge
// per (identifier, purpose) pair.
type Purpose string

const (
	PurposeEmailVerify   Purpose = "email_verify"
	PurposePhoneVerify   Purpose = "phone_verify"
	PurposePasswordReset Purpose = "password_reset"
	PurposeTwoFASetup    Purpose = "twofa_setup"
	PurposeTwoFALogin    Purpose = "twofa_login"
)

// Channel is the out-of-band delivery route for a one-time code.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Challenge is the stored OTP record. The code itself is never persisted,
// only its fingerprint.
type Challenge struct {
	ID         string
	Identifier string // email, or country code + phone
	Purpose    Purpose
	CodeHash   string
	Attempts   int
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

// Active reports whether the challenge can still be validated at t.
func (c Challenge) Active(t time.Time) bool {
	return c.ConsumedAt == nil && t.Before(c.ExpiresAt)
}

// OTPResult reports what GenerateAndSend did. Delivery failure is surfaced
// here rather than as an error because it does not roll back the challenge.
type OTPResult struct {
	ChallengeID string
	Channel     Channel
	Destination string
	ExpiresAt   time.Time
	Delivered   bool
}
