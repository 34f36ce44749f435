package service

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/driftlock/authd/internal/auth/domain"
	"github.com/driftlock/authd/internal/auth/notify"
	"github.com/driftlock/authd/internal/auth/store"
	"github.com/driftlock/authd/internal/auth/store/drivers/sqlite"
	"github.com/driftlock/authd/pkg/jwtx"
)

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

// captureSender records every delivered message so tests can read the
// code out of the rendered body.
type captureSender struct {
	mu       sync.Mutex
	messages []capturedMessage
	fail     bool
}

type capturedMessage struct {
	Channel     domain.Channel
	Destination string
	Body        string
}

func (s *captureSender) Send(_ context.Context, channel domain.Channel, destination string, msg notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return context.DeadlineExceeded
	}
	s.messages = append(s.messages, capturedMessage{
		Channel:     channel,
		Destination: destination,
		Body:        msg.Body,
	})
	return nil
}

func (s *captureSender) lastCode(t *testing.T) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.messages)
	code := codePattern.FindString(s.messages[len(s.messages)-1].Body)
	require.Len(t, code, 6)
	return code
}

func (s *captureSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

type testEnv struct {
	Store    store.Store
	Sender   *captureSender
	Tokens   *TokenService
	OTP      *OTPEngine
	TwoFA    *TwoFAService
	Accounts *AccountService
	Password *PasswordService
	Verify   *VerificationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	keys, err := jwtx.NewEphemeralKeypair("authd-test")
	require.NoError(t, err)

	sender := &captureSender{}
	otp := &OTPEngine{Store: st, Sender: sender}
	tokens := &TokenService{Keys: keys, Store: st}
	twofa := &TwoFAService{Store: st, OTP: otp, Issuer: "authd-test"}

	return &testEnv{
		Store:    st,
		Sender:   sender,
		Tokens:   tokens,
		OTP:      otp,
		TwoFA:    twofa,
		Accounts: &AccountService{Store: st, Tokens: tokens, OTP: otp, TwoFA: twofa},
		Password: &PasswordService{Store: st, OTP: otp},
		Verify:   &VerificationService{Store: st, OTP: otp},
	}
}

func ptr(v string) *string { return &v }

// register creates a verified-email account through the real flow and
// returns it.
func (e *testEnv) register(t *testing.T, email, password string) domain.Account {
	t.Helper()
	ctx := context.Background()

	account, _, err := e.Accounts.Register(ctx, RegisterInput{
		Email:    ptr(email),
		Password: password,
	})
	require.NoError(t, err)

	require.NoError(t, e.Verify.ConfirmEmail(ctx, account.ID, e.Sender.lastCode(t)))

	verified, err := e.Store.Accounts().GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	return verified
}

// expireChallenge rewrites a stored challenge so it is already expired,
// without waiting out the TTL.
func (e *testEnv) expireChallenge(t *testing.T, identifier string, purpose domain.Purpose) {
	t.Helper()
	ctx := context.Background()

	c, err := e.Store.Challenges().GetChallenge(ctx, identifier, purpose)
	require.NoError(t, err)
	c.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	require.NoError(t, e.Store.Challenges().ReplaceChallenge(ctx, c))
}
