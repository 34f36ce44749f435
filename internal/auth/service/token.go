package service

import (
	"context"
	"errors"
	"time"

	"github.com/driftlock/authd/internal/auth/domain"
	"github.com/driftlock/authd/internal/auth/store"
	"github.com/driftlock/authd/pkg/jwtx"
)

// TokenService issues and verifies the signed token pairs. Revocation is
// entirely versioned: every token embeds the account's token_version at
// issue time and any bump invalidates the whole outstanding set at once.
type TokenService struct {
	Keys       *jwtx.Keypair
	Store      store.Store
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (s *TokenService) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return jwtx.DefaultAccessTokenTTL
}

func (s *TokenService) refreshTTL() time.Duration {
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return jwtx.DefaultRefreshTokenTTL
}

// Issue signs a fresh access/refresh pair bound to the account's current
// token version.
func (s *TokenService) Issue(accountID string, tokenVersion int64) (*domain.TokenPair, error) {
	now := time.Now().UTC()

	access, err := s.Keys.Sign(jwtx.NewClaims(accountID, tokenVersion, jwtx.TokenTypeAccess, s.Keys.Issuer(), s.accessTTL(), now))
	if err != nil {
		return nil, err
	}
	refresh, err := s.Keys.Sign(jwtx.NewClaims(accountID, tokenVersion, jwtx.TokenTypeRefresh, s.Keys.Issuer(), s.refreshTTL(), now))
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL().Seconds()),
	}, nil
}

// VerifyAccess validates an access token end to end: signature, expiry,
// type and token version against the live account row. Deleted accounts
// and stale versions both come back as ErrTokenRevoked.
func (s *TokenService) VerifyAccess(ctx context.Context, token string) (domain.Principal, error) {
	return s.verify(ctx, token, jwtx.TokenTypeAccess)
}

// Refresh rotates a refresh token into a brand-new pair. The old refresh
// token remains formally valid until expiry; rotation does not bump the
// version so other devices stay signed in.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	p, err := s.verify(ctx, refreshToken, jwtx.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	return s.Issue(p.AccountID, p.TokenVersion)
}

// InvalidateAll bumps the account's token version, revoking every token
// issued before the call.
func (s *TokenService) InvalidateAll(ctx context.Context, accountID string) error {
	_, err := s.Store.Accounts().IncrementTokenVersion(ctx, accountID)
	return err
}

func (s *TokenService) verify(ctx context.Context, token, tokenType string) (domain.Principal, error) {
	claims, err := s.Keys.VerifyTyped(token, tokenType)
	if err != nil {
		switch {
		case errors.Is(err, jwtx.ErrWrongTokenType):
			return domain.Principal{}, ErrWrongTokenUse
		case errors.Is(err, jwtx.ErrExpired):
			return domain.Principal{}, ErrTokenExpired
		default:
			return domain.Principal{}, ErrInvalidToken
		}
	}

	account, err := s.Store.Accounts().GetAccountByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Principal{}, ErrTokenRevoked
		}
		return domain.Principal{}, err
	}

	if claims.TokenVersion != account.TokenVersion {
		return domain.Principal{}, ErrTokenRevoked
	}

	return domain.Principal{
		AccountID:    account.ID,
		TokenVersion: account.TokenVersion,
	}, nil
}
