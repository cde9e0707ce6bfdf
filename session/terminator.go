package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/halftrip/cachepurge"
)

// ErrNoSession is returned by SignOutEverywhere when no valid access token is given.
var ErrNoSession = errors.New("no authenticated session")

// TokenStore revokes refresh tokens. *TokenRepository implements it.
type TokenStore interface {
	DeleteByToken(ctx context.Context, token string) (int64, error)
	DeleteByUserID(ctx context.Context, userID string) (int64, error)
}

// Terminator ends sessions at the authentication provider.
type Terminator struct {
	tokens TokenStore
	secret string
	logger cachepurge.Logger
}

// NewTerminator builds a Terminator. secret verifies access tokens for attribution.
func NewTerminator(tokens TokenStore, secret string, logger cachepurge.Logger) *Terminator {
	if logger == nil {
		logger = cachepurge.NopLogger()
	}
	return &Terminator{tokens: tokens, secret: secret, logger: logger}
}

// SignOut revokes one refresh token. An empty or unknown token is already signed out.
func (t *Terminator) SignOut(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	n, err := t.tokens.DeleteByToken(ctx, refreshToken)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	t.logger.Info("session revoked", cachepurge.Field{Key: "tokens", Value: n})
	return nil
}

// SignOutEverywhere revokes every refresh token of the access token's subject.
func (t *Terminator) SignOutEverywhere(ctx context.Context, accessToken string) error {
	subject, err := t.Subject(accessToken)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	n, err := t.tokens.DeleteByUserID(ctx, subject)
	if err != nil {
		return fmt.Errorf("revoke sessions of %s: %w", subject, err)
	}
	t.logger.Info("all sessions revoked", cachepurge.Field{Key: "user", Value: subject}, cachepurge.Field{Key: "tokens", Value: n})
	return nil
}

// Subject returns the user id of a valid access token.
func (t *Terminator) Subject(accessToken string) (string, error) {
	if accessToken == "" {
		return "", ErrNoSession
	}
	claims, err := ParseAccessToken(accessToken, t.secret)
	if err != nil {
		return "", err
	}
	if claims.UserID != "" {
		return claims.UserID, nil
	}
	return claims.Subject, nil
}

// Action binds SignOut to a refresh token for use with cachepurge.Guard.
func (t *Terminator) Action(refreshToken string) cachepurge.Action {
	return func(ctx context.Context) error {
		return t.SignOut(ctx, refreshToken)
	}
}
