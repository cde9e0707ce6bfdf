package cli

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/halftrip/cachepurge"
	"github.com/halftrip/cachepurge/internal/appconfig"
	"github.com/halftrip/cachepurge/session"
)

// errNoAuthDatabase is the sign-out error when no auth database is configured.
var errNoAuthDatabase = errors.New("auth.databaseDSN is not configured")

// NewSignOutCommand purges and then revokes a refresh token at the auth database.
func NewSignOutCommand(root *RootOptions) *cobra.Command {
	var refreshToken string
	cmd := &cobra.Command{
		Use:   "signout",
		Short: "Purge local stores, then revoke a refresh token",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(root, nil)
			if err != nil {
				return err
			}
			defer e.Close()
			auth := newProviderAuth(e.cfg.Auth, e.logger)
			defer auth.Close()

			out := e.app.Guard.SecureTransition(cmd.Context(), func(ctx context.Context) error {
				return auth.SignOut(ctx, refreshToken)
			})
			if err := writeResult(cmd.OutOrStdout(), root.Format, out.Purge); err != nil {
				return err
			}
			if out.Err != nil {
				return WrapExitError(ExitFailure, "sign-out failed", out.Err)
			}
			if root.Format == "text" {
				fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&refreshToken, "refresh-token", "", "refresh token to revoke")
	_ = cmd.MarkFlagRequired("refresh-token")
	return cmd
}

// providerAuth revokes refresh tokens in the auth database. It connects on first use,
// so an unreachable provider fails the sign-out after the purge instead of preventing it.
type providerAuth struct {
	dsn    string
	secret string
	logger cachepurge.Logger

	mu    sync.Mutex
	term  *session.Terminator
	close func() error
}

func newProviderAuth(cfg appconfig.Auth, logger cachepurge.Logger) *providerAuth {
	return &providerAuth{dsn: cfg.DatabaseDSN, secret: cfg.JWTSecret, logger: logger}
}

// SignOut implements httpapi.SignOuter.
func (p *providerAuth) SignOut(ctx context.Context, refreshToken string) error {
	term, err := p.terminator()
	if err != nil {
		return err
	}
	return term.SignOut(ctx, refreshToken)
}

func (p *providerAuth) terminator() (*session.Terminator, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.term != nil {
		return p.term, nil
	}
	if p.dsn == "" {
		return nil, errNoAuthDatabase
	}
	db, err := session.OpenPostgres(p.dsn)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	p.close = sqlDB.Close
	p.term = session.NewTerminator(session.NewTokenRepository(db), p.secret, p.logger)
	return p.term, nil
}

// Close releases the database connection if one was opened.
func (p *providerAuth) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.close == nil {
		return nil
	}
	err := p.close()
	p.close, p.term = nil, nil
	return err
}
