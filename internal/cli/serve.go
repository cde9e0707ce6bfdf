package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/halftrip/cachepurge"
	"github.com/halftrip/cachepurge/httpapi"
	"github.com/halftrip/cachepurge/observe"
)

// NewServeCommand serves the guarded logout endpoint and metrics.
func NewServeCommand(root *RootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve POST /api/auth/logout, purge history and /metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := prometheus.NewRegistry()
			e, err := openEnv(root, observe.NewPrometheusMetrics(reg))
			if err != nil {
				return err
			}
			defer e.Close()
			if addr == "" {
				addr = e.cfg.HTTP.Addr
			}

			var auth httpapi.SignOuter = noAuth{logger: e.logger}
			if e.cfg.Auth.DatabaseDSN != "" {
				provider := newProviderAuth(e.cfg.Auth, e.logger)
				defer provider.Close()
				auth = provider
			}

			h := httpapi.NewHandler(e.app.Guard, auth, e.app.History, httpapi.Options{
				CookieSecure: e.cfg.HTTP.CookieSecure,
				Logger:       e.logger,
			})
			app := httpapi.NewApp(h)
			app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				_ = app.Shutdown()
			}()
			e.logger.Info("listening", cachepurge.Field{Key: "addr", Value: addr})
			return app.Listen(addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to http.addr)")
	return cmd
}

// noAuth is used when no auth database is configured; sign-out then only clears the
// refresh cookie.
type noAuth struct {
	logger cachepurge.Logger
}

func (n noAuth) SignOut(context.Context, string) error {
	n.logger.Debug("no auth database configured; skipping token revocation")
	return nil
}
