package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/halftrip/cachepurge"
	"github.com/halftrip/cachepurge/internal/app"
	"github.com/halftrip/cachepurge/internal/appconfig"
	"github.com/halftrip/cachepurge/observe"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string
	EnvFile string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command of the purge CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "halftrip-purge",
		Short:         "Purge Half Trip client caches",
		Long:          "Clears every local store a Half Trip client populates and guards sign-out behind the purge.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file with HALFTRIP_* overrides")

	cmd.AddCommand(NewPurgeCommand(opts))
	cmd.AddCommand(NewSignOutCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewShellCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// env is what every command needs: configuration, a zap logger and the wired stack.
type env struct {
	cfg    appconfig.Config
	zap    *zap.Logger
	logger cachepurge.Logger
	app    *app.App
}

func openEnv(opts *RootOptions, metrics cachepurge.Metrics) (*env, error) {
	cfg, err := appconfig.Load(opts.Config, opts.EnvFile)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}
	level := cfg.LogLevel
	if opts.Verbose {
		level = "debug"
	}
	zl, err := observe.NewLogger(level)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "create logger", err)
	}
	logger := observe.ZapLogger(zl)
	a, err := app.Build(cfg, logger, metrics)
	if err != nil {
		_ = zl.Sync()
		return nil, WrapExitError(ExitCommandError, "open stores", err)
	}
	return &env{cfg: cfg, zap: zl, logger: logger, app: a}, nil
}

func (e *env) Close() error {
	err := e.app.Close()
	_ = e.zap.Sync()
	return err
}
