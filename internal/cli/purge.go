package cli

import (
	"github.com/spf13/cobra"
)

// NewPurgeCommand runs one purge pass.
func NewPurgeCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Clear every configured store once",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(root, nil)
			if err != nil {
				return err
			}
			defer e.Close()

			res := e.app.Coordinator.PurgeAll(cmd.Context())
			if err := writeResult(cmd.OutOrStdout(), root.Format, res); err != nil {
				return err
			}
			if !res.AllSucceeded {
				return NewExitError(ExitFailure, "purge incomplete")
			}
			return nil
		},
	}
}
