package main

import (
	"github.com/spf13/cobra"
)

func newSetupCmd() *cobra.Command {
	var initialSync bool

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Anchor the change-feed cursor and register the watch channel",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, rootCfg, rootLogger)
			if err != nil {
				return err
			}
			defer a.Close()

			if initialSync {
				n, err := a.engine.RunInitialSync(ctx)
				if err != nil {
					return err
				}

				rootLogger.Info("initial sync finished", "imported", n)
			} else {
				token, err := a.drive.StartPageToken(ctx)
				if err != nil {
					return err
				}

				if err := a.store.SetCursor(ctx, token); err != nil {
					return err
				}

				rootLogger.Info("cursor anchored", "token", token)
			}

			if rootCfg.Drive.WebhookURL == "" {
				rootLogger.Warn("no webhook URL configured, skipping watch registration")
				return nil
			}

			return registerWatch(ctx, a)
		},
	}

	cmd.Flags().BoolVar(&initialSync, "initial-sync", false,
		"import existing folder contents before anchoring the cursor")

	return cmd
}
