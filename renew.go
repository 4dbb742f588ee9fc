package main

import (
	"errors"

	"github.com/spf13/cobra"
)

func newRenewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "renew",
		Short: "Replace the watch channel before it expires",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, rootCfg, rootLogger)
			if err != nil {
				return err
			}
			defer a.Close()

			cursor, err := a.store.Cursor(ctx)
			if err != nil {
				return err
			}

			if cursor == "" {
				return errors.New("no cursor stored, run setup first")
			}

			old, err := a.store.Subscription(ctx)
			if err != nil {
				return err
			}

			if old != nil {
				// Expired channels fail to stop; they are dead anyway.
				if err := a.drive.StopWatch(ctx, old.ChannelID, old.ResourceID); err != nil {
					rootLogger.Warn("failed to stop old watch channel",
						"channel_id", old.ChannelID, "error", err)
				}
			}

			if err := registerWatch(ctx, a); err != nil {
				return err
			}

			// Catch-up cycle so nothing notified during the handover is missed.
			return a.coord.HandleNotification(ctx)
		},
	}
}
