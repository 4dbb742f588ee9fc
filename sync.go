package main

import (
	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	var initial bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync cycle from the command line",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, rootCfg, rootLogger)
			if err != nil {
				return err
			}
			defer a.Close()

			if initial {
				n, err := a.engine.RunInitialSync(ctx)
				if err != nil {
					return err
				}

				rootLogger.Info("initial sync finished", "imported", n)
				return nil
			}

			return a.coord.HandleNotification(ctx)
		},
	}

	cmd.Flags().BoolVar(&initial, "initial", false,
		"import the full folder contents instead of consuming the change feed")

	return cmd
}
