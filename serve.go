package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/drivegit/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook notification server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, rootCfg, rootLogger)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := server.New(server.Config{
				Addr:              rootCfg.Server.Addr,
				WebhookURL:        rootCfg.Drive.WebhookURL,
				VerificationToken: rootCfg.Drive.VerificationToken,
			}, a.drive, a.store, a.coord, a.engine, rootLogger)

			return srv.Run(ctx)
		},
	}
}
