package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yungbote/guildops-backend/internal/app"
)

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log, cfg, err := c.load()
			if err != nil {
				return err
			}
			a, err := app.New(ctx, log, cfg)
			if err != nil {
				log.Sync()
				return err
			}
			defer a.Close()

			a.Start(ctx)
			return a.Run(ctx)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (env HTTP_ADDR)")
	_ = c.v.BindPFlag(keyHTTPAddr, cmd.Flags().Lookup("addr"))
	return cmd
}
