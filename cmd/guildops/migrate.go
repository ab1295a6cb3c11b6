package main

import (
	"github.com/spf13/cobra"

	"github.com/yungbote/guildops-backend/internal/app"
)

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the quest tables and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, cfg, err := c.load()
			if err != nil {
				return err
			}
			defer log.Sync()

			store, err := app.OpenStore(log, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			log.Info("migration complete", "driver", store.Driver())
			return nil
		},
	}
}
