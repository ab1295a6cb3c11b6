package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/guildops-backend/internal/app"
)

type importOptions struct {
	File        string
	GuildID     string
	BlueprintID string
	ActorID     string
}

func newImportBlueprintCmd(c *cli) *cobra.Command {
	opts := importOptions{}

	cmd := &cobra.Command{
		Use:   "import-blueprint",
		Short: "Replace a blueprint graph with the nodes and links of a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			guildID, err := parseIDFlag("guild", opts.GuildID)
			if err != nil {
				return err
			}
			bpID, err := parseIDFlag("blueprint", opts.BlueprintID)
			if err != nil {
				return err
			}
			actorID, err := parseIDFlag("actor", opts.ActorID)
			if err != nil {
				return err
			}
			f, err := os.Open(opts.File)
			if err != nil {
				return fmt.Errorf("open %s: %w", opts.File, err)
			}
			defer f.Close()

			log, cfg, err := c.load()
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), log, cfg)
			if err != nil {
				log.Sync()
				return err
			}
			defer a.Close()

			res, err := a.ImportBlueprintGraph(cmd.Context(), guildID, bpID, actorID, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d nodes, %d links (inserted %d, updated %d, deleted %d, resynced %d assignments)\n",
				len(res.Nodes), len(res.Links), len(res.InsertedNodeIDs), len(res.UpdatedNodeIDs), len(res.DeletedNodeIDs), res.ResyncedProgress)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "YAML graph file")
	cmd.Flags().StringVar(&opts.GuildID, "guild", "", "Guild id")
	cmd.Flags().StringVar(&opts.BlueprintID, "blueprint", "", "Blueprint id")
	cmd.Flags().StringVar(&opts.ActorID, "actor", "", "Editing user id")
	for _, name := range []string{"file", "guild", "blueprint", "actor"} {
		cmd.MarkFlagRequired(name) //nolint:errcheck
	}
	return cmd
}

func parseIDFlag(name, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("--%s must be a uuid", name)
	}
	return id, nil
}
