package main

import (
	"fmt"

	"github.com/jo-hoe/itemlens/internal/core"
	"github.com/spf13/cobra"
)

func newInitDBCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create the catalog schema and upload directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd.Context(), func(service *core.CoreService) error {
				cfg := service.Config()
				if !service.CatalogReady() {
					return fmt.Errorf("catalog %s (%s) is not reachable", cfg.Database.ConnectionString, cfg.Database.Type)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Catalog ready: %s (%s), uploads in %s\n",
					cfg.Database.ConnectionString, cfg.Database.Type, cfg.UploadDir)
				return nil
			})
		},
	}
}
