package main

import (
	"fmt"

	"github.com/jo-hoe/itemlens/internal/core"
	"github.com/spf13/cobra"
)

func newReindexCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Recompute every stored descriptor with the configured extractor",
		Long: `Descriptors from different extractor backends are not comparable. Run
reindex after changing extractor.name so the catalog matches new queries.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd.Context(), func(service *core.CoreService) error {
				updated, failed, err := service.Reindex(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reindexed %d images with %s (%d failed)\n",
					updated, service.Config().Extractor.Name, failed)
				return nil
			})
		},
	}
}
