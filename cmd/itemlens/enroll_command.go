package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jo-hoe/itemlens/internal/core"
	"github.com/spf13/cobra"
)

func newEnrollCommand(ctx *commandContext) *cobra.Command {
	var (
		url    string
		itemID int64
	)

	cmd := &cobra.Command{
		Use:   "enroll <image>...",
		Short: "Register an item from reference photos",
		Long: `Creates an item for --url, or continues the item given by --item, and
stores each photo as a reference capture. Blurry or undecodable photos are
skipped; photos beyond the capture limit are ignored.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (url == "") == (itemID == 0) {
				return errors.New("exactly one of --url or --item is required")
			}
			out := cmd.OutOrStdout()

			return ctx.withService(cmd.Context(), func(service *core.CoreService) error {
				id := itemID
				if id == 0 {
					created, err := service.BeginEnrollment(cmd.Context(), url)
					if err != nil {
						return err
					}
					id = created
					fmt.Fprintf(out, "Created item #%d for %s\n", id, url)
				}

				for _, path := range args {
					raw, err := os.ReadFile(path)
					if err != nil {
						return fmt.Errorf("read %s: %w", path, err)
					}
					result, err := service.SubmitEnrollmentFrame(cmd.Context(), id, raw)
					switch {
					case errors.Is(err, core.ErrEnrollmentComplete):
						fmt.Fprintf(out, "Item #%d already has all its images; ignoring %s and the rest\n", id, filepath.Base(path))
						return nil
					case errors.Is(err, core.ErrBlurryFrame):
						fmt.Fprintf(out, "Skipped %s: too blurry\n", filepath.Base(path))
						continue
					case errors.Is(err, core.ErrInputRejected):
						fmt.Fprintf(out, "Skipped %s: %v\n", filepath.Base(path), err)
						continue
					case err != nil:
						return err
					}
					fmt.Fprintf(out, "Stored %s as image #%d (%d descriptors, %d remaining)\n",
						filepath.Base(path), result.ImageID, result.Descriptors, result.Remaining)
				}

				status, err := service.EnrollmentStatus(cmd.Context(), id)
				if err != nil {
					return err
				}
				if status.Complete {
					fmt.Fprintf(out, "Item #%d is complete\n", id)
				} else {
					fmt.Fprintf(out, "Item #%d needs %d more images\n", id, status.Remaining)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "URL of a new item")
	cmd.Flags().Int64Var(&itemID, "item", 0, "ID of an existing item to add images to")
	return cmd
}
