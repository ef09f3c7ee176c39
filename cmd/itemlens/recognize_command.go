package main

import (
	"fmt"
	"os"

	"github.com/jo-hoe/itemlens/internal/backend/recognition"
	"github.com/jo-hoe/itemlens/internal/core"
	"github.com/spf13/cobra"
)

func newRecognizeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "recognize <image>",
		Short: "Identify the enrolled item shown in a photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			return ctx.withService(cmd.Context(), func(service *core.CoreService) error {
				decision, err := service.Recognize(cmd.Context(), raw)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch decision.Outcome {
				case recognition.Matched:
					fmt.Fprintf(out, "matched item #%d (score %d): %s\n", decision.ItemID, decision.Score, decision.URL)
				case recognition.TooBlurry:
					fmt.Fprintln(out, "too_blurry: retake the photo")
				default:
					fmt.Fprintf(out, "%s (score %d)\n", decision.Outcome, decision.Score)
				}
				return nil
			})
		},
	}
}
