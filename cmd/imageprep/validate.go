package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Skryldev/imageprep/core"
	apperrors "github.com/Skryldev/imageprep/errors"
	"github.com/Skryldev/imageprep/validation"
)

func newValidateCmd(g *globalFlags) *cobra.Command {
	var (
		full    bool
		maxSize string
		allowed []string
	)
	cmd := &cobra.Command{
		Use:   "validate FILE...",
		Short: "Check files against the validation policy",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var policy core.ValidationPolicy
			if maxSize != "" {
				n, err := humanize.ParseBytes(maxSize)
				if err != nil {
					return fmt.Errorf("--max-size: %w", err)
				}
				policy.MaxSize = int64(n)
			}
			policy.AllowedTypes = allowed

			p, logger, err := g.open(nil)
			if err != nil {
				return err
			}
			defer p.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				file, err := p.FromPath(ctx, path)
				if err != nil {
					logger.Error("validate.read", "path", path, "error", err.Error())
					failed++
					continue
				}
				var res validation.Result
				if full {
					res = p.FullCheck(ctx, file, policy)
				} else {
					res = p.QuickCheck(file, policy)
				}
				if !res.Valid {
					failed++
					fmt.Fprintf(out, "FAIL %s: %s\n", path, res.Error)
					continue
				}
				fmt.Fprintf(out, "ok   %s  %s  %s  %s\n", path, res.Details.Type, res.Details.FileSize, res.Details.Dimensions)
				for _, w := range res.Warnings {
					fmt.Fprintf(out, "     warning: %s\n", w)
				}
			}
			if failed > 0 {
				return apperrors.New(apperrors.CategoryValidation, "validate",
					fmt.Errorf("%d of %d files failed validation", failed, len(args)))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "decode files and check dimensions")
	cmd.Flags().StringVar(&maxSize, "max-size", "", `maximum file size, e.g. "5MB"`)
	cmd.Flags().StringSliceVar(&allowed, "allow", nil, "allowed MIME types")
	return cmd
}
