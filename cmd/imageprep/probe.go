package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Skryldev/imageprep/capability"
)

func newProbeCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Report WebP support and available encoders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, _, err := g.open(nil)
			if err != nil {
				return err
			}
			defer p.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "backend:  %s\n", p.Config().Backend)
			fmt.Fprintf(out, "encoders: %v\n", p.Registry().EncodableFormats())
			for _, f := range capability.Features {
				fmt.Fprintf(out, "webp %-10s %t\n", f, p.Supports(ctx, f))
			}
			fmt.Fprintf(out, "webp %-10s %t\n", "full", p.Capabilities(ctx).Full)
			return nil
		},
	}
}
