package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Skryldev/imageprep/export"
)

func newProcessCmd(g *globalFlags) *cobra.Command {
	var (
		pf        processingFlags
		clipboard bool
		dataURL   bool
	)
	cmd := &cobra.Command{
		Use:   "process FILE",
		Short: "Resize and re-encode one image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, logger, err := g.open(nil)
			if err != nil {
				return err
			}
			defer p.Close()

			opts, err := pf.apply(p.DefaultOptions())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			file, err := p.FromPath(ctx, args[0])
			if err != nil {
				return err
			}
			res, err := p.Process(ctx, file, opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case dataURL:
				url, err := export.ToDataURL(res.Output)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, url)
			case clipboard:
				if err := export.CopyToClipboard(ctx, export.NewCommandClipboard(), res.Output); err != nil {
					return err
				}
				fmt.Fprintln(out, describeResult(file.Name, res), "(copied to clipboard)")
			default:
				dl, err := export.NewDownloader(pf.outDir, 0o644)
				if err != nil {
					return err
				}
				path, err := dl.DownloadAsFile(ctx, res.Output, "")
				if err != nil {
					return err
				}
				logger.Debug("process.saved", "path", path)
				fmt.Fprintln(out, describeResult(file.Name, res))
			}
			return nil
		},
	}
	pf.bind(cmd)
	cmd.Flags().BoolVar(&clipboard, "clipboard", false, "copy the result to the system clipboard instead of saving it")
	cmd.Flags().BoolVar(&dataURL, "data-url", false, "print the result as a data: URL instead of saving it")
	return cmd
}
