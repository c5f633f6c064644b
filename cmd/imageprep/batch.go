package main

import (
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Skryldev/imageprep/batch"
	"github.com/Skryldev/imageprep/core"
	"github.com/Skryldev/imageprep/export"
)

func newBatchCmd(g *globalFlags) *cobra.Command {
	var (
		pf          processingFlags
		concurrency int
		retries     int
		retryDelay  time.Duration
		quiet       bool
	)
	cmd := &cobra.Command{
		Use:   "batch FILE...",
		Short: "Process many images with bounded concurrency",
		Args:  cobra.MinimumNArgs(1),
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
			dl, err := export.NewDownloader(pf.outDir, 0o644)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			files := make([]*core.SourceFile, 0, len(args))
			for _, path := range args {
				file, err := p.FromPath(ctx, path)
				if err != nil {
					logger.Warn("batch.read", "path", path, "error", err.Error())
					continue
				}
				files = append(files, file)
			}

			bar := progressbar.NewOptions(len(files),
				progressbar.OptionSetDescription("processing"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionSetItsString("images"),
				progressbar.OptionSetVisibility(!quiet),
				progressbar.OptionClearOnFinish(),
			)
			base := batch.Options{
				Concurrency: concurrency,
				Processing:  opts,
				OnProgress:  func(int, int, string) { _ = bar.Add(1) },
				OnError: func(err error, file *core.SourceFile, attempt int) {
					logger.Warn("batch.item", "file", file.Name, "attempt", attempt, "error", err.Error())
				},
			}

			var results []*core.ProcessingResult
			if retries > 1 {
				results, err = p.ProcessBatchWithRetry(ctx, files, batch.RetryOptions{
					Options:    base,
					MaxRetries: retries,
					BaseDelay:  retryDelay,
				})
			} else {
				results, err = p.ProcessBatch(ctx, files, base)
			}
			_ = bar.Finish()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, res := range results {
				if _, err := dl.DownloadAsFile(ctx, res.Output, ""); err != nil {
					return err
				}
				fmt.Fprintln(out, describeResult(res.Output.Name, res))
			}
			fmt.Fprintf(out, "%d of %d images processed\n", len(results), len(args))
			return nil
		},
	}
	pf.bind(cmd)
	cmd.Flags().IntVarP(&concurrency, "concurrency", "j", 0, "images processed at once (config default when 0)")
	cmd.Flags().IntVar(&retries, "retries", 1, "attempts per image; more than 1 enables retry with backoff")
	cmd.Flags().DurationVar(&retryDelay, "retry-delay", 0, "base backoff delay (config default when 0)")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "hide the progress bar")
	return cmd
}
