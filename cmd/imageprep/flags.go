package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Skryldev/imageprep/core"
)

// processingFlags are shared by process and batch.
type processingFlags struct {
	maxWidth    int
	maxHeight   int
	quality     float64
	format      string
	targetSize  string
	smoothing   string
	noSmoothing bool
	stretch     bool
	outDir      string
}

func (f *processingFlags) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.IntVar(&f.maxWidth, "max-width", 0, "bounding box width (config default when 0)")
	fs.IntVar(&f.maxHeight, "max-height", 0, "bounding box height (config default when 0)")
	fs.Float64VarP(&f.quality, "quality", "q", -1, "encoder quality in [0,1]")
	fs.StringVarP(&f.format, "format", "f", "", `output format: auto, webp, jpeg, png or "prefer:<format>"`)
	fs.StringVar(&f.targetSize, "target-size", "", `lower quality until output fits, e.g. "200KB"`)
	fs.StringVar(&f.smoothing, "smoothing", "", "resampling quality: low, medium or high")
	fs.BoolVar(&f.noSmoothing, "no-smoothing", false, "use nearest-neighbour resampling")
	fs.BoolVar(&f.stretch, "stretch", false, "clamp each axis independently instead of preserving aspect ratio")
	fs.StringVarP(&f.outDir, "out", "o", ".", "output directory")
}

// apply overlays the flags on base.
func (f *processingFlags) apply(base core.ProcessingOptions) (core.ProcessingOptions, error) {
	opts := base
	if f.maxWidth > 0 {
		opts.MaxWidth = f.maxWidth
	}
	if f.maxHeight > 0 {
		opts.MaxHeight = f.maxHeight
	}
	if f.quality >= 0 {
		opts.Quality = f.quality
	}
	if f.format != "" {
		choice, err := core.ParseFormatChoice(f.format)
		if err != nil {
			return opts, err
		}
		opts.Format = choice
	}
	if f.targetSize != "" {
		n, err := humanize.ParseBytes(f.targetSize)
		if err != nil {
			return opts, fmt.Errorf("--target-size: %w", err)
		}
		opts.TargetSize = int64(n)
	}
	switch core.SmoothingQuality(f.smoothing) {
	case "":
	case core.SmoothingLow, core.SmoothingMedium, core.SmoothingHigh:
		opts.Smoothing = core.SmoothingQuality(f.smoothing)
	default:
		return opts, fmt.Errorf("--smoothing: unknown quality %q", f.smoothing)
	}
	if f.noSmoothing {
		opts.EnableSmoothing = false
	}
	if f.stretch {
		opts.PreserveAspectRatio = false
	}
	return opts, nil
}

func describeResult(name string, res *core.ProcessingResult) string {
	return fmt.Sprintf("%s -> %s  %dx%d  %s -> %s (%.1f%% saved) in %s",
		name, res.Output.Name,
		res.Metadata.Width, res.Metadata.Height,
		humanize.Bytes(uint64(res.Stats.OriginalSize)),
		humanize.Bytes(uint64(res.Stats.CompressedSize)),
		res.Stats.PercentSaved,
		res.ProcessingTime.Round(1e6),
	)
}
