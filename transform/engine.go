// Package transform resizes and re-encodes single images.
package transform

import (
	"context"
	"fmt"
	"time"

	"github.com/Skryldev/imageprep/core"
	apperrors "github.com/Skryldev/imageprep/errors"
	"github.com/Skryldev/imageprep/pipeline"
	"github.com/Skryldev/imageprep/utils"
)

// Extractor reads source metadata.  metadata.Extractor implements it.
type Extractor interface {
	Extract(ctx context.Context, file *core.SourceFile) (core.ImageMetadata, error)
}

// Chooser resolves the output format.  negotiator.Negotiator implements it.
type Chooser interface {
	Choose(ctx context.Context, file *core.SourceFile, choice core.FormatChoice) core.Format
}

// Resizer builds the resampling step for a target size.  The default uses
// pipeline.ResizeStep; the vips backend supplies its own.
type Resizer func(width, height int, opts core.ProcessingOptions) core.Step

// Option configures an Engine.
type Option func(*Engine)

// WithResizer replaces the resampling step builder.
func WithResizer(r Resizer) Option {
	return func(e *Engine) { e.resizer = r }
}

// WithHooks registers pipeline observers.
func WithHooks(h ...core.Hook) Option {
	return func(e *Engine) { e.hooks = append(e.hooks, h...) }
}

// WithLogger attaches a structured logger.
func WithLogger(l core.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// Engine runs extract → negotiate → decode → resize → encode.  Safe for
// concurrent use.
type Engine struct {
	reg       core.Registry
	extractor Extractor
	chooser   Chooser
	resizer   Resizer
	hooks     []core.Hook
	logger    core.Logger
}

// New returns an Engine encoding through reg.
func New(reg core.Registry, ex Extractor, ch Chooser, opts ...Option) *Engine {
	e := &Engine{
		reg:       reg,
		extractor: ex,
		chooser:   ch,
		resizer:   nativeResizer,
		logger:    core.NopLogger{},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func nativeResizer(width, height int, opts core.ProcessingOptions) core.Step {
	return &pipeline.ResizeStep{
		Width:        width,
		Height:       height,
		Interpolator: pipeline.Interpolator(opts.EnableSmoothing, opts.Smoothing),
	}
}

// Process transforms file according to opts.  Errors are processing errors
// wrapping the decode or encode failure.
func (e *Engine) Process(ctx context.Context, file *core.SourceFile, opts core.ProcessingOptions) (*core.ProcessingResult, error) {
	if file == nil || len(file.Data) == 0 {
		return nil, apperrors.New(apperrors.CategoryProcessing, "transform.process", apperrors.ErrEmptyInput)
	}
	if opts.Quality < 0 || opts.Quality > 1 {
		return nil, apperrors.New(apperrors.CategoryProcessing, "transform.process",
			fmt.Errorf("quality %g outside [0, 1]", opts.Quality))
	}

	meta, err := e.extractor.Extract(ctx, file)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryProcessing, "transform.process", err)
	}
	format := e.chooser.Choose(ctx, file, opts.Format)

	start := time.Now()
	width, height := utils.FitDimensions(meta.Width, meta.Height, opts.MaxWidth, opts.MaxHeight, opts.PreserveAspectRatio)
	quality := utils.QualityPercent(opts.Quality)

	p := pipeline.New().
		Use(
			&pipeline.DecodeStep{Registry: e.reg},
			e.resizer(width, height, opts),
			&pipeline.FormatStep{Format: format},
			&pipeline.EncodeStep{Registry: e.reg, Options: core.EncodeOptions{Quality: quality}},
		).
		AddHook(e.hooks...)
	if opts.TargetSize > 0 {
		p.Use(&pipeline.AdaptiveCompressStep{
			Registry:        e.reg,
			TargetSizeBytes: opts.TargetSize,
			MaxQuality:      quality,
		})
	}

	out, timings, err := p.Run(ctx, &core.ImageData{
		Data:         file.Data,
		Format:       core.FormatFromMime(file.ContentType),
		OriginalSize: file.Size(),
	})
	if err != nil {
		e.logger.Warn("transform.failed", "file", file.Name, "format", string(format), "error", err.Error())
		return nil, apperrors.Wrap(apperrors.CategoryProcessing, "transform.process", err)
	}
	defer out.Release()
	elapsed := time.Since(start)

	output := &core.SourceFile{
		Name:         core.RenameForFormat(file.Name, format),
		ContentType:  format.MimeType(),
		Data:         out.Data,
		LastModified: time.Now(),
	}
	result := &core.ProcessingResult{
		Output:         output,
		Metadata:       core.NewImageMetadata(output, out.Meta.Width, out.Meta.Height),
		Stats:          core.NewCompressionStats(file.Size(), output.Size()),
		ProcessingTime: elapsed,
		StepTimings:    timings,
	}
	e.logger.Debug("transform.done",
		"file", file.Name,
		"format", string(format),
		"width", out.Meta.Width,
		"height", out.Meta.Height,
		"original_bytes", file.Size(),
		"output_bytes", output.Size(),
		"duration_ms", elapsed.Milliseconds(),
	)
	return result, nil
}

var _ core.Processor = (*Engine)(nil)
