package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"

	xdraw "golang.org/x/image/draw"

	"github.com/Skryldev/imageprep/core"
	apperrors "github.com/Skryldev/imageprep/errors"
	"github.com/Skryldev/imageprep/utils"
)

// ── Decode ────────────────────────────────────────────────────────────────────

// DecodeStep decodes raw bytes in img.Data into an image.  The codec is picked
// from the sniffed content first and the declared format second.
type DecodeStep struct {
	Registry core.Registry
}

func (s *DecodeStep) Name() string { return "decode" }

func (s *DecodeStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if img.Image != nil {
		return img, nil // already decoded
	}
	if len(img.Data) == 0 {
		return nil, apperrors.New(apperrors.CategoryDecode, s.Name(), apperrors.ErrEmptyInput)
	}

	format := core.Format(utils.DetectFormat(img.Data))
	if format == core.FormatUnknown {
		format = img.Format
	}
	dec, ok := s.Registry.DecoderFor(format)
	if !ok {
		return nil, apperrors.New(apperrors.CategoryDecode, s.Name(),
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, format))
	}

	decoded, err := dec.Decode(ctx, bytes.NewReader(img.Data))
	if err != nil {
		decoded.Release()
		return nil, err
	}

	// Preserve the raw data bytes alongside the decoded representation.
	decoded.Data = img.Data
	decoded.OriginalSize = img.OriginalSize
	decoded.Meta.SizeBytes = int64(len(img.Data))
	return decoded, nil
}

// ── Resize ────────────────────────────────────────────────────────────────────

// ResizeStep resamples the image to exactly Width x Height.  Callers compute
// the target box with utils.FitDimensions.
type ResizeStep struct {
	Width, Height int
	// Interpolator controls quality vs speed.  Defaults to draw.CatmullRom.
	Interpolator xdraw.Interpolator
}

func (s *ResizeStep) Name() string { return "resize" }

func (s *ResizeStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}

	src, ok := img.Image.(image.Image)
	if !ok || src == nil {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(), apperrors.ErrEmptyInput)
	}

	srcB := src.Bounds()
	if s.Width == srcB.Dx() && s.Height == srcB.Dy() {
		return img, nil // nothing to do
	}
	if s.Width <= 0 || s.Height <= 0 {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(), apperrors.ErrInvalidDimensions)
	}

	interp := s.Interpolator
	if interp == nil {
		interp = xdraw.CatmullRom
	}

	dst := image.NewNRGBA(image.Rect(0, 0, s.Width, s.Height))
	interp.Scale(dst, dst.Bounds(), src, srcB, xdraw.Src, nil)

	out := *img
	out.Image = dst
	out.Meta.Width = s.Width
	out.Meta.Height = s.Height
	return &out, nil
}

// Interpolator maps the smoothing options onto an x/image/draw kernel.
func Interpolator(enabled bool, q core.SmoothingQuality) xdraw.Interpolator {
	if !enabled {
		return xdraw.NearestNeighbor
	}
	switch q {
	case core.SmoothingLow:
		return xdraw.ApproxBiLinear
	case core.SmoothingMedium:
		return xdraw.BiLinear
	}
	return xdraw.CatmullRom
}

// ── Format conversion ─────────────────────────────────────────────────────────

// FormatStep converts the image to a new format (sets img.Format for the
// subsequent encode step to pick up).
type FormatStep struct {
	Format core.Format
}

func (s *FormatStep) Name() string { return "format" }

func (s *FormatStep) Execute(_ context.Context, img *core.ImageData) (*core.ImageData, error) {
	out := *img
	out.Format = s.Format
	out.Meta.Format = s.Format
	return &out, nil
}

// ── Encode ────────────────────────────────────────────────────────────────────

// EncodeStep serialises the decoded image into encoded bytes using the registry.
type EncodeStep struct {
	Registry core.Registry
	Options  core.EncodeOptions
}

func (s *EncodeStep) Name() string { return "encode" }

func (s *EncodeStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	enc, ok := s.Registry.EncoderFor(img.Format)
	if !ok || !enc.CanEncode(img.Format) {
		return nil, apperrors.New(apperrors.CategoryEncode, s.Name(),
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, img.Format))
	}

	data, err := enc.Encode(ctx, img, s.Options)
	if err != nil {
		return nil, err
	}

	out := *img
	out.Data = data
	out.Meta.SizeBytes = int64(len(data))
	return &out, nil
}

// ── AdaptiveCompress ──────────────────────────────────────────────────────────

// AdaptiveCompressStep lowers JPEG/WebP quality in StepSize decrements until
// the output fits TargetSizeBytes or MinQuality is reached.  It runs after
// EncodeStep and keeps the encoded bytes when they already fit.  PNG output is
// left untouched since quality has no effect on its size.
type AdaptiveCompressStep struct {
	Registry        core.Registry
	TargetSizeBytes int64
	MinQuality      int
	MaxQuality      int
	StepSize        int
}

func (s *AdaptiveCompressStep) Name() string { return "adaptive_compress" }

func (s *AdaptiveCompressStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if s.TargetSizeBytes <= 0 || img.Format == core.FormatPNG {
		return img, nil
	}
	if len(img.Data) > 0 && int64(len(img.Data)) <= s.TargetSizeBytes {
		return img, nil
	}
	enc, ok := s.Registry.EncoderFor(img.Format)
	if !ok {
		return img, nil // skip; unsupported format
	}

	minQ := s.MinQuality
	if minQ <= 0 {
		minQ = 10
	}
	step := s.StepSize
	if step <= 0 {
		step = 5
	}
	quality := s.MaxQuality - step
	if s.MaxQuality <= 0 {
		quality = 80
	}

	best := img.Data
	for ; quality >= minQ; quality -= step {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
		}
		data, err := enc.Encode(ctx, img, core.EncodeOptions{Quality: quality})
		if err != nil {
			return nil, err
		}
		if len(best) == 0 || len(data) < len(best) {
			best = data
		}
		if int64(len(data)) <= s.TargetSizeBytes {
			break
		}
	}

	out := *img
	out.Data = best
	out.Meta.SizeBytes = int64(len(best))
	return &out, nil
}

var (
	_ core.Step = (*DecodeStep)(nil)
	_ core.Step = (*ResizeStep)(nil)
	_ core.Step = (*FormatStep)(nil)
	_ core.Step = (*EncodeStep)(nil)
	_ core.Step = (*AdaptiveCompressStep)(nil)
)
