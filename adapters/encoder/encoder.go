// Package encoder serialises image.Image values for the native backend.
package encoder

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/Skryldev/imageprep/core"
	apperrors "github.com/Skryldev/imageprep/errors"
)

// DefaultQuality is used when neither the encoder nor the call sets one.
const DefaultQuality = 85

// source checks ctx and extracts the decoded pixels.
func source(ctx context.Context, img *core.ImageData, op string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, op, err)
	}
	src, ok := img.Image.(image.Image)
	if !ok || src == nil {
		return nil, apperrors.New(apperrors.CategoryEncode, op, apperrors.ErrEmptyInput)
	}
	return src, nil
}

func pickQuality(requested, fallback int) int {
	switch {
	case requested > 0:
		return min(requested, 100)
	case fallback > 0:
		return fallback
	}
	return DefaultQuality
}

// JPEG encodes with image/jpeg.  Transparent pixels are flattened onto black,
// matching a canvas JPEG export.
type JPEG struct {
	DefaultQuality int // used when EncodeOptions.Quality == 0
}

func NewJPEG(defaultQuality int) *JPEG { return &JPEG{DefaultQuality: defaultQuality} }

func (j *JPEG) CanEncode(f core.Format) bool { return f == core.FormatJPEG }

func (j *JPEG) Encode(ctx context.Context, img *core.ImageData, opts core.EncodeOptions) ([]byte, error) {
	src, err := source(ctx, img, "jpeg.encode")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: pickQuality(opts.Quality, j.DefaultQuality)}); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "jpeg.encode", err)
	}
	return buf.Bytes(), nil
}

// PNG encodes with image/png.  Output is always lossless; quality only picks
// the zlib effort.
type PNG struct{}

func NewPNG() *PNG { return &PNG{} }

func (p *PNG) CanEncode(f core.Format) bool { return f == core.FormatPNG }

func (p *PNG) Encode(ctx context.Context, img *core.ImageData, opts core.EncodeOptions) ([]byte, error) {
	src, err := source(ctx, img, "png.encode")
	if err != nil {
		return nil, err
	}
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	switch {
	case opts.Lossless || opts.Quality >= 90:
		enc.CompressionLevel = png.BestCompression
	case opts.Quality > 0 && opts.Quality < 50:
		enc.CompressionLevel = png.BestSpeed
	}
	var buf bytes.Buffer
	if err := enc.Encode(&buf, src); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "png.encode", err)
	}
	return buf.Bytes(), nil
}

var (
	_ core.Encoder = (*JPEG)(nil)
	_ core.Encoder = (*PNG)(nil)
	_ core.Encoder = (*WebP)(nil)
)
