//go:build cgo

package encoder

import (
	"bytes"
	"context"

	"github.com/chai2010/webp"

	"github.com/Skryldev/imageprep/core"
	apperrors "github.com/Skryldev/imageprep/errors"
)

// WebP encodes with libwebp through github.com/chai2010/webp.
type WebP struct {
	DefaultQuality int
}

func NewWebP(defaultQuality int) *WebP { return &WebP{DefaultQuality: defaultQuality} }

func (w *WebP) CanEncode(f core.Format) bool { return f == core.FormatWebP }

func (w *WebP) Encode(ctx context.Context, img *core.ImageData, opts core.EncodeOptions) ([]byte, error) {
	src, err := source(ctx, img, "webp.encode")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	wo := &webp.Options{Lossless: opts.Lossless, Quality: float32(pickQuality(opts.Quality, w.DefaultQuality))}
	if err := webp.Encode(&buf, src, wo); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "webp.encode", err)
	}
	return buf.Bytes(), nil
}
