// Package decoder turns encoded bytes into image.Image values for the native
// backend.
package decoder

import (
	"context"
	"image"
	"image/gif"
	"image/png"
	"io"

	"github.com/disintegration/imaging"
	"golang.org/x/image/webp"

	"github.com/Skryldev/imageprep/core"
	apperrors "github.com/Skryldev/imageprep/errors"
)

// Decoder decodes a single format with a pure-Go codec.
type Decoder struct {
	format core.Format
	decode func(io.Reader) (image.Image, error)
}

// NewJPEG decodes JPEG, applying the EXIF orientation so reported dimensions
// match what a viewer displays.
func NewJPEG() *Decoder {
	return &Decoder{format: core.FormatJPEG, decode: func(r io.Reader) (image.Image, error) {
		return imaging.Decode(r, imaging.AutoOrientation(true))
	}}
}

func NewPNG() *Decoder { return &Decoder{format: core.FormatPNG, decode: png.Decode} }

// NewGIF decodes the first frame only.
func NewGIF() *Decoder { return &Decoder{format: core.FormatGIF, decode: gif.Decode} }

// NewWebP decodes still WebP (lossy, lossless, alpha).  Animated files fail,
// which the capability detector reports as missing animation support.
func NewWebP() *Decoder { return &Decoder{format: core.FormatWebP, decode: webp.Decode} }

func (d *Decoder) CanDecode(f core.Format) bool { return f == d.format }

func (d *Decoder) Decode(ctx context.Context, r io.Reader) (*core.ImageData, error) {
	op := string(d.format) + ".decode"
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}
	img, err := d.decode(r)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, op, err)
	}

	b := img.Bounds()
	return &core.ImageData{
		Image:  img,
		Format: d.format,
		Meta: core.Metadata{
			Width:      b.Dx(),
			Height:     b.Dy(),
			Format:     d.format,
			ColorSpace: colorSpace(img),
			HasAlpha:   hasAlpha(img),
		},
	}, nil
}

func colorSpace(img image.Image) core.ColorSpace {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return core.ColorSpaceGray
	case *image.CMYK:
		return core.ColorSpaceCMYK
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64:
		return core.ColorSpaceRGBA
	}
	return core.ColorSpaceRGB
}

// hasAlpha reports whether the pixel model can carry transparency, not
// whether any pixel is actually transparent.
func hasAlpha(img image.Image) bool {
	switch img.(type) {
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64, *image.Paletted:
		return true
	}
	return false
}

var _ core.Decoder = (*Decoder)(nil)
