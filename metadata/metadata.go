// Package metadata reads image properties by decoding through the codec
// registry.
package metadata

import (
	"context"

	"github.com/Skryldev/imageprep/core"
	apperrors "github.com/Skryldev/imageprep/errors"
	"github.com/Skryldev/imageprep/pipeline"
)

// Extractor decodes a file to learn its intrinsic dimensions.
type Extractor struct {
	decode *pipeline.DecodeStep
}

// New returns an Extractor decoding with reg.
func New(reg core.Registry) *Extractor {
	return &Extractor{decode: &pipeline.DecodeStep{Registry: reg}}
}

// Extract decodes file and returns its metadata.  The decoded image is
// released before Extract returns, on every path.
func (e *Extractor) Extract(ctx context.Context, file *core.SourceFile) (core.ImageMetadata, error) {
	if file == nil || len(file.Data) == 0 {
		return core.ImageMetadata{}, apperrors.New(apperrors.CategoryDecode, "metadata.extract", apperrors.ErrEmptyInput)
	}

	img, err := e.decode.Execute(ctx, &core.ImageData{
		Data:         file.Data,
		Format:       core.FormatFromMime(file.ContentType),
		OriginalSize: file.Size(),
	})
	if err != nil {
		return core.ImageMetadata{}, apperrors.Wrap(apperrors.CategoryDecode, "metadata.extract", err)
	}
	defer img.Release()

	return core.NewImageMetadata(file, img.Meta.Width, img.Meta.Height), nil
}
