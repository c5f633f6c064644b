//go:build !cgo

package encoder

import (
	"context"
	"fmt"

	"github.com/Skryldev/imageprep/core"
	apperrors "github.com/Skryldev/imageprep/errors"
)

// WebP is unavailable without cgo: libwebp cannot be linked.  CanEncode
// reports false so capability detection falls back to JPEG or PNG.
type WebP struct {
	DefaultQuality int
}

func NewWebP(defaultQuality int) *WebP { return &WebP{DefaultQuality: defaultQuality} }

func (w *WebP) CanEncode(core.Format) bool { return false }

func (w *WebP) Encode(context.Context, *core.ImageData, core.EncodeOptions) ([]byte, error) {
	return nil, apperrors.New(apperrors.CategoryEncode, "webp.encode",
		fmt.Errorf("%w: webp encoding requires cgo", apperrors.ErrUnsupportedFormat))
}
