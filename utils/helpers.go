package utils

import (
	"math"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	formatJPEG    = "jpeg"
	formatPNG     = "png"
	formatWebP    = "webp"
	formatGIF     = "gif"
	formatUnknown = "unknown"
)

// DetectFormat sniffs the leading bytes of data and returns the image format.
func DetectFormat(data []byte) string {
	if len(data) < 4 {
		return formatUnknown
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return formatJPEG
	}
	// PNG: 89 50 4E 47
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return formatPNG
	}
	// WebP: RIFF....WEBP
	if len(data) >= 12 &&
		data[0] == 'R' && data[1] == 'I' && data[2] == 'F' && data[3] == 'F' &&
		data[8] == 'W' && data[9] == 'E' && data[10] == 'B' && data[11] == 'P' {
		return formatWebP
	}
	switch DetectMime(data) {
	case "image/jpeg":
		return formatJPEG
	case "image/png":
		return formatPNG
	case "image/webp":
		return formatWebP
	case "image/gif":
		return formatGIF
	}
	return formatUnknown
}

// DetectMime returns the sniffed MIME type of data without parameters.
func DetectMime(data []byte) string {
	mt := mimetype.Detect(data).String()
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return mt
}

// FitDimensions computes output dimensions for a maxW x maxH box.
// With preserve set, both axes are scaled by min(maxW/w, maxH/h, 1) and
// rounded to the nearest pixel, so images are never upscaled.  Otherwise each
// axis is clamped independently, which may change the aspect ratio.
func FitDimensions(srcW, srcH, maxW, maxH int, preserve bool) (int, int) {
	if srcW <= 0 || srcH <= 0 {
		return srcW, srcH
	}
	if maxW <= 0 {
		maxW = srcW
	}
	if maxH <= 0 {
		maxH = srcH
	}
	if !preserve {
		return min(srcW, maxW), min(srcH, maxH)
	}
	scale := math.Min(float64(maxW)/float64(srcW), float64(maxH)/float64(srcH))
	if scale >= 1 {
		return srcW, srcH
	}
	w := int(math.Round(float64(srcW) * scale))
	h := int(math.Round(float64(srcH) * scale))
	return max(w, 1), max(h, 1)
}

// QualityPercent maps a [0,1] quality fraction onto the 1-100 scale used by
// the encoders.
func QualityPercent(q float64) int {
	p := int(math.Round(q * 100))
	if p < 1 {
		return 1
	}
	if p > 100 {
		return 100
	}
	return p
}

// CloneBytes returns a copy of b (safe for use after the source buffer is released).
func CloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
