// Package negotiator resolves a requested FormatChoice into a concrete output
// format from the detected capabilities.
package negotiator

import (
	"context"

	"github.com/Skryldev/imageprep/capability"
	"github.com/Skryldev/imageprep/core"
)

// Capabilities answers feature queries.  capability.Detector implements it.
type Capabilities interface {
	Supports(ctx context.Context, f capability.Feature) bool
}

// Negotiator picks output formats.  It is stateless beyond its capability
// source, so results are deterministic for a fixed capability snapshot.
type Negotiator struct {
	caps Capabilities
}

// New returns a Negotiator consulting caps.
func New(caps Capabilities) *Negotiator { return &Negotiator{caps: caps} }

// Choose returns the output format for file.  An explicit choice is returned
// verbatim.  A preferred format is used when supported.  Otherwise WebP wins
// when basic WebP works, PNG is kept for lossless-friendly sources (PNG, GIF)
// and everything else becomes JPEG.
func (n *Negotiator) Choose(ctx context.Context, file *core.SourceFile, choice core.FormatChoice) core.Format {
	if f, ok := choice.Explicit(); ok {
		return f
	}
	if f, ok := choice.Preferred(); ok && n.supported(ctx, f) {
		return f
	}

	if n.caps.Supports(ctx, capability.FeatureBasic) {
		return core.FormatWebP
	}
	var declared string
	if file != nil {
		declared = file.ContentType
	}
	switch core.FormatFromMime(declared) {
	case core.FormatPNG, core.FormatGIF:
		return core.FormatPNG
	}
	return core.FormatJPEG
}

func (n *Negotiator) supported(ctx context.Context, f core.Format) bool {
	switch f {
	case core.FormatWebP:
		return n.caps.Supports(ctx, capability.FeatureBasic)
	case core.FormatJPEG, core.FormatPNG:
		return true
	}
	return false
}
