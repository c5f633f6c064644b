// Package adapters assembles codec registries from the concrete backends.
package adapters

import (
	"github.com/Skryldev/imageprep/adapters/decoder"
	"github.com/Skryldev/imageprep/adapters/encoder"
	"github.com/Skryldev/imageprep/core"
)

// NewNativeRegistry returns a registry with the pure-Go decoders and the
// JPEG, PNG and WebP encoders.  The WebP encoder reports CanEncode false in
// builds without cgo.
func NewNativeRegistry(defaultQuality int) *core.DefaultRegistry {
	reg := core.NewRegistry()
	reg.RegisterDecoder(core.FormatJPEG, decoder.NewJPEG())
	reg.RegisterDecoder(core.FormatPNG, decoder.NewPNG())
	reg.RegisterDecoder(core.FormatGIF, decoder.NewGIF())
	reg.RegisterDecoder(core.FormatWebP, decoder.NewWebP())
	reg.RegisterEncoder(core.FormatJPEG, encoder.NewJPEG(defaultQuality))
	reg.RegisterEncoder(core.FormatPNG, encoder.NewPNG())
	reg.RegisterEncoder(core.FormatWebP, encoder.NewWebP(defaultQuality))
	return reg
}
