package capability

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"

	"github.com/Skryldev/imageprep/core"
	apperrors "github.com/Skryldev/imageprep/errors"
)

// Reference 1x1 WebP images, one per feature.
var probeImages = map[Feature]string{
	FeatureBasic:     "UklGRiIAAABXRUJQVlA4IBYAAAAwAQCdASoBAAEADsD+JaQAA3AAAAAA",
	FeatureLossless:  "UklGRhoAAABXRUJQVlA4TA0AAAAvAAAAEAcQERGIiP4HAA==",
	FeatureAlpha:     "UklGRkoAAABXRUJQVlA4WAoAAAAQAAAAAAAAAAAAQUxQSAwAAAARBxAR/Q9ERP8DAABWUDggGAAAABQBAJ0BKgEAAQAAAP4AAA3AAP7mtQAAAA==",
	FeatureAnimation: "UklGRlIAAABXRUJQVlA4WAoAAAASAAAAAAAAAAAAQU5JTQYAAAD/////AABBTk1GJgAAAAAAAAAAAAAAAAAAAGQAAABWUDhMDQAAAC8AAAAQBxAREYiI/gcA",
}

// Prober runs one feature probe.  An error means the feature is unsupported.
type Prober interface {
	Probe(ctx context.Context, f Feature) (bool, error)
}

// RegistryProber decodes the reference image for a feature with the WebP
// decoder in Registry and checks it reports 1x1.  FeatureBasic also requires
// a usable WebP encoder, since negotiation only picks WebP to encode it.
type RegistryProber struct {
	Registry core.Registry
}

func (p RegistryProber) Probe(ctx context.Context, f Feature) (bool, error) {
	encoded, ok := probeImages[f]
	if !ok {
		return false, apperrors.New(apperrors.CategoryProbe, "capability.probe", fmt.Errorf("unknown feature %q", f))
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return false, apperrors.Wrap(apperrors.CategoryProbe, "capability.probe", err)
	}

	dec, ok := p.Registry.DecoderFor(core.FormatWebP)
	if !ok {
		return false, apperrors.New(apperrors.CategoryProbe, "capability.probe", apperrors.ErrUnsupportedFormat)
	}
	img, err := dec.Decode(ctx, bytes.NewReader(raw))
	if err != nil {
		return false, apperrors.Wrap(apperrors.CategoryProbe, "capability.probe", err)
	}
	defer img.Release()

	if img.Meta.Width != 1 || img.Meta.Height != 1 {
		return false, nil
	}
	if f == FeatureBasic {
		return core.CanEncode(p.Registry, core.FormatWebP), nil
	}
	return true, nil
}
