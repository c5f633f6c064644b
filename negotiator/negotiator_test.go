package negotiator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Skryldev/imageprep/capability"
	"github.com/Skryldev/imageprep/core"
	"github.com/Skryldev/imageprep/negotiator"
)

type caps map[capability.Feature]bool

func (c caps) Supports(_ context.Context, f capability.Feature) bool { return c[f] }

func src(ct string) *core.SourceFile { return &core.SourceFile{Name: "x", ContentType: ct} }

func TestChoose(t *testing.T) {
	withWebP := caps{capability.FeatureBasic: true}
	noWebP := caps{}

	tests := []struct {
		name   string
		caps   caps
		file   *core.SourceFile
		choice core.FormatChoice
		want   core.Format
	}{
		{"auto webp", withWebP, src("image/jpeg"), core.AutoFormat(), core.FormatWebP},
		{"auto png source without webp", noWebP, src("image/png"), core.AutoFormat(), core.FormatPNG},
		{"auto gif source without webp", noWebP, src("image/gif"), core.AutoFormat(), core.FormatPNG},
		{"auto jpeg source without webp", noWebP, src("image/jpeg"), core.AutoFormat(), core.FormatJPEG},
		{"auto webp source without webp", noWebP, src("image/webp"), core.AutoFormat(), core.FormatJPEG},
		{"explicit ignores caps", noWebP, src("image/png"), core.ExplicitFormat(core.FormatWebP), core.FormatWebP},
		{"explicit png", withWebP, src("image/jpeg"), core.ExplicitFormat(core.FormatPNG), core.FormatPNG},
		{"preferred supported", withWebP, src("image/png"), core.PreferFormat(core.FormatJPEG), core.FormatJPEG},
		{"preferred webp unsupported", noWebP, src("image/png"), core.PreferFormat(core.FormatWebP), core.FormatPNG},
		{"preferred webp supported", withWebP, src("image/jpeg"), core.PreferFormat(core.FormatWebP), core.FormatWebP},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := negotiator.New(tc.caps).Choose(context.Background(), tc.file, tc.choice)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestChooseIsDeterministic(t *testing.T) {
	n := negotiator.New(caps{})
	first := n.Choose(context.Background(), src("image/png"), core.AutoFormat())
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, n.Choose(context.Background(), src("image/png"), core.AutoFormat()))
	}
}
