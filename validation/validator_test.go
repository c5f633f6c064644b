package validation_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/imageprep/adapters"
	"github.com/Skryldev/imageprep/core"
	"github.com/Skryldev/imageprep/metadata"
	"github.com/Skryldev/imageprep/validation"
)

type fakeExtractor struct {
	calls int
	meta  core.ImageMetadata
	err   error
}

func (f *fakeExtractor) Extract(_ context.Context, file *core.SourceFile) (core.ImageMetadata, error) {
	f.calls++
	if f.err != nil {
		return core.ImageMetadata{}, f.err
	}
	return core.NewImageMetadata(file, f.meta.Width, f.meta.Height), nil
}

func dims(w, h int) *fakeExtractor {
	return &fakeExtractor{meta: core.ImageMetadata{Width: w, Height: h}}
}

func file(size int, ct string) *core.SourceFile {
	return &core.SourceFile{Name: "f", ContentType: ct, Data: make([]byte, size)}
}

func TestOversizeNeverDecodes(t *testing.T) {
	ex := dims(10, 10)
	v := validation.New(ex, core.DefaultValidationPolicy())
	big := file(5*1024*1024+1, "image/jpeg")

	quick := v.QuickCheck(big, core.ValidationPolicy{})
	full := v.FullCheck(context.Background(), big, core.ValidationPolicy{})

	for _, r := range []validation.Result{quick, full} {
		assert.False(t, r.Valid)
		assert.Contains(t, r.Error, "exceeds maximum allowed size")
		assert.Nil(t, r.Details)
	}
	assert.Zero(t, ex.calls)
}

func TestQuickCheckPasses(t *testing.T) {
	v := validation.New(dims(1, 1), core.DefaultValidationPolicy())
	r := v.QuickCheck(file(1024, "image/png"), core.ValidationPolicy{})

	require.True(t, r.Valid)
	assert.Empty(t, r.Error)
	assert.Nil(t, r.Warnings)
	require.NotNil(t, r.Details)
	assert.Equal(t, "Not checked", r.Details.Dimensions)
	assert.Equal(t, "1 KB", r.Details.FileSize)
}

func TestQuickCheckWarnsOnLargeFile(t *testing.T) {
	v := validation.New(dims(1, 1), core.DefaultValidationPolicy())
	r := v.QuickCheck(file(3*1024*1024, "image/jpeg"), core.ValidationPolicy{})

	require.True(t, r.Valid)
	require.Len(t, r.Warnings, 1)
	assert.Contains(t, r.Warnings[0], "3 MB")
}

func TestCheckOrder(t *testing.T) {
	ranges := []core.AspectRange{{Min: 0.9, Max: 1.1}}
	tests := []struct {
		name    string
		file    *core.SourceFile
		ex      *fakeExtractor
		policy  core.ValidationPolicy
		message string
		details bool
	}{
		{"too small beats type", file(10, "image/bmp"), dims(1, 1), core.ValidationPolicy{MinSize: 100}, "below minimum required size", false},
		{"type", file(10, "image/bmp"), dims(1, 1), core.ValidationPolicy{}, "not allowed", false},
		{"decode", file(10, "image/jpeg"), &fakeExtractor{err: errors.New("bad huffman table")}, core.ValidationPolicy{}, "Unable to read image", true},
		{"width too large beats height", file(10, "image/jpeg"), dims(5000, 5000), core.ValidationPolicy{}, "width 5000px exceeds", true},
		{"height too large", file(10, "image/jpeg"), dims(100, 5000), core.ValidationPolicy{}, "height 5000px exceeds", true},
		{"width too small", file(10, "image/jpeg"), dims(50, 10), core.ValidationPolicy{MinWidth: 64, MinHeight: 64}, "width 50px is below", true},
		{"height too small", file(10, "image/jpeg"), dims(100, 10), core.ValidationPolicy{MinWidth: 64, MinHeight: 64}, "height 10px is below", true},
		{"aspect ratio", file(10, "image/jpeg"), dims(300, 100), core.ValidationPolicy{AspectRatioRanges: ranges}, "aspect ratio 3", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := validation.New(tc.ex, core.DefaultValidationPolicy())
			r := v.FullCheck(context.Background(), tc.file, tc.policy)

			assert.False(t, r.Valid)
			assert.Contains(t, r.Error, tc.message)
			assert.Equal(t, tc.details, r.Details != nil)
		})
	}
}

func TestAspectRatioInAnyRange(t *testing.T) {
	policy := core.ValidationPolicy{AspectRatioRanges: []core.AspectRange{{Min: 0.9, Max: 1.1}, {Min: 1.7, Max: 1.8}}}
	v := validation.New(dims(1920, 1080), core.DefaultValidationPolicy())

	r := v.FullCheck(context.Background(), file(10, "image/jpeg"), policy)
	assert.True(t, r.Valid)
}

func TestFullCheckWarnsOnMegapixels(t *testing.T) {
	v := validation.New(dims(4000, 4000), core.DefaultValidationPolicy())
	r := v.FullCheck(context.Background(), file(10, "image/jpeg"), core.ValidationPolicy{})

	require.True(t, r.Valid)
	require.Len(t, r.Warnings, 1)
	assert.Contains(t, r.Warnings[0], "16 MP")
}

func TestFullCheckRealJPEG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 800, 600))
	for y := 0; y < 600; y++ {
		for x := 0; x < 800; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x / 4), G: uint8(y / 3), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}))

	v := validation.New(metadata.New(adapters.NewNativeRegistry(0)), core.DefaultValidationPolicy())
	r := v.FullCheck(context.Background(),
		&core.SourceFile{Name: "photo.jpg", ContentType: "image/jpeg", Data: buf.Bytes()},
		core.ValidationPolicy{})

	require.True(t, r.Valid, r.Error)
	assert.Nil(t, r.Warnings)
	require.NotNil(t, r.Details)
	assert.Equal(t, "800×600", r.Details.Dimensions)
	assert.Equal(t, "image/jpeg", r.Details.Type)
	assert.InDelta(t, 1.3333, r.Details.AspectRatio, 1e-3)
	assert.Contains(t, r.Details.FileSize, "KB")
}

func TestFullCheckUndecodable(t *testing.T) {
	v := validation.New(metadata.New(adapters.NewNativeRegistry(0)), core.DefaultValidationPolicy())
	r := v.FullCheck(context.Background(),
		&core.SourceFile{Name: "x.png", ContentType: "image/png", Data: []byte("not a png at all")},
		core.ValidationPolicy{})

	assert.False(t, r.Valid)
	assert.Contains(t, r.Error, "Unable to read image")
	require.NotNil(t, r.Details)
}
