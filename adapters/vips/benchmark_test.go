package vips_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/Skryldev/imageprep/adapters"
	"github.com/Skryldev/imageprep/adapters/vips"
	"github.com/Skryldev/imageprep/capability"
	"github.com/Skryldev/imageprep/core"
	"github.com/Skryldev/imageprep/metadata"
	"github.com/Skryldev/imageprep/negotiator"
	"github.com/Skryldev/imageprep/transform"
)

type allFeatures struct{}

func (allFeatures) Supports(context.Context, capability.Feature) bool { return true }

func makeJPEG(b *testing.B, w, h int) *core.SourceFile {
	b.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 92}); err != nil {
		b.Fatal(err)
	}
	return &core.SourceFile{Name: "bench.jpg", ContentType: "image/jpeg", Data: buf.Bytes()}
}

func newNativeEngine(b *testing.B) (*transform.Engine, *metadata.Extractor) {
	b.Helper()
	reg := adapters.NewNativeRegistry(85)
	ex := metadata.New(reg)
	return transform.New(reg, ex, negotiator.New(allFeatures{})), ex
}

func newVipsEngine(b *testing.B) (*transform.Engine, *metadata.Extractor) {
	b.Helper()
	backend := vips.NewBackend(vips.BackendConfig{DefaultQuality: 85})
	b.Cleanup(backend.Shutdown)
	reg := adapters.NewNativeRegistry(85)
	vips.RegisterVipsBackend(reg, backend)
	ex := metadata.New(reg)
	return transform.New(reg, ex, negotiator.New(allFeatures{}), transform.WithResizer(backend.Resizer)), ex
}

func benchOptions(maxW, maxH int, f core.Format) core.ProcessingOptions {
	opts := core.DefaultProcessingOptions()
	opts.MaxWidth, opts.MaxHeight = maxW, maxH
	opts.Format = core.ExplicitFormat(f)
	return opts
}

func runProcess(b *testing.B, e *transform.Engine, file *core.SourceFile, opts core.ProcessingOptions) {
	b.Helper()
	b.ReportAllocs()
	b.SetBytes(file.Size())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Process(context.Background(), file, opts); err != nil {
			b.Fatal(err)
		}
	}
}

// ─── Metadata ─────────────────────────────────────────────────────────────────

func benchExtract(b *testing.B, ex *metadata.Extractor, file *core.SourceFile) {
	b.ReportAllocs()
	b.SetBytes(file.Size())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ex.Extract(context.Background(), file); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkExtract_Native_1920x1080(b *testing.B) {
	_, ex := newNativeEngine(b)
	benchExtract(b, ex, makeJPEG(b, 1920, 1080))
}

func BenchmarkExtract_Vips_1920x1080(b *testing.B) {
	_, ex := newVipsEngine(b)
	benchExtract(b, ex, makeJPEG(b, 1920, 1080))
}

// ─── Resize ───────────────────────────────────────────────────────────────────

func BenchmarkResize_Native_1920to960(b *testing.B) {
	e, _ := newNativeEngine(b)
	runProcess(b, e, makeJPEG(b, 1920, 1080), benchOptions(960, 960, core.FormatJPEG))
}

func BenchmarkResize_Vips_1920to960(b *testing.B) {
	e, _ := newVipsEngine(b)
	runProcess(b, e, makeJPEG(b, 1920, 1080), benchOptions(960, 960, core.FormatJPEG))
}

// ─── Thumbnail ────────────────────────────────────────────────────────────────

func BenchmarkThumbnail_Native_4K(b *testing.B) {
	e, _ := newNativeEngine(b)
	runProcess(b, e, makeJPEG(b, 3840, 2160), benchOptions(256, 256, core.FormatJPEG))
}

func BenchmarkThumbnail_Vips_4K(b *testing.B) {
	e, _ := newVipsEngine(b)
	runProcess(b, e, makeJPEG(b, 3840, 2160), benchOptions(256, 256, core.FormatJPEG))
}

// ─── WebP encode ──────────────────────────────────────────────────────────────

func BenchmarkEncodeWebP_Native(b *testing.B) {
	e, _ := newNativeEngine(b)
	runProcess(b, e, makeJPEG(b, 800, 600), benchOptions(800, 600, core.FormatWebP))
}

func BenchmarkEncodeWebP_Vips(b *testing.B) {
	e, _ := newVipsEngine(b)
	runProcess(b, e, makeJPEG(b, 800, 600), benchOptions(800, 600, core.FormatWebP))
}

// ─── Adaptive compression ─────────────────────────────────────────────────────

func BenchmarkTargetSize_Native(b *testing.B) {
	e, _ := newNativeEngine(b)
	opts := benchOptions(1920, 1080, core.FormatJPEG)
	opts.TargetSize = 50 * 1024
	runProcess(b, e, makeJPEG(b, 1920, 1080), opts)
}

func BenchmarkTargetSize_Vips(b *testing.B) {
	e, _ := newVipsEngine(b)
	opts := benchOptions(1920, 1080, core.FormatJPEG)
	opts.TargetSize = 50 * 1024
	runProcess(b, e, makeJPEG(b, 1920, 1080), opts)
}
