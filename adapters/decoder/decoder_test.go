package decoder_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/Skryldev/imageprep/adapters/decoder"
	"github.com/Skryldev/imageprep/core"
	apperrors "github.com/Skryldev/imageprep/errors"
)

func TestDecoders(t *testing.T) {
	rgba := image.NewNRGBA(image.Rect(0, 0, 6, 3))
	rgba.Set(1, 1, color.NRGBA{R: 255, A: 128})

	var jpg, pngBuf, gifBuf bytes.Buffer
	if err := jpeg.Encode(&jpg, rgba, nil); err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(&pngBuf, rgba); err != nil {
		t.Fatal(err)
	}
	if err := gif.Encode(&gifBuf, rgba, nil); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		dec    *decoder.Decoder
		data   []byte
		format core.Format
	}{
		{"jpeg", decoder.NewJPEG(), jpg.Bytes(), core.FormatJPEG},
		{"png", decoder.NewPNG(), pngBuf.Bytes(), core.FormatPNG},
		{"gif", decoder.NewGIF(), gifBuf.Bytes(), core.FormatGIF},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if !tc.dec.CanDecode(tc.format) || tc.dec.CanDecode(core.FormatUnknown) {
				t.Fatalf("CanDecode does not match %s only", tc.format)
			}

			img, err := tc.dec.Decode(context.Background(), bytes.NewReader(tc.data))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if img.Meta.Width != 6 || img.Meta.Height != 3 {
				t.Errorf("dimensions: want 6x3, got %dx%d", img.Meta.Width, img.Meta.Height)
			}
			if img.Format != tc.format {
				t.Errorf("format: want %s, got %s", tc.format, img.Format)
			}
			if _, ok := img.Image.(image.Image); !ok {
				t.Errorf("Image holds %T, want image.Image", img.Image)
			}
		})
	}
}

func TestDecodeGarbage(t *testing.T) {
	_, err := decoder.NewPNG().Decode(context.Background(), bytes.NewReader([]byte("nope")))
	if !apperrors.IsCategory(err, apperrors.CategoryDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if !strings.Contains(err.Error(), "png.decode") {
		t.Errorf("error does not name the op: %v", err)
	}
}

func TestDecodeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := decoder.NewWebP().Decode(ctx, bytes.NewReader(nil)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
