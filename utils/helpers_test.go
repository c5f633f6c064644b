package utils_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/Skryldev/imageprep/utils"
)

func TestFitDimensions(t *testing.T) {
	tests := []struct {
		name                   string
		srcW, srcH, maxW, maxH int
		preserve               bool
		wantW, wantH           int
	}{
		{"landscape halves", 2000, 1000, 1000, 1000, true, 1000, 500},
		{"portrait limited by height", 1000, 2000, 1000, 1000, true, 500, 1000},
		{"never upscales", 400, 300, 1920, 1080, true, 400, 300},
		{"rounds to nearest", 1001, 333, 500, 500, true, 500, 166},
		{"stretch clamps independently", 2000, 1000, 800, 800, false, 800, 800},
		{"stretch keeps small axis", 2000, 300, 800, 800, false, 800, 300},
		{"zero box means unbounded", 640, 480, 0, 0, true, 640, 480},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gotW, gotH := utils.FitDimensions(tc.srcW, tc.srcH, tc.maxW, tc.maxH, tc.preserve)
			if gotW != tc.wantW || gotH != tc.wantH {
				t.Errorf("FitDimensions(%d,%d,%d,%d,%v) = %d,%d; want %d,%d",
					tc.srcW, tc.srcH, tc.maxW, tc.maxH, tc.preserve, gotW, gotH, tc.wantW, tc.wantH)
			}
		})
	}
}

func TestQualityPercent(t *testing.T) {
	tests := map[float64]int{0: 1, 0.8: 80, 0.925: 93, 1: 100, 1.7: 100}
	for in, want := range tests {
		if got := utils.QualityPercent(in); got != want {
			t.Errorf("QualityPercent(%v) = %d; want %d", in, got, want)
		}
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0}, "jpeg"},
		{"png", []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}, "png"},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), "webp"},
		{"gif", []byte("GIF89a\x01\x00\x01\x00"), "gif"},
		{"text", []byte("hello world"), "unknown"},
		{"short", []byte{0xFF}, "unknown"},
	}
	for _, tc := range tests {
		if got := utils.DetectFormat(tc.data); got != tc.want {
			t.Errorf("%s: DetectFormat = %s; want %s", tc.name, got, tc.want)
		}
	}
}

func TestLimitedReader(t *testing.T) {
	ctx := context.Background()

	exact := &utils.LimitedReader{R: bytes.NewReader(make([]byte, 64)), Max: 64}
	data, err := utils.ReadAll(ctx, exact, 16)
	if err != nil {
		t.Fatalf("exact-size input: %v", err)
	}
	if len(data) != 64 {
		t.Fatalf("read %d bytes; want 64", len(data))
	}

	over := &utils.LimitedReader{R: bytes.NewReader(make([]byte, 65)), Max: 64}
	if _, err := utils.ReadAll(ctx, over, 16); !errors.Is(err, utils.ErrLimitExceeded) {
		t.Fatalf("oversized input: got %v; want ErrLimitExceeded", err)
	}
}
