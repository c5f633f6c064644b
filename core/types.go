package core

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"time"
)

// Format identifies an image codec.
type Format string

const (
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatWebP    Format = "webp"
	FormatGIF     Format = "gif"
	FormatUnknown Format = "unknown"
)

// MimeType returns the MIME type for f, or "" for FormatUnknown.
func (f Format) MimeType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatWebP:
		return "image/webp"
	case FormatGIF:
		return "image/gif"
	}
	return ""
}

// Extension returns the conventional file extension for f, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatJPEG:
		return ".jpg"
	case FormatPNG, FormatWebP, FormatGIF:
		return "." + string(f)
	}
	return ""
}

// FormatFromMime maps MIME types to Format values.
func FormatFromMime(ct string) Format {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch ct {
	case "image/jpeg", "image/jpg", "image/pjpeg":
		return FormatJPEG
	case "image/png":
		return FormatPNG
	case "image/webp":
		return FormatWebP
	case "image/gif":
		return FormatGIF
	}
	return FormatUnknown
}

// ColorSpace represents the image colour model.
type ColorSpace string

const (
	ColorSpaceRGB  ColorSpace = "rgb"
	ColorSpaceRGBA ColorSpace = "rgba"
	ColorSpaceCMYK ColorSpace = "cmyk"
	ColorSpaceGray ColorSpace = "gray"
)

// SourceFile is a caller-owned image blob with its declared metadata.
// The pipeline treats Data as read-only.
type SourceFile struct {
	Name         string
	ContentType  string // declared MIME type
	Data         []byte
	LastModified time.Time
}

// Size returns the byte length of the file.
func (f *SourceFile) Size() int64 { return int64(len(f.Data)) }

// Key identifies a file by name, size and modification time.
func (f *SourceFile) Key() FileKey {
	return FileKey{Name: f.Name, Size: f.Size(), LastModified: f.LastModified.UnixMilli()}
}

// FileKey is the identity used by preview registries.
type FileKey struct {
	Name         string
	Size         int64
	LastModified int64 // unix millis
}

// ImageMetadata is a read-only snapshot of a decoded file's properties.
type ImageMetadata struct {
	Width        int
	Height       int
	Size         int64
	MimeType     string
	Name         string
	LastModified time.Time
	AspectRatio  float64
	Megapixels   float64
	HasAlpha     bool // guessed from the MIME type
	IsAnimated   bool // guessed from the MIME type
}

// NewImageMetadata derives the computed fields from the file and its dimensions.
func NewImageMetadata(f *SourceFile, width, height int) ImageMetadata {
	m := ImageMetadata{
		Width:        width,
		Height:       height,
		Size:         f.Size(),
		MimeType:     f.ContentType,
		Name:         f.Name,
		LastModified: f.LastModified,
		Megapixels:   float64(width) * float64(height) / 1e6,
	}
	if height > 0 {
		m.AspectRatio = float64(width) / float64(height)
	}
	switch FormatFromMime(f.ContentType) {
	case FormatPNG:
		m.HasAlpha = true
	case FormatWebP:
		m.HasAlpha = true
		m.IsAnimated = true
	case FormatGIF:
		m.HasAlpha = true
		m.IsAnimated = true
	}
	return m
}

// AspectRange is an inclusive [Min, Max] range of width/height ratios.
type AspectRange struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Contains reports whether ratio lies within the range.
func (r AspectRange) Contains(ratio float64) bool { return ratio >= r.Min && ratio <= r.Max }

// ValidationPolicy configures the validator.  Zero-valued fields fall back to
// DefaultValidationPolicy when merged.
type ValidationPolicy struct {
	MaxSize           int64         `yaml:"max_size"`
	MinSize           int64         `yaml:"min_size"`
	AllowedTypes      []string      `yaml:"allowed_types"`
	MaxWidth          int           `yaml:"max_width"`
	MaxHeight         int           `yaml:"max_height"`
	MinWidth          int           `yaml:"min_width"`
	MinHeight         int           `yaml:"min_height"`
	AspectRatioRanges []AspectRange `yaml:"aspect_ratio_ranges"`
}

// DefaultValidationPolicy returns the policy used when callers supply none.
func DefaultValidationPolicy() ValidationPolicy {
	return ValidationPolicy{
		MaxSize:      5 * 1024 * 1024,
		AllowedTypes: []string{"image/jpeg", "image/jpg", "image/png", "image/webp", "image/gif"},
		MaxWidth:     4096,
		MaxHeight:    4096,
		MinWidth:     1,
		MinHeight:    1,
	}
}

// Merge returns p with every zero field taken from base.
func (p ValidationPolicy) Merge(base ValidationPolicy) ValidationPolicy {
	if p.MaxSize == 0 {
		p.MaxSize = base.MaxSize
	}
	if p.MinSize == 0 {
		p.MinSize = base.MinSize
	}
	if len(p.AllowedTypes) == 0 {
		p.AllowedTypes = base.AllowedTypes
	}
	if p.MaxWidth == 0 {
		p.MaxWidth = base.MaxWidth
	}
	if p.MaxHeight == 0 {
		p.MaxHeight = base.MaxHeight
	}
	if p.MinWidth == 0 {
		p.MinWidth = base.MinWidth
	}
	if p.MinHeight == 0 {
		p.MinHeight = base.MinHeight
	}
	if len(p.AspectRatioRanges) == 0 {
		p.AspectRatioRanges = base.AspectRatioRanges
	}
	return p
}

// SmoothingQuality selects the resampling kernel used when smoothing is enabled.
type SmoothingQuality string

const (
	SmoothingLow    SmoothingQuality = "low"
	SmoothingMedium SmoothingQuality = "medium"
	SmoothingHigh   SmoothingQuality = "high"
)

// ProcessingOptions controls a single transform.
type ProcessingOptions struct {
	MaxWidth            int              `yaml:"max_width"`
	MaxHeight           int              `yaml:"max_height"`
	Quality             float64          `yaml:"quality"` // fraction in [0,1]
	Format              FormatChoice     `yaml:"format"`
	PreserveAspectRatio bool             `yaml:"preserve_aspect_ratio"`
	EnableSmoothing     bool             `yaml:"enable_smoothing"`
	Smoothing           SmoothingQuality `yaml:"smoothing"`
	// TargetSize, when positive, lowers quality until the output fits.
	TargetSize int64 `yaml:"target_size"`
}

// DefaultProcessingOptions returns the options used when callers supply none.
func DefaultProcessingOptions() ProcessingOptions {
	return ProcessingOptions{
		MaxWidth:            1920,
		MaxHeight:           1080,
		Quality:             0.8,
		Format:              AutoFormat(),
		PreserveAspectRatio: true,
		EnableSmoothing:     true,
		Smoothing:           SmoothingHigh,
	}
}

// CompressionStats compares input and output sizes.
type CompressionStats struct {
	OriginalSize     int64
	CompressedSize   int64
	CompressionRatio float64 // compressed / original
	BytesSaved       int64
	PercentSaved     float64
}

// NewCompressionStats computes the stats for an original/compressed pair.
func NewCompressionStats(original, compressed int64) CompressionStats {
	s := CompressionStats{
		OriginalSize:   original,
		CompressedSize: compressed,
		BytesSaved:     original - compressed,
	}
	if original > 0 {
		s.CompressionRatio = float64(compressed) / float64(original)
		s.PercentSaved = (1 - s.CompressionRatio) * 100
	}
	return s
}

// Metadata holds codec-level information extracted during decode.
type Metadata struct {
	Width      int
	Height     int
	Format     Format
	ColorSpace ColorSpace
	HasAlpha   bool
	SizeBytes  int64
}

// ImageData is the in-memory representation passed through a pipeline.
// Data holds encoded bytes; Image holds the decoded pixel buffer when needed.
type ImageData struct {
	Data   []byte
	Format Format

	// Decoded pixel buffer: image.Image for the native backend, or a
	// backend-specific handle (see adapters/vips).
	Image interface{}

	Meta Metadata

	OriginalSize int64
}

// Release frees backend resources held by the decoded image.  It is safe to
// call more than once and on images that hold none.
func (d *ImageData) Release() {
	if d == nil {
		return
	}
	if c, ok := d.Image.(interface{ Close() }); ok {
		c.Close()
	}
}

// ProcessingResult is returned to the caller after a transform completes.
type ProcessingResult struct {
	Output   *SourceFile
	Metadata ImageMetadata
	Stats    CompressionStats

	// ProcessingTime covers dimension computation, decode, resize and encode.
	ProcessingTime time.Duration
	StepTimings    map[string]time.Duration
}

// Source abstracts where raw bytes come from before they become a SourceFile.
type Source struct {
	Reader       io.Reader
	ContentType  string // optional hint
	Name         string
	Size         int64 // -1 if unknown
	LastModified time.Time
}

// Step is the fundamental pipeline building block.  Each Step transforms an
// *ImageData value and must be safe for concurrent use across goroutines.
type Step interface {
	Name() string
	Execute(ctx context.Context, img *ImageData) (*ImageData, error)
}

// Hook is an optional observer invoked around pipeline steps.
type Hook interface {
	BeforeStep(ctx context.Context, stepName string, img *ImageData)
	AfterStep(ctx context.Context, stepName string, img *ImageData, d time.Duration, err error)
}

// RenameForFormat replaces the extension of name with the one for f.
func RenameForFormat(name string, f Format) string {
	ext := f.Extension()
	if ext == "" || name == "" {
		return name
	}
	return strings.TrimSuffix(name, filepath.Ext(name)) + ext
}
