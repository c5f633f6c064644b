// Package vips is the libvips codec backend.  Decoded images are held as
// *VipsImage handles; callers release them through core.ImageData.Release.
package vips

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"

	govips "github.com/davidbyttow/govips/v2/vips"

	"github.com/Skryldev/imageprep/core"
	apperrors "github.com/Skryldev/imageprep/errors"
	"github.com/Skryldev/imageprep/utils"
)

// BackendConfig configures the libvips backend.
type BackendConfig struct {
	DefaultQuality int
	MaxCacheSize   int
	MaxWorkers     int
	ReportLeaks    bool

	// Logger receives libvips messages.  LogLevel ("debug", "info", "warn",
	// "error") picks which of them are forwarded.
	Logger   core.Logger
	LogLevel string
}

var (
	startMu sync.Mutex
	started int
)

// Backend decodes, resizes and encodes through libvips.  One Backend serves
// every format; it is safe for concurrent use.
type Backend struct {
	cfg BackendConfig
}

// NewBackend starts libvips on first use and returns a Backend.
// Call Shutdown() when the backend is no longer needed.
func NewBackend(cfg BackendConfig) *Backend {
	if cfg.DefaultQuality <= 0 {
		cfg.DefaultQuality = 85
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU()
	}
	if cfg.Logger == nil {
		cfg.Logger = core.NopLogger{}
	}

	startMu.Lock()
	defer startMu.Unlock()
	if started == 0 {
		handler, verbosity := logRouting(cfg.Logger, cfg.LogLevel)
		govips.LoggingSettings(handler, verbosity)
		govips.Startup(&govips.Config{
			ConcurrencyLevel: cfg.MaxWorkers,
			MaxCacheSize:     cfg.MaxCacheSize,
			ReportLeaks:      cfg.ReportLeaks,
		})
		cfg.Logger.Info("vips.startup", "version", govips.Version)
	}
	started++
	return &Backend{cfg: cfg}
}

// Shutdown releases libvips once the last backend is shut down.
func (b *Backend) Shutdown() {
	startMu.Lock()
	defer startMu.Unlock()
	if started == 0 {
		return
	}
	started--
	if started == 0 {
		govips.Shutdown()
	}
}

// logRouting forwards libvips messages to logger, filtered by the
// application log level.
func logRouting(logger core.Logger, level string) (func(string, govips.LogLevel, string), govips.LogLevel) {
	verbosity := govips.LogLevelWarning
	switch level {
	case "debug":
		verbosity = govips.LogLevelInfo
	case "warn":
		verbosity = govips.LogLevelError
	case "error":
		verbosity = govips.LogLevelCritical
	}
	return func(domain string, lvl govips.LogLevel, msg string) {
		if lvl > verbosity {
			return
		}
		switch lvl {
		case govips.LogLevelError, govips.LogLevelCritical:
			logger.Error("vips", "domain", domain, "message", msg)
		case govips.LogLevelWarning:
			logger.Warn("vips", "domain", domain, "message", msg)
		default:
			logger.Debug("vips", "domain", domain, "message", msg)
		}
	}, verbosity
}

// ─── Decoder ──────────────────────────────────────────────────────────────────

func (b *Backend) CanDecode(f core.Format) bool {
	switch f {
	case core.FormatJPEG, core.FormatPNG, core.FormatWebP, core.FormatGIF:
		return true
	}
	return false
}

func (b *Backend) Decode(ctx context.Context, r io.Reader) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.decode", err)
	}

	raw, err := utils.ReadAll(ctx, r, 32*1024)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.decode.drain", err)
	}

	ref, err := govips.NewImageFromBuffer(raw)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.decode", err)
	}
	// Match the native JPEG decoder, which applies EXIF orientation.
	if err := ref.AutoRotate(); err != nil {
		ref.Close()
		return nil, apperrors.Wrap(apperrors.CategoryDecode, "vips.decode.rotate", err)
	}

	format := vipsFormatToCore(ref.Format())
	return &core.ImageData{
		Data:   raw,
		Format: format,
		Image:  &VipsImage{ref: ref},
		Meta: core.Metadata{
			Width:      ref.Width(),
			Height:     ref.Height(),
			Format:     format,
			ColorSpace: vipsInterpretationToColorSpace(ref.Interpretation()),
			HasAlpha:   ref.HasAlpha(),
			SizeBytes:  int64(len(raw)),
		},
		OriginalSize: int64(len(raw)),
	}, nil
}

// ─── Encoder ──────────────────────────────────────────────────────────────────

func (b *Backend) CanEncode(f core.Format) bool {
	switch f {
	case core.FormatJPEG, core.FormatPNG, core.FormatWebP:
		return true
	}
	return false
}

func (b *Backend) Encode(ctx context.Context, img *core.ImageData, opts core.EncodeOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode", err)
	}

	vi, ok := img.Image.(*VipsImage)
	if !ok || vi == nil {
		return nil, apperrors.New(apperrors.CategoryEncode, "vips.encode",
			fmt.Errorf("image must be decoded with the vips backend first"))
	}

	quality := opts.Quality
	if quality <= 0 {
		quality = b.cfg.DefaultQuality
	}

	var (
		buf []byte
		err error
	)
	switch img.Format {
	case core.FormatJPEG:
		p := govips.NewJpegExportParams()
		p.Quality, p.StripMetadata = quality, true
		buf, _, err = vi.ref.ExportJpeg(p)
	case core.FormatPNG:
		p := govips.NewPngExportParams()
		p.StripMetadata = true
		buf, _, err = vi.ref.ExportPng(p)
	case core.FormatWebP:
		p := govips.NewWebpExportParams()
		p.Quality, p.Lossless, p.StripMetadata = quality, opts.Lossless, true
		buf, _, err = vi.ref.ExportWebp(p)
	default:
		return nil, apperrors.New(apperrors.CategoryEncode, "vips.encode",
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, img.Format))
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryEncode, "vips.encode."+string(img.Format), err)
	}
	return buf, nil
}

// ─── VipsImage ────────────────────────────────────────────────────────────────

// VipsImage wraps a *govips.ImageRef for storage in core.ImageData.Image.
type VipsImage struct {
	ref  *govips.ImageRef
	once sync.Once
}

func (v *VipsImage) Width() int            { return v.ref.Width() }
func (v *VipsImage) Height() int           { return v.ref.Height() }
func (v *VipsImage) Ref() *govips.ImageRef { return v.ref }

// Close releases the libvips reference.  Further calls are no-ops.
func (v *VipsImage) Close() { v.once.Do(v.ref.Close) }

// ─── ResizeStep ───────────────────────────────────────────────────────────────

// ResizeStep resamples a VipsImage to exactly Width x Height in place.
type ResizeStep struct {
	Width, Height int
	Kernel        govips.Kernel
}

func (s *ResizeStep) Name() string { return "resize" }

func (s *ResizeStep) Execute(ctx context.Context, img *core.ImageData) (*core.ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	vi, ok := img.Image.(*VipsImage)
	if !ok || vi == nil {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(),
			fmt.Errorf("expected *VipsImage; use vips backend for decode"))
	}
	w, h := vi.ref.Width(), vi.ref.Height()
	if s.Width == w && s.Height == h {
		return img, nil
	}
	if s.Width <= 0 || s.Height <= 0 || w <= 0 || h <= 0 {
		return nil, apperrors.New(apperrors.CategoryPipeline, s.Name(), apperrors.ErrInvalidDimensions)
	}
	hscale := float64(s.Width) / float64(w)
	vscale := float64(s.Height) / float64(h)
	if err := vi.ref.ResizeWithVScale(hscale, vscale, s.Kernel); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryPipeline, s.Name(), err)
	}
	out := *img
	out.Meta.Width = vi.ref.Width()
	out.Meta.Height = vi.ref.Height()
	return &out, nil
}

// Kernel maps the smoothing options onto a libvips resampling kernel.
func Kernel(enabled bool, q core.SmoothingQuality) govips.Kernel {
	if !enabled {
		return govips.KernelNearest
	}
	if q == core.SmoothingHigh || q == "" {
		return govips.KernelLanczos3
	}
	return govips.KernelLinear
}

// Resizer builds the vips resize step for a transform.
func (b *Backend) Resizer(width, height int, opts core.ProcessingOptions) core.Step {
	return &ResizeStep{Width: width, Height: height, Kernel: Kernel(opts.EnableSmoothing, opts.Smoothing)}
}

// ─── RegisterVipsBackend ──────────────────────────────────────────────────────

// RegisterVipsBackend replaces the native codecs with libvips for all formats.
func RegisterVipsBackend(reg core.Registry, b *Backend) {
	for _, f := range []core.Format{core.FormatJPEG, core.FormatPNG, core.FormatWebP, core.FormatGIF} {
		reg.RegisterDecoder(f, b)
		if b.CanEncode(f) {
			reg.RegisterEncoder(f, b)
		}
	}
}

// ─── helpers ──────────────────────────────────────────────────────────────────

func vipsFormatToCore(f govips.ImageType) core.Format {
	switch f {
	case govips.ImageTypeJPEG:
		return core.FormatJPEG
	case govips.ImageTypePNG:
		return core.FormatPNG
	case govips.ImageTypeWEBP:
		return core.FormatWebP
	case govips.ImageTypeGIF:
		return core.FormatGIF
	default:
		return core.FormatUnknown
	}
}

func vipsInterpretationToColorSpace(i govips.Interpretation) core.ColorSpace {
	switch i {
	case govips.InterpretationBW:
		return core.ColorSpaceGray
	case govips.InterpretationCMYK:
		return core.ColorSpaceCMYK
	default:
		return core.ColorSpaceRGB
	}
}

// compile-time interface checks
var (
	_ core.Decoder = (*Backend)(nil)
	_ core.Encoder = (*Backend)(nil)
	_ core.Step    = (*ResizeStep)(nil)
)
