// Package imageprep validates, transforms and previews user-supplied images.
//
// A Pipeline wires the capability detector, metadata extractor, validator,
// format negotiator, transform engine, batch orchestrator and preview
// registry around one codec registry.  Use the subpackages directly for
// finer control.
package imageprep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Skryldev/imageprep/adapters"
	"github.com/Skryldev/imageprep/adapters/vips"
	"github.com/Skryldev/imageprep/batch"
	"github.com/Skryldev/imageprep/capability"
	"github.com/Skryldev/imageprep/config"
	"github.com/Skryldev/imageprep/core"
	apperrors "github.com/Skryldev/imageprep/errors"
	"github.com/Skryldev/imageprep/hooks"
	"github.com/Skryldev/imageprep/metadata"
	"github.com/Skryldev/imageprep/negotiator"
	"github.com/Skryldev/imageprep/preview"
	"github.com/Skryldev/imageprep/transform"
	"github.com/Skryldev/imageprep/utils"
	"github.com/Skryldev/imageprep/validation"
)

// Re-export Format constants for convenience.
const (
	JPEG = core.FormatJPEG
	PNG  = core.FormatPNG
	WebP = core.FormatWebP
)

// DefaultConfig returns a sensible production configuration.
func DefaultConfig() config.Config { return config.Default() }

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger attaches a structured logger; pipeline steps are logged at debug.
func WithLogger(l core.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithMetrics feeds step and batch metrics into m.
func WithMetrics(m core.MetricsCollector) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithHook registers an extra pipeline step observer.
func WithHook(h core.Hook) Option {
	return func(p *Pipeline) { p.hooks = append(p.hooks, h) }
}

// WithDetector replaces the capability detector.
func WithDetector(d *capability.Detector) Option {
	return func(p *Pipeline) { p.detector = d }
}

// Pipeline is the primary entry point.  Safe for concurrent use.
type Pipeline struct {
	cfg config.Config

	reg      *core.DefaultRegistry
	backend  *vips.Backend
	detector *capability.Detector

	extractor  *metadata.Extractor
	validator  *validation.Validator
	negotiator *negotiator.Negotiator
	engine     *transform.Engine
	batch      *batch.Orchestrator

	store    *preview.ObjectStore
	previews *preview.Manager

	logger  core.Logger
	metrics core.MetricsCollector
	hooks   []core.Hook
}

// New validates cfg and returns a fully wired Pipeline.  With the vips
// backend, call Close to release libvips.
func New(cfg config.Config, opts ...Option) (*Pipeline, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryConfig, "imageprep.new", err)
	}
	p := &Pipeline{cfg: cfg, logger: core.NopLogger{}}
	for _, o := range opts {
		o(p)
	}

	quality := utils.QualityPercent(cfg.Processing.Quality)
	p.reg = adapters.NewNativeRegistry(quality)

	var engineOpts []transform.Option
	if cfg.Backend == config.BackendVips {
		p.backend = vips.NewBackend(vips.BackendConfig{
			DefaultQuality: quality,
			Logger:         p.logger,
			LogLevel:       cfg.LogLevel,
		})
		vips.RegisterVipsBackend(p.reg, p.backend)
		engineOpts = append(engineOpts, transform.WithResizer(p.backend.Resizer))
	}

	if p.detector == nil {
		if p.backend == nil {
			p.detector = capability.Shared()
		} else {
			p.detector = capability.NewDetector(capability.RegistryProber{Registry: p.reg}, capability.WithLogger(p.logger))
		}
	}

	stepHooks := []core.Hook{hooks.NewLoggingHook(p.logger)}
	if p.metrics != nil {
		stepHooks = append(stepHooks, hooks.NewMetricsHook(p.metrics))
	}
	stepHooks = append(stepHooks, p.hooks...)
	engineOpts = append(engineOpts, transform.WithHooks(stepHooks...), transform.WithLogger(p.logger))

	p.extractor = metadata.New(p.reg)
	p.validator = validation.New(p.extractor, cfg.Validation)
	p.negotiator = negotiator.New(p.detector)
	p.engine = transform.New(p.reg, p.extractor, p.negotiator, engineOpts...)

	batchOpts := []batch.Option{batch.WithLogger(p.logger)}
	if p.metrics != nil {
		batchOpts = append(batchOpts, batch.WithMetrics(p.metrics))
	}
	p.batch = batch.New(p.engine, batchOpts...)

	p.store = preview.NewObjectStore(cfg.Preview.BaseURL)
	var handleOpts []preview.Option
	if cfg.Preview.AutoRevoke {
		handleOpts = append(handleOpts, preview.WithDelay(cfg.Preview.RevokeDelay))
	} else {
		handleOpts = append(handleOpts, preview.WithoutAutoRevoke())
	}
	p.previews = preview.NewManager(p.store, cfg.Preview.Capacity, handleOpts...)
	p.previews.SetLogger(p.logger)

	p.logger.Debug("imageprep.ready", "backend", string(cfg.Backend), "encoders", fmt.Sprint(p.reg.EncodableFormats()))
	return p, nil
}

// Close revokes every preview and shuts down the vips backend, if any.
func (p *Pipeline) Close() {
	p.previews.Cleanup()
	if p.backend != nil {
		p.backend.Shutdown()
	}
}

// Config returns the configuration the pipeline was built with.
func (p *Pipeline) Config() config.Config { return p.cfg }

// Registry exposes the codec registry for custom decoders and encoders.
func (p *Pipeline) Registry() *core.DefaultRegistry { return p.reg }

// ── Capabilities ──────────────────────────────────────────────────────────────

// Supports reports whether the backend supports a WebP feature.
func (p *Pipeline) Supports(ctx context.Context, f capability.Feature) bool {
	return p.detector.Supports(ctx, f)
}

// Capabilities returns the full capability snapshot.
func (p *Pipeline) Capabilities(ctx context.Context) capability.Snapshot {
	return p.detector.Snapshot(ctx)
}

// ── Metadata & validation ────────────────────────────────────────────────────

// ExtractMetadata decodes file and returns its metadata.
func (p *Pipeline) ExtractMetadata(ctx context.Context, file *core.SourceFile) (core.ImageMetadata, error) {
	return p.extractor.Extract(ctx, file)
}

// QuickCheck validates size and declared type without decoding.  Zero
// policy fields take the configured defaults.
func (p *Pipeline) QuickCheck(file *core.SourceFile, policy core.ValidationPolicy) validation.Result {
	return p.validator.QuickCheck(file, policy)
}

// FullCheck validates file including its decoded dimensions.
func (p *Pipeline) FullCheck(ctx context.Context, file *core.SourceFile, policy core.ValidationPolicy) validation.Result {
	return p.validator.FullCheck(ctx, file, policy)
}

// ── Transform ────────────────────────────────────────────────────────────────

// DefaultOptions returns the configured processing options.
func (p *Pipeline) DefaultOptions() core.ProcessingOptions { return p.cfg.Processing }

// ChooseFormat resolves choice into the output format for file.
func (p *Pipeline) ChooseFormat(ctx context.Context, file *core.SourceFile, choice core.FormatChoice) core.Format {
	return p.negotiator.Choose(ctx, file, choice)
}

// processing substitutes the configured options for a zero value.
func (p *Pipeline) processing(opts core.ProcessingOptions) core.ProcessingOptions {
	if opts == (core.ProcessingOptions{}) {
		return p.cfg.Processing
	}
	return opts
}

// Process transforms a single file.  Zero opts mean DefaultOptions; partial
// options are used as given, so start from DefaultOptions to override fields.
func (p *Pipeline) Process(ctx context.Context, file *core.SourceFile, opts core.ProcessingOptions) (*core.ProcessingResult, error) {
	return p.engine.Process(ctx, file, p.processing(opts))
}

// ProcessBatch transforms files in windows of opts.Concurrency (the
// configured concurrency when 0).  Zero processing options are resolved as
// in Process.
func (p *Pipeline) ProcessBatch(ctx context.Context, files []*core.SourceFile, opts batch.Options) ([]*core.ProcessingResult, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = p.cfg.Batch.Concurrency
	}
	opts.Processing = p.processing(opts.Processing)
	return p.batch.ProcessBatch(ctx, files, opts)
}

// ProcessBatchWithRetry is ProcessBatch with per-item retries; zero retry
// settings take the configured values.
func (p *Pipeline) ProcessBatchWithRetry(ctx context.Context, files []*core.SourceFile, opts batch.RetryOptions) ([]*core.ProcessingResult, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = p.cfg.Batch.Concurrency
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = p.cfg.Batch.MaxRetries
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = p.cfg.Batch.RetryBaseDelay
	}
	opts.Processing = p.processing(opts.Processing)
	return p.batch.ProcessBatchWithRetry(ctx, files, opts)
}

// ── Previews ─────────────────────────────────────────────────────────────────

// CreatePreview returns a standalone handle outside the bounded registry.
func (p *Pipeline) CreatePreview(file *core.SourceFile, opts ...preview.Option) *preview.Handle {
	return preview.New(p.store, file, opts...)
}

// Preview returns the registry's handle for file, creating it when needed.
func (p *Pipeline) Preview(file *core.SourceFile) *preview.Handle { return p.previews.Get(file) }

// RemovePreview revokes the registry's handle for file.
func (p *Pipeline) RemovePreview(file *core.SourceFile) { p.previews.Remove(file) }

// CleanupPreviews revokes every registered handle.
func (p *Pipeline) CleanupPreviews() { p.previews.Cleanup() }

// ActivePreviews returns the number of registered handles.
func (p *Pipeline) ActivePreviews() int { return p.previews.ActiveCount() }

// Previews exposes the preview registry.
func (p *Pipeline) Previews() *preview.Manager { return p.previews }

// ── Source constructors ───────────────────────────────────────────────────────

// NewFile wraps in-memory bytes.  An empty contentType is sniffed.
func NewFile(name, contentType string, data []byte) *core.SourceFile {
	if contentType == "" {
		contentType = utils.DetectMime(data)
	}
	return &core.SourceFile{Name: name, ContentType: contentType, Data: data}
}

// FromReader drains src, honouring the configured MaxImageBytes and
// ChunkSize.
func (p *Pipeline) FromReader(ctx context.Context, src core.Source) (*core.SourceFile, error) {
	if src.Reader == nil {
		return nil, apperrors.New(apperrors.CategoryInput, "imageprep.from_reader", apperrors.ErrEmptyInput)
	}
	if p.cfg.MaxImageBytes > 0 && src.Size > p.cfg.MaxImageBytes {
		return nil, apperrors.New(apperrors.CategoryInput, "imageprep.from_reader", apperrors.ErrInputTooLarge)
	}
	var r io.Reader = &utils.LimitedReader{R: src.Reader, Max: p.cfg.MaxImageBytes}
	data, err := utils.ReadAll(ctx, r, p.cfg.ChunkSize)
	if err != nil {
		if errors.Is(err, utils.ErrLimitExceeded) {
			err = apperrors.ErrInputTooLarge
		}
		return nil, apperrors.Wrap(apperrors.CategoryInput, "imageprep.from_reader", err)
	}
	file := NewFile(src.Name, src.ContentType, data)
	file.LastModified = src.LastModified
	return file, nil
}

// FromPath reads a file from disk, sniffing its content type.
func (p *Pipeline) FromPath(ctx context.Context, path string) (*core.SourceFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryInput, "imageprep.from_path", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryInput, "imageprep.from_path", err)
	}
	return p.FromReader(ctx, core.Source{
		Reader:       f,
		Name:         filepath.Base(path),
		Size:         info.Size(),
		LastModified: info.ModTime(),
	})
}
