// Package batch drives a Processor over many files in fixed-size windows.
package batch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Skryldev/imageprep/core"
	apperrors "github.com/Skryldev/imageprep/errors"
)

// DefaultConcurrency is the window size used when Options.Concurrency is 0.
const DefaultConcurrency = 3

// Item outcomes reported to the metrics collector.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeRetry   = "retry"
)

// ProgressFunc is called after each success with the number of files
// completed so far.  Calls arrive in completion order.
type ProgressFunc func(completed, total int, name string)

// ErrorFunc is called for each failed attempt.  attempt is 1 outside the
// retry variant.
type ErrorFunc func(err error, file *core.SourceFile, attempt int)

// Options configures ProcessBatch.
type Options struct {
	Concurrency int
	OnProgress  ProgressFunc
	OnError     ErrorFunc
	Processing  core.ProcessingOptions
}

// RetryOptions configures ProcessBatchWithRetry.
type RetryOptions struct {
	Options
	MaxRetries int           // attempts per file; default 3
	BaseDelay  time.Duration // backoff before attempt n+1 is BaseDelay·2^n; default 1s
}

// Orchestrator runs batches.  Safe for concurrent use.
type Orchestrator struct {
	proc    core.Processor
	metrics core.MetricsCollector
	logger  core.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics records item outcomes on m.
func WithMetrics(m core.MetricsCollector) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLogger attaches a structured logger.
func WithLogger(l core.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New returns an Orchestrator processing files with proc.
func New(proc core.Processor, opts ...Option) *Orchestrator {
	o := &Orchestrator{proc: proc, logger: core.NopLogger{}}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// callbacks serialises user callbacks and the completion counter.
type callbacks struct {
	mu        sync.Mutex
	total     int
	completed int
	progress  ProgressFunc
	onError   ErrorFunc
}

func (c *callbacks) success(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completed++
	if c.progress != nil {
		c.progress(c.completed, c.total, name)
	}
}

func (c *callbacks) failure(err error, file *core.SourceFile, attempt int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.onError != nil {
		c.onError(err, file, attempt)
	}
}

func (o *Orchestrator) record(outcome string) {
	if o.metrics != nil {
		o.metrics.RecordBatchItem(outcome)
	}
}

func windowSize(n int) int {
	if n <= 0 {
		return DefaultConcurrency
	}
	return n
}

// ProcessBatch processes files window by window.  Items in a window run
// concurrently and the next window starts once every item has settled.
// Failed items are reported through OnError and dropped.  When every item
// fails the call returns a *errors.BatchError; otherwise it returns the
// successes in submission order.  Cancelling ctx stops dispatching windows.
func (o *Orchestrator) ProcessBatch(ctx context.Context, files []*core.SourceFile, opts Options) ([]*core.ProcessingResult, error) {
	if len(files) == 0 {
		return []*core.ProcessingResult{}, nil
	}
	size := windowSize(opts.Concurrency)
	cb := &callbacks{total: len(files), progress: opts.OnProgress, onError: opts.OnError}

	results := make([]*core.ProcessingResult, len(files))
	failures := make([]*apperrors.ItemError, len(files))

	for start := 0; start < len(files); start += size {
		if err := ctx.Err(); err != nil {
			return collect(results), apperrors.Wrap(apperrors.CategoryBatch, "batch.process", err)
		}
		end := min(start+size, len(files))

		// Items never return errors to the group, so siblings are never aborted.
		var g errgroup.Group
		for i := start; i < end; i++ {
			file := files[i]
			g.Go(func() error {
				res, err := o.proc.Process(ctx, file, opts.Processing)
				if err != nil {
					failures[i] = &apperrors.ItemError{Name: file.Name, Attempts: 1, Err: err}
					o.record(OutcomeFailure)
					o.logger.Warn("batch.item.failed", "file", file.Name, "error", err.Error())
					cb.failure(err, file, 1)
					return nil
				}
				results[i] = res
				o.record(OutcomeSuccess)
				cb.success(file.Name)
				return nil
			})
		}
		_ = g.Wait()
	}

	succeeded := collect(results)
	if len(succeeded) == 0 {
		return nil, &apperrors.BatchError{Total: len(files), Failures: compact(failures)}
	}
	return succeeded, nil
}

// ProcessBatchWithRetry processes files like ProcessBatch but retries each
// failed item up to MaxRetries attempts with exponential backoff.  A file
// exhausting its attempts aborts the whole call with an *errors.ItemError;
// pending backoffs of its window siblings are cancelled.
func (o *Orchestrator) ProcessBatchWithRetry(ctx context.Context, files []*core.SourceFile, opts RetryOptions) ([]*core.ProcessingResult, error) {
	if len(files) == 0 {
		return []*core.ProcessingResult{}, nil
	}
	size := windowSize(opts.Concurrency)
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	cb := &callbacks{total: len(files), progress: opts.OnProgress, onError: opts.OnError}
	results := make([]*core.ProcessingResult, len(files))

	for start := 0; start < len(files); start += size {
		end := min(start+size, len(files))

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			file := files[i]
			g.Go(func() error {
				res, err := o.withRetry(gctx, file, opts.Processing, maxRetries, baseDelay, cb)
				if err != nil {
					return err
				}
				results[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (o *Orchestrator) withRetry(ctx context.Context, file *core.SourceFile, opts core.ProcessingOptions,
	maxRetries int, baseDelay time.Duration, cb *callbacks) (*core.ProcessingResult, error) {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		res, err := o.proc.Process(ctx, file, opts)
		if err == nil {
			o.record(OutcomeSuccess)
			cb.success(file.Name)
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, apperrors.Wrap(apperrors.CategoryBatch, "batch.retry", ctx.Err())
		}
		lastErr = err
		cb.failure(err, file, attempt)
		o.logger.Warn("batch.item.attempt_failed", "file", file.Name, "attempt", attempt, "error", err.Error())

		if attempt == maxRetries {
			break
		}
		o.record(OutcomeRetry)
		delay := baseDelay * time.Duration(1<<attempt)
		select {
		case <-ctx.Done():
			return nil, apperrors.Wrap(apperrors.CategoryBatch, "batch.retry", ctx.Err())
		case <-time.After(delay):
		}
	}
	o.record(OutcomeFailure)
	return nil, &apperrors.ItemError{Name: file.Name, Attempts: maxRetries, Err: lastErr}
}

func collect(results []*core.ProcessingResult) []*core.ProcessingResult {
	out := make([]*core.ProcessingResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func compact(failures []*apperrors.ItemError) []*apperrors.ItemError {
	out := make([]*apperrors.ItemError, 0, len(failures))
	for _, f := range failures {
		if f != nil {
			out = append(out, f)
		}
	}
	return out
}
