// Package hooks provides the pipeline observers (step logging and metrics)
// and the core.Logger and core.MetricsCollector implementations behind them.
package hooks

import (
	"context"
	"time"

	"github.com/Skryldev/imageprep/core"
	apperrors "github.com/Skryldev/imageprep/errors"
)

// LoggingHook logs every pipeline step at debug, and failed steps at warn.
type LoggingHook struct {
	logger core.Logger
}

// NewLoggingHook creates a LoggingHook writing to l.
func NewLoggingHook(l core.Logger) *LoggingHook { return &LoggingHook{logger: l} }

func (h *LoggingHook) BeforeStep(_ context.Context, stepName string, img *core.ImageData) {
	fields := []interface{}{"step", stepName}
	if img != nil {
		fields = append(fields, "format", string(img.Format), "width", img.Meta.Width, "height", img.Meta.Height)
	}
	h.logger.Debug("step.begin", fields...)
}

func (h *LoggingHook) AfterStep(_ context.Context, stepName string, img *core.ImageData, d time.Duration, err error) {
	if err != nil {
		h.logger.Warn("step.failed",
			"step", stepName,
			"category", string(categoryOf(err)),
			"duration_ms", d.Milliseconds(),
			"error", err.Error(),
		)
		return
	}
	fields := []interface{}{"step", stepName, "duration_ms", d.Milliseconds()}
	if img != nil {
		fields = append(fields, "width", img.Meta.Width, "height", img.Meta.Height, "bytes", img.Meta.SizeBytes)
	}
	h.logger.Debug("step.end", fields...)
}

// MetricsHook feeds step durations, failures and output sizes into a
// MetricsCollector.
type MetricsHook struct {
	collector core.MetricsCollector
}

// NewMetricsHook creates a MetricsHook.
func NewMetricsHook(c core.MetricsCollector) *MetricsHook { return &MetricsHook{collector: c} }

func (h *MetricsHook) BeforeStep(context.Context, string, *core.ImageData) {}

func (h *MetricsHook) AfterStep(_ context.Context, stepName string, img *core.ImageData, d time.Duration, err error) {
	h.collector.RecordProcessingTime(stepName, d)
	if err != nil {
		h.collector.RecordError(stepName, string(categoryOf(err)))
		return
	}
	if img != nil {
		h.collector.RecordThroughput(img.Meta.SizeBytes)
	}
}

// categoryOf defaults uncategorised failures to the pipeline category.
func categoryOf(err error) apperrors.Category {
	if c := apperrors.CategoryOf(err); c != "" {
		return c
	}
	return apperrors.CategoryPipeline
}

var (
	_ core.Hook = (*LoggingHook)(nil)
	_ core.Hook = (*MetricsHook)(nil)
)
