package core

import (
	"context"
	"io"
)

// Decoder converts raw bytes / a reader into an in-memory ImageData.
// Implementations live in adapters/decoder/ and adapters/vips/.
type Decoder interface {
	// Decode reads from r and returns a decoded ImageData.  Callers must
	// Release the result.
	Decode(ctx context.Context, r io.Reader) (*ImageData, error)
	// CanDecode reports whether this decoder handles the given format hint.
	CanDecode(format Format) bool
}

// Encoder serialises an ImageData to bytes in a target format.
// Implementations live in adapters/encoder/ and adapters/vips/.
type Encoder interface {
	Encode(ctx context.Context, img *ImageData, opts EncodeOptions) ([]byte, error)
	// CanEncode reports whether the encoder is usable for format in this build.
	CanEncode(format Format) bool
}

// EncodeOptions carries format-specific encoding parameters.
type EncodeOptions struct {
	Quality  int  // 1-100; 0 = use encoder default
	Lossless bool // WebP / PNG lossless mode
}

// MetricsCollector receives performance observations from the pipeline.
type MetricsCollector interface {
	RecordProcessingTime(stepName string, d interface{ Seconds() float64 })
	RecordThroughput(bytes int64)
	RecordError(stepName string, category string)
	RecordBatchItem(outcome string)
}

// Logger is a minimal structured logging interface.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}

// Registry maps Format values to Decoder/Encoder implementations.
type Registry interface {
	DecoderFor(format Format) (Decoder, bool)
	EncoderFor(format Format) (Encoder, bool)
	RegisterDecoder(format Format, d Decoder)
	RegisterEncoder(format Format, e Encoder)
}

// Processor runs a single transform.  transform.Engine implements it; the
// batch orchestrator depends only on this seam.
type Processor interface {
	Process(ctx context.Context, file *SourceFile, opts ProcessingOptions) (*ProcessingResult, error)
}
