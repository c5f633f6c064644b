package errors

import (
	"errors"
	"fmt"
)

// Category classifies error types for targeted handling and monitoring.
type Category string

const (
	CategoryDecode     Category = "decode"
	CategoryEncode     Category = "encode"
	CategoryPipeline   Category = "pipeline"
	CategoryProcessing Category = "processing"
	CategoryValidation Category = "validation"
	CategoryProbe      Category = "probe"
	CategoryBatch      Category = "batch"
	CategoryStorage    Category = "storage"
	CategoryExport     Category = "export"
	CategoryConfig     Category = "config"
	CategoryInput      Category = "input"
)

// ProcessingError is the structured error type used throughout the module.
type ProcessingError struct {
	Category Category
	Op       string // operation name
	Err      error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Category, e.Op, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// New creates a ProcessingError.
func New(category Category, op string, err error) *ProcessingError {
	return &ProcessingError{Category: category, Op: op, Err: err}
}

// Wrap wraps an existing error with context.
func Wrap(category Category, op string, err error) error {
	if err == nil {
		return nil
	}
	return New(category, op, err)
}

// IsCategory reports whether any ProcessingError in err's chain belongs to cat.
func IsCategory(err error, cat Category) bool {
	for err != nil {
		var pe *ProcessingError
		if !errors.As(err, &pe) {
			return false
		}
		if pe.Category == cat {
			return true
		}
		err = pe.Err
	}
	return false
}

// CategoryOf returns the category of the outermost ProcessingError, or "".
func CategoryOf(err error) Category {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ""
}

// ItemError reports that one file failed after a number of attempts.
type ItemError struct {
	Name     string
	Attempts int
	Err      error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("failed to process %s after %d attempts: %v", e.Name, e.Attempts, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// BatchError is returned when every item of a batch failed.
type BatchError struct {
	Total    int
	Failures []*ItemError
}

func (e *BatchError) Error() string {
	if len(e.Failures) == 0 {
		return fmt.Sprintf("all %d images failed to process", e.Total)
	}
	first := e.Failures[0]
	return fmt.Sprintf("all %d images failed to process; first failure (%s): %v", e.Total, first.Name, first.Err)
}

// Unwrap exposes the first failure so errors.Is/As reach its cause.
func (e *BatchError) Unwrap() error {
	if len(e.Failures) == 0 {
		return nil
	}
	return e.Failures[0]
}

// Sentinel errors for common failure modes.
var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrInvalidDimensions = errors.New("invalid dimensions")
	ErrEmptyInput        = errors.New("empty input")
	ErrInputTooLarge     = errors.New("input exceeds maximum size")
	ErrRevoked           = errors.New("preview revoked")
	ErrNotFound          = errors.New("not found")
	ErrNoClipboard       = errors.New("no clipboard utility available")
)
