// Package validation gates files against a ValidationPolicy.  Policy
// violations are reported as Result values, never as errors.
package validation

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/Skryldev/imageprep/core"
)

const (
	largeMegapixels = 12
	largeFileBytes  = 2 * 1024 * 1024

	notChecked = "Not checked"
)

// Details is display information about the checked file.
type Details struct {
	FileSize    string
	Dimensions  string // "W×H", or "Not checked" before decoding
	Type        string
	AspectRatio float64
}

// Result is the outcome of a check.  Valid false implies Error is set.
// Warnings never affect Valid.
type Result struct {
	Valid    bool
	Error    string
	Warnings []string
	Details  *Details
}

// Extractor decodes a file's dimensions.  metadata.Extractor implements it.
type Extractor interface {
	Extract(ctx context.Context, file *core.SourceFile) (core.ImageMetadata, error)
}

// Validator runs quick (no decode) and full (decoding) checks.
type Validator struct {
	extractor Extractor
	defaults  core.ValidationPolicy
}

// New returns a Validator.  Zero fields of the per-call policy fall back to
// defaults.
func New(ex Extractor, defaults core.ValidationPolicy) *Validator {
	return &Validator{extractor: ex, defaults: defaults}
}

func invalid(msg string, d *Details) Result {
	return Result{Valid: false, Error: msg, Details: d}
}

// QuickCheck checks size and declared type only.  It never decodes.
func (v *Validator) QuickCheck(file *core.SourceFile, policy core.ValidationPolicy) Result {
	policy = policy.Merge(v.defaults)
	if r, ok := preDecode(file, policy); !ok {
		return r
	}

	res := Result{
		Valid: true,
		Details: &Details{
			FileSize:   formatFileSize(file.Size()),
			Dimensions: notChecked,
			Type:       file.ContentType,
		},
	}
	if file.Size() > largeFileBytes {
		res.Warnings = append(res.Warnings, largeFileWarning(file.Size()))
	}
	return res
}

// FullCheck runs QuickCheck's checks, decodes the file and checks its
// dimensions and aspect ratio.
func (v *Validator) FullCheck(ctx context.Context, file *core.SourceFile, policy core.ValidationPolicy) Result {
	policy = policy.Merge(v.defaults)
	if r, ok := preDecode(file, policy); !ok {
		return r
	}

	details := &Details{
		FileSize:   formatFileSize(file.Size()),
		Dimensions: "Unknown",
		Type:       file.ContentType,
	}
	meta, err := v.extractor.Extract(ctx, file)
	if err != nil {
		return invalid(fmt.Sprintf("Unable to read image. The file may be corrupted or not a valid image (%v)", err), details)
	}
	details.Dimensions = fmt.Sprintf("%d×%d", meta.Width, meta.Height)
	details.AspectRatio = meta.AspectRatio

	switch {
	case policy.MaxWidth > 0 && meta.Width > policy.MaxWidth:
		return invalid(fmt.Sprintf("Image width %dpx exceeds maximum of %dpx", meta.Width, policy.MaxWidth), details)
	case policy.MaxHeight > 0 && meta.Height > policy.MaxHeight:
		return invalid(fmt.Sprintf("Image height %dpx exceeds maximum of %dpx", meta.Height, policy.MaxHeight), details)
	case policy.MinWidth > 0 && meta.Width < policy.MinWidth:
		return invalid(fmt.Sprintf("Image width %dpx is below minimum of %dpx", meta.Width, policy.MinWidth), details)
	case policy.MinHeight > 0 && meta.Height < policy.MinHeight:
		return invalid(fmt.Sprintf("Image height %dpx is below minimum of %dpx", meta.Height, policy.MinHeight), details)
	}

	if len(policy.AspectRatioRanges) > 0 && !inAnyRange(meta.AspectRatio, policy.AspectRatioRanges) {
		return invalid(fmt.Sprintf("Image aspect ratio %s is outside the allowed ranges (%s)",
			humanize.FtoaWithDigits(meta.AspectRatio, 2), describeRanges(policy.AspectRatioRanges)), details)
	}

	res := Result{Valid: true, Details: details}
	if meta.Megapixels > largeMegapixels {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("Large image (%s MP) may take longer to process", humanize.FtoaWithDigits(meta.Megapixels, 1)))
	}
	if file.Size() > largeFileBytes {
		res.Warnings = append(res.Warnings, largeFileWarning(file.Size()))
	}
	return res
}

// preDecode runs the size and type checks in order.  Failures carry no
// Details.
func preDecode(file *core.SourceFile, policy core.ValidationPolicy) (Result, bool) {
	if file == nil {
		return invalid("No file provided", nil), false
	}
	size := file.Size()
	if policy.MaxSize > 0 && size > policy.MaxSize {
		return invalid(fmt.Sprintf("File size %s exceeds maximum allowed size of %s",
			formatFileSize(size), formatFileSize(policy.MaxSize)), nil), false
	}
	if policy.MinSize > 0 && size < policy.MinSize {
		return invalid(fmt.Sprintf("File size %s is below minimum required size of %s",
			formatFileSize(size), formatFileSize(policy.MinSize)), nil), false
	}
	if !typeAllowed(file.ContentType, policy.AllowedTypes) {
		declared := file.ContentType
		if declared == "" {
			declared = "unknown"
		}
		return invalid(fmt.Sprintf("File type %s is not allowed. Allowed types: %s",
			declared, strings.Join(policy.AllowedTypes, ", ")), nil), false
	}
	return Result{}, true
}

func typeAllowed(ct string, allowed []string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	for _, a := range allowed {
		if strings.EqualFold(a, ct) {
			return true
		}
	}
	return false
}

func inAnyRange(ratio float64, ranges []core.AspectRange) bool {
	for _, r := range ranges {
		if r.Contains(ratio) {
			return true
		}
	}
	return false
}

func describeRanges(ranges []core.AspectRange) string {
	parts := make([]string, len(ranges))
	for i, r := range ranges {
		parts[i] = humanize.FtoaWithDigits(r.Min, 2) + "-" + humanize.FtoaWithDigits(r.Max, 2)
	}
	return strings.Join(parts, ", ")
}

func largeFileWarning(size int64) string {
	return fmt.Sprintf("Large file (%s) may take longer to upload", formatFileSize(size))
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// formatFileSize renders n in binary units with up to two decimals,
// e.g. "1.5 MB".
func formatFileSize(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}
	v, i := float64(n), 0
	for v >= 1024 && i < len(sizeUnits)-1 {
		v /= 1024
		i++
	}
	return humanize.FtoaWithDigits(v, 2) + " " + sizeUnits[i]
}
