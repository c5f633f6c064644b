package core

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type choiceKind uint8

const (
	choiceAuto choiceKind = iota
	choicePreferred
	choiceExplicit
)

// FormatChoice is the caller's output format request.  The zero value is
// AutoFormat.  A negotiator resolves it into a concrete Format.
type FormatChoice struct {
	kind   choiceKind
	format Format
}

// AutoFormat lets the negotiator pick from detected capabilities.
func AutoFormat() FormatChoice { return FormatChoice{} }

// PreferFormat asks for f when the host supports it, negotiating otherwise.
func PreferFormat(f Format) FormatChoice { return FormatChoice{kind: choicePreferred, format: f} }

// ExplicitFormat forces f regardless of capabilities.
func ExplicitFormat(f Format) FormatChoice { return FormatChoice{kind: choiceExplicit, format: f} }

func (c FormatChoice) IsAuto() bool { return c.kind == choiceAuto }

// Explicit returns the forced format, if any.
func (c FormatChoice) Explicit() (Format, bool) {
	return c.format, c.kind == choiceExplicit
}

// Preferred returns the preferred format, if any.
func (c FormatChoice) Preferred() (Format, bool) {
	return c.format, c.kind == choicePreferred
}

func (c FormatChoice) String() string {
	switch c.kind {
	case choicePreferred:
		return "prefer:" + string(c.format)
	case choiceExplicit:
		return string(c.format)
	}
	return "auto"
}

// ParseFormatChoice accepts "auto", a format name ("webp", "jpeg", "jpg",
// "png") or "prefer:<format>".
func ParseFormatChoice(s string) (FormatChoice, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "auto" {
		return AutoFormat(), nil
	}
	preferred := false
	if rest, ok := strings.CutPrefix(s, "prefer:"); ok {
		preferred = true
		s = rest
	}
	f, err := parseOutputFormat(s)
	if err != nil {
		return FormatChoice{}, err
	}
	if preferred {
		return PreferFormat(f), nil
	}
	return ExplicitFormat(f), nil
}

func parseOutputFormat(s string) (Format, error) {
	switch s {
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "webp":
		return FormatWebP, nil
	}
	return FormatUnknown, fmt.Errorf("unknown output format %q", s)
}

func (c FormatChoice) MarshalYAML() (interface{}, error) { return c.String(), nil }

func (c *FormatChoice) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseFormatChoice(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
