// Package vsspath implements the dot/slash/query-form Path identifier used
// to address nodes in the signal tree. A Path's segment list generalizes the
// trapperkeeper teacher's internal/types.PathSegment (key/index/wildcard
// triple for JSON traversal) down to a named-segment/wildcard pair, since
// the signal tree has no array indices — only named branch children.
package vsspath

import (
	"errors"
	"strings"
)

// ErrInvalidPath is returned when a path string cannot be parsed: an empty
// segment, or a string that is empty or entirely separators.
var ErrInvalidPath = errors.New("invalid_path")

const wildcardSegment = "*"

// Path is a canonical identifier with three equivalent renderings. It
// remembers whether it was constructed from the dot form so responses can
// echo the caller's convention (spec.md §3).
type Path struct {
	segments []string
	fromDot  bool
}

// New parses a path given in legacy dot form, e.g. "Vehicle.Speed".
func New(dotted string) (Path, error) {
	p, err := parse(dotted, ".")
	if err != nil {
		return Path{}, err
	}
	p.fromDot = true
	return p, nil
}

// NewSlash parses a path given in canonical slash form, e.g. "Vehicle/Speed".
func NewSlash(slashed string) (Path, error) {
	return parse(slashed, "/")
}

// NewFromSegments builds a Path directly from an already-split segment list.
func NewFromSegments(segments []string, fromDot bool) (Path, error) {
	if len(segments) == 0 {
		return Path{}, ErrInvalidPath
	}
	for _, s := range segments {
		if s == "" {
			return Path{}, ErrInvalidPath
		}
	}
	return Path{segments: append([]string(nil), segments...), fromDot: fromDot}, nil
}

func parse(s, sep string) (Path, error) {
	if strings.TrimSpace(s) == "" {
		return Path{}, ErrInvalidPath
	}
	parts := strings.Split(s, sep)
	for _, part := range parts {
		if part == "" {
			return Path{}, ErrInvalidPath
		}
	}
	return Path{segments: parts}, nil
}

// Segments returns the path's dotted/slashed components, in root-to-leaf
// order. The wildcard segment "*" is returned as-is.
func (p Path) Segments() []string {
	return append([]string(nil), p.segments...)
}

// Dotted renders the legacy dot-delimited form.
func (p Path) Dotted() string {
	return strings.Join(p.segments, ".")
}

// Slashed renders the canonical slash-delimited form.
func (p Path) Slashed() string {
	return strings.Join(p.segments, "/")
}

// String renders the path in its origin convention (dot if constructed via
// New, slash otherwise), per spec.md §4.1.
func (p Path) String() string {
	if p.fromDot {
		return p.Dotted()
	}
	return p.Slashed()
}

// FromDot reports whether the path was constructed from the legacy dot form.
func (p Path) FromDot() bool {
	return p.fromDot
}

// HasWildcard reports whether any segment is the "*" wildcard.
func (p Path) HasWildcard() bool {
	for _, s := range p.segments {
		if s == wildcardSegment {
			return true
		}
	}
	return false
}

// Equal compares two paths by canonical slash form (spec.md §4.1).
func (p Path) Equal(other Path) bool {
	return p.Slashed() == other.Slashed()
}

// Join appends a child segment, preserving the receiver's origin convention.
func (p Path) Join(segment string) Path {
	return Path{segments: append(append([]string(nil), p.segments...), segment), fromDot: p.fromDot}
}
