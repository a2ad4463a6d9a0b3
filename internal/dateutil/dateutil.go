// Package dateutil expands date placeholders found in document frontmatter.
package dateutil

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidDateFormat reports a date pattern that cannot be expanded.
var ErrInvalidDateFormat = errors.New("invalid date format")

// maxPatternLength bounds user patterns.
const maxPatternLength = 50

// Named patterns accepted after "today:".
var presets = map[string]string{
	"iso":      "YYYY-MM-DD",
	"european": "DD/MM/YYYY",
	"us":       "MM/DD/YYYY",
	"long":     "MMMM D, YYYY",
}

// tokens maps pattern tokens to time layout elements, longest first.
var tokens = [...][2]string{
	{"YYYY", "2006"},
	{"MMMM", "January"},
	{"MMM", "Jan"},
	{"YY", "06"},
	{"MM", "01"},
	{"DD", "02"},
	{"M", "1"},
	{"D", "2"},
}

// Layout converts a pattern such as "DD/MM/YYYY" to a time layout.
// Text in square brackets is copied verbatim.
func Layout(pattern string) (string, error) {
	switch {
	case pattern == "":
		return "", fmt.Errorf("%w: empty pattern", ErrInvalidDateFormat)
	case len(pattern) > maxPatternLength:
		return "", fmt.Errorf("%w: pattern longer than %d characters", ErrInvalidDateFormat, maxPatternLength)
	}

	var b strings.Builder
	rest := pattern
	for rest != "" {
		if rest[0] == '[' {
			lit, after, ok := strings.Cut(rest[1:], "]")
			if !ok {
				return "", fmt.Errorf("%w: unclosed bracket in %q", ErrInvalidDateFormat, pattern)
			}
			b.WriteString(lit)
			rest = after
			continue
		}
		n := 1
		out := rest[:1]
		for _, tok := range tokens {
			if strings.HasPrefix(rest, tok[0]) {
				n, out = len(tok[0]), tok[1]
				break
			}
		}
		b.WriteString(out)
		rest = rest[n:]
	}
	return b.String(), nil
}

// Expand resolves "today" and "today:PATTERN" (or a preset name) against
// now. "auto" is accepted as an alias of "today". Other values are
// returned unchanged.
func Expand(value string, now time.Time) (string, error) {
	head, pattern, hasPattern := strings.Cut(value, ":")
	switch strings.ToLower(strings.TrimSpace(head)) {
	case "today", "auto":
	default:
		return value, nil
	}
	if !hasPattern {
		pattern = presets["iso"]
	} else if p, ok := presets[strings.ToLower(pattern)]; ok {
		pattern = p
	}
	layout, err := Layout(pattern)
	if err != nil {
		return "", err
	}
	return now.Format(layout), nil
}
