// Package yamlutil wraps YAML parsing to isolate the external dependency.
// It also splits YAML frontmatter off Markdown sources.
package yamlutil

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-yaml"
)

// MaxInputSize bounds a YAML document (1MB). Frontmatter, config files and
// template option files are all far below it.
const MaxInputSize = 1 << 20

var (
	ErrNilData        = errors.New("yamlutil: nil or empty data")
	ErrNilDestination = errors.New("yamlutil: nil destination pointer")
	ErrInputTooLarge  = errors.New("yamlutil: input exceeds maximum size")
	ErrUnterminated   = errors.New("yamlutil: unterminated frontmatter")
)

// Unmarshal decodes data into v, ignoring unknown keys. Frontmatter uses
// it, since documents carry keys meant for templates only.
func Unmarshal(data []byte, v any) error {
	return decode(data, v)
}

// UnmarshalStrict decodes data into v and rejects unknown keys, so typos
// in config files surface as errors.
func UnmarshalStrict(data []byte, v any) error {
	return decode(data, v, yaml.Strict())
}

// Marshal encodes v, used for pandoc metadata files and book configs.
func Marshal(v any) ([]byte, error) {
	out, err := yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("yamlutil: %w", err)
	}
	return out, nil
}

func decode(data []byte, v any, opts ...yaml.DecodeOption) error {
	switch {
	case len(data) == 0:
		return ErrNilData
	case len(data) > MaxInputSize:
		return fmt.Errorf("%w: %d bytes (max %d)", ErrInputTooLarge, len(data), MaxInputSize)
	case v == nil:
		return ErrNilDestination
	}
	if err := yaml.UnmarshalWithOptions(data, v, opts...); err != nil {
		return fmt.Errorf("yamlutil: %w", err)
	}
	return nil
}

// SplitFrontmatter separates a leading "---" delimited YAML block from the
// body. The block may be closed by "---" or "...". Content without
// frontmatter is returned unchanged as body with nil front.
func SplitFrontmatter(content []byte) (front, body []byte, err error) {
	content = bytes.TrimPrefix(content, []byte("\ufeff"))
	first, rest, _ := cutLine(content)
	if string(bytes.TrimRight(first, " \t\r")) != "---" {
		return nil, content, nil
	}

	start := rest
	for len(rest) > 0 {
		var line []byte
		offset := len(start) - len(rest)
		line, rest, _ = cutLine(rest)
		trimmed := string(bytes.TrimRight(line, " \t\r"))
		if trimmed == "---" || trimmed == "..." {
			return start[:offset], rest, nil
		}
	}
	return nil, nil, ErrUnterminated
}

// cutLine splits b at the first newline. ok reports whether one was found.
func cutLine(b []byte) (line, rest []byte, ok bool) {
	i := bytes.IndexByte(b, '\n')
	if i < 0 {
		return b, nil, false
	}
	return b[:i], b[i+1:], true
}
