package document

import (
	"errors"
	"fmt"
)

// ErrUnsupportedSource reports a source the loader cannot read.
var ErrUnsupportedSource = errors.New("unsupported source type")

// Document is a loaded source file.
type Document struct {
	Path   string
	Front  Frontmatter
	Body   []byte // content without frontmatter
	Title  string // frontmatter title, else first level-1 heading
	Images []Image
}

// Image is one image reference in the body, in order of appearance.
type Image struct {
	Key      string // "image-N", unique within the document
	Src      string // as written in the source
	URL      string // fetchable URL (http(s) or file://)
	Name     string // explicit name from the image title, may be empty
	FileName string // base name of the source path without extension
	HTML     bool   // found in a raw HTML <img> tag
}

// Frontmatter holds the recognized frontmatter keys. Raw keeps every key,
// so unknown ones still reach templates as metadata.
type Frontmatter struct {
	Title        string     `yaml:"title"`
	Subtitle     string     `yaml:"subtitle"`
	Authors      StringList `yaml:"authors"`
	Date         string     `yaml:"date"`
	Project      string     `yaml:"project"`
	Bibliography StringList `yaml:"bibliography"`
	Exports      []Export   `yaml:"exports"`

	Raw map[string]any `yaml:"-"`
}

// Export is one entry of the frontmatter exports list. Keys other than
// format, template and output are template options.
type Export struct {
	Format   string
	Template string
	Output   string
	Options  map[string]any
}

// UnmarshalYAML splits known keys from template options.
func (e *Export) UnmarshalYAML(unmarshal func(any) error) error {
	var raw map[string]any
	if err := unmarshal(&raw); err != nil {
		return err
	}
	for k, v := range raw {
		switch k {
		case "format", "template", "output":
			s, ok := v.(string)
			if !ok && v != nil {
				return fmt.Errorf("exports: %s must be a string, got %T", k, v)
			}
			switch k {
			case "format":
				e.Format = s
			case "template":
				e.Template = s
			case "output":
				e.Output = s
			}
		default:
			if e.Options == nil {
				e.Options = make(map[string]any)
			}
			e.Options[k] = v
		}
	}
	if e.Format == "" {
		return errors.New("exports: entry without format")
	}
	return nil
}

// StringList accepts either a single string or a list of strings.
type StringList []string

// UnmarshalYAML decodes a scalar or a sequence.
func (s *StringList) UnmarshalYAML(unmarshal func(any) error) error {
	var one string
	if err := unmarshal(&one); err == nil {
		if one != "" {
			*s = StringList{one}
		}
		return nil
	}
	var many []string
	if err := unmarshal(&many); err != nil {
		return err
	}
	*s = many
	return nil
}
