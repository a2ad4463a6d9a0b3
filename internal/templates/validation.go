package templates

import (
	"fmt"
	"strings"
)

// ValidateName checks that a template name is safe for use as a directory
// name. Dots are rejected so "." and ".." cannot be used.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	}
	if strings.ContainsAny(name, "/\\.\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
