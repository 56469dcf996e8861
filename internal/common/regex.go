package common

import (
	"fmt"
	"regexp"
)

// CompilePattern compiles a user-supplied pattern, reporting failures as
// invalid configuration under the given setting name.
func CompilePattern(name, pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, fmt.Errorf("%w: %s is empty", ErrInvalidConfig, name)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, name, err)
	}
	return re, nil
}
