package overlay

import (
	"fmt"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// Match reports whether the relative path matches pattern.
//
// Patterns are slash-separated. A "**" segment matches any number of
// segments, including none.
//
//	Match("**/*.ica/mc/**", "100307_3T/MNINonLinear/Results/rfMRI_REST/rfMRI_REST_hp2000.ica/mc/prefiltered_func_data_mcf.par") // true
func Match(pattern, rel string) (bool, error) {
	return doublestar.Match(pattern, filepath.ToSlash(rel))
}

// ValidatePattern returns doublestar.ErrBadPattern when pattern cannot be matched.
func ValidatePattern(pattern string) error {
	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("%w: %s", doublestar.ErrBadPattern, pattern)
	}
	return nil
}
