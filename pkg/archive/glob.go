package archive

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// NoFilter is the filter sentinel selecting every match.
const NoFilter = "ALL"

// Glob lists paths matching pattern under root, sorted lexicographically.
//
// When filter is neither empty nor NoFilter (in any case), only paths whose
// base name contains filter are returned.
//
// Nothing matching is an empty list, not an error.
func Glob(root, pattern, filter string) []string {
	matches, err := doublestar.FilepathGlob(filepath.Join(root, pattern))
	if err != nil {
		// only doublestar.ErrBadPattern. patterns are fixed in this package.
		return []string{}
	}

	filtering := filter != "" && !strings.EqualFold(filter, NoFilter)
	found := make([]string, 0, len(matches))
	for _, m := range matches {
		if filtering && !strings.Contains(filepath.Base(m), filter) {
			continue
		}
		found = append(found, m)
	}
	sort.Strings(found)
	return found
}

// ScanName derives a scan name from a resource path by dropping the last `_suffix`.
//
//	tfMRI_GUESSING_AP_preproc -> tfMRI_GUESSING_AP
//	/.../T1w_MPR1_unproc      -> T1w_MPR1
func ScanName(resource string) string {
	name := filepath.Base(resource)
	if i := strings.LastIndex(name, "_"); 0 < i {
		return name[:i]
	}
	return name
}

func ScanNames(resources []string) []string {
	names := make([]string, 0, len(resources))
	for _, r := range resources {
		names = append(names, ScanName(r))
	}
	return names
}

// IsRestingState tells a scan name is a resting state fMRI.
func IsRestingState(scan string) bool {
	return strings.HasPrefix(scan, "rfMRI")
}

// IsTask tells a scan name is a task fMRI.
func IsTask(scan string) bool {
	return strings.HasPrefix(scan, "tfMRI")
}
