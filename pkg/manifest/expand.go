// Package manifest expands expected-file manifests.
//
// A manifest lists the files a pipeline is expected to produce:
//
//	# comment
//	{subjectid} MNINonLinear T1w.nii.gz          # -> 100307_3T/MNINonLinear/T1w.nii.gz
//	{subjectid} MNINonLinear Results {scan} {scan}.nii.gz
//
// Whitespace between tokens is the path separator.
package manifest

import (
	"path/filepath"
	"sort"
	"strings"

	xe "github.com/humanconnectome/hcp-pipelines/pkg/errors"
)

// Substitutions maps placeholder keys (without braces) to values.
type Substitutions map[string]string

const (
	KeySubjectID = "subjectid"
	KeyScan      = "scan"
)

// Expand turns a manifest into relative file paths, in manifest order.
//
// Placeholders not in subs are left untouched.
// Tokens are joined as they are, so ".." and empty values stay in the paths.
//
// A value containing "#" is a configuration error, so no path carries it.
func Expand(text string, subs Substitutions) ([]string, error) {
	keys := make([]string, 0, len(subs))
	for k, v := range subs {
		if strings.Contains(v, "#") {
			return nil, xe.Configuration("manifest substitution {%s} contains '#': %q", k, v)
		}
		keys = append(keys, k)
	}
	// longer keys first, so "{scan}" does not eat into "{scan_name}" style keys.
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	paths := []string{}
	for _, line := range strings.Split(text, "\n") {
		if i := strings.IndexByte(line, '#'); 0 <= i {
			line = line[:i]
		}
		tokens := strings.Fields(line)
		if len(tokens) == 0 {
			continue
		}

		p := strings.Join(tokens, string(filepath.Separator))
		for _, k := range keys {
			p = strings.ReplaceAll(p, "{"+k+"}", subs[k])
		}
		paths = append(paths, p)
	}
	return paths, nil
}
