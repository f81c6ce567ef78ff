package completion

import (
	"strings"

	"github.com/humanconnectome/hcp-pipelines/pkg/archive"
	"github.com/humanconnectome/hcp-pipelines/pkg/session"
)

// ResourceName names an output resource.
//
// "{scan}" in it is replaced with the subject's extra, like "{scan}_preproc".
type ResourceName string

func (r ResourceName) For(s session.Subject) string {
	return strings.ReplaceAll(string(r), "{scan}", s.Extra)
}

// Spec is what the checker needs to know about a pipeline.
type Spec struct {
	// ProcessingName names the directory holding the pipeline's manifests.
	ProcessingName string

	// Output is the resource the pipeline produces.
	Output ResourceName

	// Prerequisites are the resources the output must be newer than.
	Prerequisites []archive.Category

	// Manifest is the manifest file name (or an absolute path).
	//
	// When empty, the default name for the fieldmap in use is taken.
	Manifest string
}
