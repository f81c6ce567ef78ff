package completion

import (
	"fmt"
	"io"

	"github.com/humanconnectome/hcp-pipelines/pkg/session"
)

// Reason tells why a check did not pass.
type Reason int

const (
	// passed
	NoReason Reason = iota
	// the output resource is absent
	Missing
	// the output resource is not newer than a prerequisite
	Stale
	// files listed in the manifest are absent
	FilesMissing
)

func (r Reason) String() string {
	switch r {
	case NoReason:
		return ""
	case Missing:
		return "DOES NOT EXIST"
	case Stale:
		return "NOT NEWER THAN PREREQUISITES"
	case FilesMissing:
		return "EXPECTED FILES DO NOT EXIST"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

const (
	SuccessSentence = "Completion Check was successful"
	FailureSentence = "Completion Check was unsuccessful"
)

type FileCheck struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
}

type Result struct {
	Subject  session.Subject `json:"-"`
	Resource string          `json:"resource"`
	Complete bool            `json:"complete"`
	Reason   Reason          `json:"reason,omitempty"`

	// newest prerequisite resource, if any.
	NewestPrerequisite string `json:"newestPrerequisite,omitempty"`

	// files checked, in manifest order.
	Files []FileCheck `json:"files,omitempty"`
}

// Missing lists the absent files.
func (r Result) Missing() []string {
	m := []string{}
	for _, f := range r.Files {
		if !f.Exists {
			m = append(m, f.Path)
		}
	}
	return m
}

// WriteReport writes the line-by-line audit report of the check.
//
// The last line is SuccessSentence or FailureSentence.
func (r Result) WriteReport(w io.Writer) error {
	lines := []string{fmt.Sprintf("Completion check of %s for %s", r.Resource, r.Subject.String())}
	switch r.Reason {
	case Missing:
		lines = append(lines, fmt.Sprintf("ERROR: resource %s %s", r.Resource, r.Reason))
	case Stale:
		lines = append(lines, fmt.Sprintf(
			"ERROR: resource %s IS NOT NEWER THAN ALL PREREQUISITES (newest: %s)",
			r.Resource, r.NewestPrerequisite,
		))
	}
	for _, f := range r.Files {
		if f.Exists {
			lines = append(lines, "OKAY:  "+f.Path)
		} else {
			lines = append(lines, "ERROR: "+f.Path+" DOES NOT EXIST")
		}
	}
	if r.Complete {
		lines = append(lines, SuccessSentence)
	} else {
		lines = append(lines, FailureSentence)
	}

	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
