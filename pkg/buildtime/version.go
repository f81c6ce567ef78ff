// Package buildtime carries the release and the source revision stamped at build time.
package buildtime

import (
	_ "embed"
	"runtime/debug"
	"strings"
	"sync"
)

//go:embed VERSION
var version string

//go:embed revision
var revision string

// Info identifies the build of hcpctl.
type Info struct {
	Version  string `json:"version"`
	Revision string `json:"revision"`

	// Modified is true when the binary is built from a dirty work tree.
	Modified bool `json:"modified,omitempty"`
}

func (i Info) String() string {
	s := i.Version + " (commit: " + i.Revision
	if i.Modified {
		s += ", modified"
	}
	return s + ")"
}

var current = sync.OnceValue(func() Info {
	i := Info{
		Version:  strings.TrimSpace(version),
		Revision: strings.TrimSpace(revision),
	}
	if i.Revision != "" && i.Revision != "unknown" {
		return i
	}

	// not stamped. `go build` records vcs settings when it can.
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return i
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			i.Revision = s.Value
		case "vcs.modified":
			i.Modified = s.Value == "true"
		}
	}
	return i
})

// Current is the build of this binary.
func Current() Info {
	return current()
}

func VersionString() string {
	return Current().String()
}
