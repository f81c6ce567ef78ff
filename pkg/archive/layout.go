// Package archive locates resources in the shared-filesystem archive.
//
// The archive is read-only from here. Paths are resolved, listed and stat-ed;
// nothing is written.
package archive

import (
	"path/filepath"

	"github.com/humanconnectome/hcp-pipelines/pkg/session"
)

// Layout is the directory layout of the archive.
//
//	{root}/{project}/arc001/{session}/RESOURCES/{resource}
//	{root}/{project}/resources/{resource}
type Layout struct {
	root string
}

func NewLayout(root string) Layout {
	return Layout{root: filepath.Clean(root)}
}

func (l Layout) Root() string {
	return l.root
}

// SessionResources is the resource root of a session.
func (l Layout) SessionResources(project, sessionLabel string) string {
	return filepath.Join(l.root, project, "arc001", sessionLabel, "RESOURCES")
}

// ProjectResources is the resource root of project-level resources.
func (l Layout) ProjectResources(project string) string {
	return filepath.Join(l.root, project, "resources")
}

// ResourcesOf is the resource root of the subject's session.
func (l Layout) ResourcesOf(s session.Subject) string {
	return l.SessionResources(s.Project, s.Session())
}

// Resource is the path of a named resource of the subject's session.
func (l Layout) Resource(s session.Subject, name string) string {
	return filepath.Join(l.ResourcesOf(s), name)
}
