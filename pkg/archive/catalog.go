package archive

import (
	"path/filepath"

	"github.com/humanconnectome/hcp-pipelines/pkg/session"
)

// Catalog resolves resource categories of sessions to directories.
type Catalog struct {
	layout Layout
}

func NewCatalog(layout Layout) *Catalog {
	return &Catalog{layout: layout}
}

func (c *Catalog) Layout() Layout {
	return c.layout
}

// Resolve lists the resources of the category in the subject's session,
// sorted lexicographically.
//
// extra filters scoped categories (by "contains") unless it is empty or NoFilter.
// Unscoped categories ignore extra.
func (c *Catalog) Resolve(s session.Subject, cat Category, extra string) []string {
	return c.resolveUnder(c.layout.ResourcesOf(s), cat, extra)
}

// ResolveProject lists the project-level resources of the category.
func (c *Catalog) ResolveProject(project string, cat Category) []string {
	return c.resolveUnder(c.layout.ProjectResources(project), cat, NoFilter)
}

func (c *Catalog) resolveUnder(root string, cat Category, extra string) []string {
	def, ok := categories[cat]
	if !ok {
		return []string{}
	}
	if !def.scoped {
		extra = NoFilter
	}
	found := Glob(root, def.pattern, extra)
	if def.accept == nil {
		return found
	}
	accepted := make([]string, 0, len(found))
	for _, f := range found {
		if def.accept(filepath.Base(f)) {
			accepted = append(accepted, f)
		}
	}
	return accepted
}
