package jobscript

import (
	"fmt"
	"path/filepath"

	"github.com/humanconnectome/hcp-pipelines/pkg/session"
)

// Workspace is the directory of one pipeline run of one subject in the build directory.
//
//	{build}/{project}/{pipeline}.{session}{_scan}/
//	    working/   fetched data and processing output
//	    clean/     clean output tree to be uploaded
//	    check/     completion report and success marker
//	    logs/      job logs
//	    {pipeline}.{session}{_scan}.{step}.sh
type Workspace struct {
	root string
	name string
}

func WorkspaceOf(buildDir string, s session.Subject, pipeline string) Workspace {
	name := fmt.Sprintf("%s.%s%s", pipeline, s.Session(), s.ScanSuffix())
	return Workspace{
		root: filepath.Join(buildDir, s.Project, name),
		name: name,
	}
}

func (w Workspace) Root() string    { return w.root }
func (w Workspace) Working() string { return filepath.Join(w.root, "working") }
func (w Workspace) Clean() string   { return filepath.Join(w.root, "clean") }
func (w Workspace) Check() string   { return filepath.Join(w.root, "check") }
func (w Workspace) Logs() string    { return filepath.Join(w.root, "logs") }

// Script is the path of the job script of the step.
func (w Workspace) Script(step string) string {
	return filepath.Join(w.root, w.name+"."+step+".sh")
}
