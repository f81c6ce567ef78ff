package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/humanconnectome/hcp-pipelines/cmd/hcpctl/subcommands/common"
	"github.com/humanconnectome/hcp-pipelines/pkg/archive"
	"github.com/humanconnectome/hcp-pipelines/pkg/session"
	"github.com/youta-t/flarc"
)

type Flag struct {
	Category []string `flag:"category" alias:"c" metavar:"NAME" help:"resource category, like functional-preproc. Repeatable. All categories when omitted."`
	Project  bool     `flag:"project" help:"list project-level resources instead of the session's."`
}

// Found is the resources of a category.
type Found struct {
	Category  archive.Category `json:"category"`
	Resources []string         `json:"resources"`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"List archive resources of a session by category.",
		Flag{},
		flarc.Args{
			{
				Name: common.ARG_SUBJECT, Required: true,
				Help: "session identity, project:subject:classifier:extra. Extra filters per-scan categories.",
			},
		},
		common.NewTask(Task),
	)
}

func Task(
	ctx context.Context,
	logger *log.Logger,
	env common.Env,
	cl flarc.Commandline[Flag],
	_ []any,
) error {
	flags := cl.Flags()
	s, err := session.Parse(cl.Args()[common.ARG_SUBJECT][0])
	if err != nil {
		return err
	}

	cats := archive.Categories()
	if len(flags.Category) != 0 {
		cats = make([]archive.Category, 0, len(flags.Category))
		for _, name := range flags.Category {
			c, err := archive.ParseCategory(name)
			if err != nil {
				return fmt.Errorf("%w: %w", flarc.ErrUsage, err)
			}
			cats = append(cats, c)
		}
	}

	catalog := env.Catalog()
	found := []Found{}
	for _, c := range cats {
		var res []string
		if flags.Project {
			res = catalog.ResolveProject(s.Project, c)
		} else {
			res = catalog.Resolve(s, c, s.Filter())
		}
		if len(res) == 0 && len(flags.Category) == 0 {
			continue
		}
		found = append(found, Found{Category: c, Resources: res})
	}

	buf, err := json.MarshalIndent(found, "", "    ")
	if err != nil {
		return err
	}
	_, err = cl.Stdout().Write(append(buf, '\n'))
	return err
}
