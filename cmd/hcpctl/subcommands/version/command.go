package version

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/humanconnectome/hcp-pipelines/pkg/buildtime"
	"github.com/youta-t/flarc"
)

type Flag struct {
	JSON bool `flag:"json" help:"print version and revision as JSON."`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Show the version of hcpctl.",
		Flag{},
		flarc.Args{},
		Task,
	)
}

func Task(_ context.Context, cl flarc.Commandline[Flag], _ []any) error {
	info := buildtime.Current()
	if !cl.Flags().JSON {
		_, err := fmt.Fprintln(cl.Stdout(), info)
		return err
	}
	return json.NewEncoder(cl.Stdout()).Encode(info)
}
