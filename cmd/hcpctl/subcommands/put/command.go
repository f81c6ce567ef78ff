package put

import (
	"context"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/humanconnectome/hcp-pipelines/cmd/hcpctl/subcommands/common"
	xe "github.com/humanconnectome/hcp-pipelines/pkg/errors"
	"github.com/humanconnectome/hcp-pipelines/pkg/xnat"
	"github.com/youta-t/flarc"
)

type Flag struct {
	Pipeline       string `flag:"pipeline" alias:"p" metavar:"NAME" help:"pipeline name. Required."`
	Keep           bool   `flag:"keep" help:"keep working and clean directories after upload."`
	RefreshCatalog bool   `flag:"refresh-catalog" help:"ask the store to rebuild the catalog of the output resource after upload."`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Replace the output resource in the data store with the clean directory (PUT_DATA).",
		Flag{},
		flarc.Args{
			{
				Name: common.ARG_SUBJECT, Required: true,
				Help: "session identity, project:subject:classifier:extra",
			},
		},
		common.NewTask(Task),
		flarc.WithDescription(`
Replace the output resource of the pipeline with the clean directory.

The previous resource is deleted first. The clean directory is registered by
reference, so it must be visible from the store servers.
Working and clean directories are removed afterwards unless --keep is given.
`),
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
	def, s, err := env.Target(flags.Pipeline, cl.Args()[common.ARG_SUBJECT][0])
	if err != nil {
		return err
	}
	ws := env.Workspace(s, def.Name)
	resource := def.Output.For(s)

	if _, err := os.Stat(ws.Clean()); err != nil {
		return xe.Wrap(err)
	}

	store, err := env.Connect(ctx, s)
	if err != nil {
		return err
	}

	logger.Printf("deleting previous resource %s", resource)
	if err := store.Delete(ctx, resource); err != nil {
		return err
	}

	if err := readableByAll(ws.Clean()); err != nil {
		return err
	}

	logger.Printf("putting %s into resource %s", ws.Clean(), resource)
	if err := store.Upload(ctx, resource, ws.Clean(), def.Name, xnat.AsReference()); err != nil {
		return err
	}
	if flags.RefreshCatalog {
		if err := store.RefreshCatalog(ctx, resource); err != nil {
			return err
		}
	}

	if flags.Keep {
		return nil
	}
	for _, dir := range []string{ws.Working(), ws.Clean()} {
		logger.Printf("removing %s", dir)
		if err := os.RemoveAll(dir); err != nil {
			return xe.Wrap(err)
		}
	}
	return nil
}

// readableByAll adds read permission (and search permission for directories)
// for everyone, recursively.
func readableByAll(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		mode := info.Mode().Perm() | 0444
		if d.IsDir() {
			mode |= 0111
		}
		if mode == info.Mode().Perm() {
			return nil
		}
		return os.Chmod(p, mode)
	})
}
