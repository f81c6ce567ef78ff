package main

import (
	"context"
	"os"
	"os/signal"
	"path"

	"github.com/humanconnectome/hcp-pipelines/cmd/hcpctl/subcommands/check"
	"github.com/humanconnectome/hcp-pipelines/cmd/hcpctl/subcommands/clean"
	"github.com/humanconnectome/hcp-pipelines/cmd/hcpctl/subcommands/common"
	"github.com/humanconnectome/hcp-pipelines/cmd/hcpctl/subcommands/get"
	"github.com/humanconnectome/hcp-pipelines/cmd/hcpctl/subcommands/logger"
	"github.com/humanconnectome/hcp-pipelines/cmd/hcpctl/subcommands/mark"
	"github.com/humanconnectome/hcp-pipelines/cmd/hcpctl/subcommands/put"
	"github.com/humanconnectome/hcp-pipelines/cmd/hcpctl/subcommands/resources"
	"github.com/humanconnectome/hcp-pipelines/cmd/hcpctl/subcommands/serve"
	"github.com/humanconnectome/hcp-pipelines/cmd/hcpctl/subcommands/submit"
	"github.com/humanconnectome/hcp-pipelines/cmd/hcpctl/subcommands/version"
	"github.com/humanconnectome/hcp-pipelines/pkg/utils/try"
	"github.com/youta-t/flarc"
)

func main() {
	logger := logger.For(os.Stderr, path.Base(os.Args[0]))

	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, os.Kill,
	)
	defer cancel()

	hcpctl := try.To(
		flarc.NewCommandGroup(
			"HCP pipelines control: prepare, submit and perform pipeline stages of imaging sessions.",
			common.DefaultCommonFlags(),
			flarc.WithSubcommand("submit", try.To(submit.New()).OrFatal(logger)),
			flarc.WithSubcommand("get", try.To(get.New()).OrFatal(logger)),
			flarc.WithSubcommand("clean", try.To(clean.New()).OrFatal(logger)),
			flarc.WithSubcommand("put", try.To(put.New()).OrFatal(logger)),
			flarc.WithSubcommand("check", try.To(check.New()).OrFatal(logger)),
			flarc.WithSubcommand("mark", try.To(mark.New()).OrFatal(logger)),
			flarc.WithSubcommand("resources", try.To(resources.New()).OrFatal(logger)),
			flarc.WithSubcommand("serve", try.To(serve.New()).OrFatal(logger)),
			flarc.WithSubcommand("version", try.To(version.New()).OrFatal(logger)),
		),
	).OrFatal(logger)

	os.Exit(flarc.Run(ctx, hcpctl, flarc.WithHelp(true)))
}
