package common

import (
	"os"

	"github.com/humanconnectome/hcp-pipelines/pkg/configs"
)

type CommonFlags struct {
	Config string `flag:"config" metavar:"path/to/config.yaml" help:"configuration file. Default is $HCP_PIPELINES_CONFIG"`
}

// DefaultCommonFlags reads defaults from the environment.
func DefaultCommonFlags() CommonFlags {
	return CommonFlags{Config: os.Getenv(configs.EnvConfigPath)}
}

// ARG_SUBJECT is the positional argument of work commands.
const ARG_SUBJECT = "SUBJECT"
