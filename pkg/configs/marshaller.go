package configs

import (
	"fmt"
	"os"

	xe "github.com/humanconnectome/hcp-pipelines/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Load reads the configuration file.
//
// Misconfiguration is reported as an error wrapping ErrConfiguration.
func Load(filepath string) (*Config, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, xe.Configuration("cannot read config file: %s", err)
	}
	c, err := Unmarshal(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath, err)
	}
	return c, nil
}

func Unmarshal(conf []byte) (out *Config, err error) {
	var _out *ConfigMarshall
	if err := yaml.Unmarshal(conf, &_out); err != nil {
		return nil, xe.Configuration("%s", err)
	}
	if _out == nil {
		return nil, xe.Configuration("config is empty")
	}

	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = xe.Configuration("%v", r)
		}
	}()
	return TrySeal(_out), nil
}
