package xnat

import (
	"os"
	"path/filepath"
	"strings"

	xe "github.com/humanconnectome/hcp-pipelines/pkg/errors"
)

type Credentials struct {
	User     string
	Password string
}

// LoadCredentials reads a credentials file: the user on the first line,
// the password on the second. "~/" at the head of path is the home directory.
func LoadCredentials(path string) (Credentials, error) {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return Credentials{}, xe.Configuration("cannot expand %s: %s", path, err)
		}
		path = filepath.Join(home, rest)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, xe.Configuration("cannot read credentials file %s: %s", path, err)
	}
	lines := strings.Split(strings.ReplaceAll(string(b), "\r\n", "\n"), "\n")
	if len(lines) < 2 {
		return Credentials{}, xe.Configuration("credentials file %s should have the user and the password in two lines", path)
	}
	c := Credentials{User: strings.TrimSpace(lines[0]), Password: strings.TrimSpace(lines[1])}
	if c.User == "" || c.Password == "" {
		return Credentials{}, xe.Configuration("credentials file %s has an empty user or password", path)
	}
	return c, nil
}
