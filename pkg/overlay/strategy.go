package overlay

import (
	"strings"

	xe "github.com/humanconnectome/hcp-pipelines/pkg/errors"
)

// Strategy is how a destination file is made from its source.
type Strategy int

const (
	Symlink Strategy = iota
	Hardlink
	Copy
)

func (s Strategy) String() string {
	switch s {
	case Symlink:
		return "symlink"
	case Hardlink:
		return "hardlink"
	case Copy:
		return "copy"
	default:
		return "unknown"
	}
}

func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "symlink", "link", "":
		return Symlink, nil
	case "hardlink":
		return Hardlink, nil
	case "copy":
		return Copy, nil
	}
	return 0, xe.Configuration("unknown overlay strategy: %q", s)
}

func (s *Strategy) UnmarshalText(b []byte) error {
	st, err := ParseStrategy(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
