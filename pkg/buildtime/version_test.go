package buildtime_test

import (
	"strings"
	"testing"

	"github.com/humanconnectome/hcp-pipelines/pkg/buildtime"
)

func TestInfo_String(t *testing.T) {
	for name, testcase := range map[string]struct {
		when buildtime.Info
		then string
	}{
		"clean": {
			when: buildtime.Info{Version: "v0.1.0", Revision: "abc123"},
			then: "v0.1.0 (commit: abc123)",
		},
		"modified": {
			when: buildtime.Info{Version: "v0.1.0", Revision: "abc123", Modified: true},
			then: "v0.1.0 (commit: abc123, modified)",
		},
	} {
		t.Run(name, func(t *testing.T) {
			if got := testcase.when.String(); got != testcase.then {
				t.Errorf("(actual, expected) = (%q, %q)", got, testcase.then)
			}
		})
	}
}

func TestCurrent(t *testing.T) {
	c := buildtime.Current()
	if c.Version != "v0.1.0" {
		t.Errorf("version: %q", c.Version)
	}
	if !strings.HasPrefix(buildtime.VersionString(), c.Version+" (commit: ") {
		t.Errorf("version string: %q", buildtime.VersionString())
	}
}
