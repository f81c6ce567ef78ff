package stage

import (
	"fmt"
	"strings"

	xe "github.com/humanconnectome/hcp-pipelines/pkg/errors"
)

// Stage is a step of a pipeline run. Stages are totally ordered.
//
// Requesting a stage means "perform every stage up to and including it".
type Stage int

const (
	PrepareScripts Stage = iota
	GetData
	ProcessData
	CleanData
	PutData
	CheckData
)

var names = map[Stage]string{
	PrepareScripts: "PREPARE_SCRIPTS",
	GetData:        "GET_DATA",
	ProcessData:    "PROCESS_DATA",
	CleanData:      "CLEAN_DATA",
	PutData:        "PUT_DATA",
	CheckData:      "CHECK_DATA",
}

// short step names, as the job scripts are named.
var steps = map[Stage]string{
	PrepareScripts: "prepare",
	GetData:        "get",
	ProcessData:    "process",
	CleanData:      "clean",
	PutData:        "put",
	CheckData:      "check",
}

func (s Stage) String() string {
	if n, ok := names[s]; ok {
		return n
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// Step is the short name of the stage, like "get".
func (s Stage) Step() string {
	return steps[s]
}

// Includes tells whether a request for s performs other.
func (s Stage) Includes(other Stage) bool {
	return other <= s
}

// Parse accepts both stage names (PROCESS_DATA, case-insensitive) and step names (process).
func Parse(s string) (Stage, error) {
	t := strings.TrimSpace(s)
	for st, n := range names {
		if strings.EqualFold(n, t) || strings.EqualFold(steps[st], t) {
			return st, nil
		}
	}
	return 0, xe.Configuration("unknown processing stage: %q", s)
}

// Jobs returns the stages carried by queue jobs, in order.
func Jobs() []Stage {
	return []Stage{GetData, ProcessData, CleanData, PutData, CheckData}
}

// All returns every stage in order.
func All() []Stage {
	return append([]Stage{PrepareScripts}, Jobs()...)
}

// UnmarshalText lets a Stage be a flag or YAML value.
func (s *Stage) UnmarshalText(b []byte) error {
	st, err := Parse(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
