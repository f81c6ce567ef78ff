// Package session identifies the unit of work: one subject's session in an archive project.
package session

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	xe "github.com/humanconnectome/hcp-pipelines/pkg/errors"
)

// Subject is a Session Identity, `project:subject:classifier:extra`.
//
// Extra is empty when the identity covers the whole session.
type Subject struct {
	Project    string
	SubjectID  string
	Classifier string
	Extra      string
}

// Parse a Session Identity.
//
// It must have exactly four `:`-separated components.
// Extra "all" (in any case) and "None" mean "no scan" and become empty.
func Parse(identity string) (Subject, error) {
	parts := strings.Split(strings.TrimSpace(identity), ":")
	if len(parts) != 4 {
		return Subject{}, xe.Configuration(
			"session identity %q should be project:subject:classifier:extra (%d components found)",
			identity, len(parts),
		)
	}
	s := Subject{
		Project:    parts[0],
		SubjectID:  parts[1],
		Classifier: parts[2],
		Extra:      parts[3],
	}
	if strings.EqualFold(s.Extra, "all") || s.Extra == "None" {
		s.Extra = ""
	}
	if s.Project == "" || s.SubjectID == "" || s.Classifier == "" {
		return Subject{}, xe.Configuration("session identity %q has an empty component", identity)
	}
	return s, nil
}

// Session is the session label, `subject_classifier`.
func (s Subject) Session() string {
	return s.SubjectID + "_" + s.Classifier
}

// ScanSuffix is "_" + extra, or empty when there is no extra.
func (s Subject) ScanSuffix() string {
	if s.Extra == "" {
		return ""
	}
	return "_" + s.Extra
}

// Filter is the extra as a resource filter. "ALL" when there is no extra.
func (s Subject) Filter() string {
	if s.Extra == "" {
		return "ALL"
	}
	return s.Extra
}

func (s Subject) String() string {
	return strings.Join([]string{s.Project, s.SubjectID, s.Classifier, s.Extra}, ":")
}

// ReadList reads Session Identities, one per line.
//
// Blank lines and lines starting with `#` are skipped.
func ReadList(r io.Reader) ([]Subject, error) {
	subjects := []Subject{}
	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno += 1
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		s, err := Parse(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineno, err)
		}
		subjects = append(subjects, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return subjects, nil
}

// WriteList writes Session Identities so that ReadList reads them back.
func WriteList(w io.Writer, subjects []Subject) error {
	for _, s := range subjects {
		if _, err := fmt.Fprintln(w, s.String()); err != nil {
			return err
		}
	}
	return nil
}
