package completion

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/humanconnectome/hcp-pipelines/pkg/session"
)

// ProcessingInfo is the directory in an output resource holding run markers.
const ProcessingInfo = "ProcessingInfo"

// MarkerName is the file name of the success marker of a completion check.
//
//	100307.3T.rfMRI_REST1_LR.FunctionalPreprocessing.XNAT_CHECK.success
func MarkerName(s session.Subject, processingName string) string {
	return checkName(s, processingName, "success")
}

// ReportName is the file name of the completion report uploaded next to the marker.
func ReportName(s session.Subject, processingName string) string {
	return checkName(s, processingName, "log")
}

func checkName(s session.Subject, processingName string, ext string) string {
	parts := []string{s.SubjectID, s.Classifier}
	if s.Extra != "" {
		parts = append(parts, s.Extra)
	}
	parts = append(parts, processingName, "XNAT_CHECK", ext)
	return strings.Join(parts, ".")
}

// InfoPath is the path of a ProcessingInfo file relative to the output resource root.
func InfoPath(s session.Subject, name string) string {
	return s.Session() + "/" + ProcessingInfo + "/" + name
}

// StartTimeName is the file name of the marker touched when processing starts.
//
//	100307_3T_rfMRI_REST1_LR.FunctionalPreprocessing.starttime
func StartTimeName(s session.Subject, processingName string) string {
	return s.Session() + s.ScanSuffix() + "." + processingName + ".starttime"
}

// IsMarkedComplete tells whether a completion check has succeeded after the
// last processing start.
//
// It holds when, in `{output resource}/{session}/ProcessingInfo`, the success marker
// and the start-time marker exist, the success marker is not older than the
// start-time marker, and the success marker ends with SuccessSentence.
func (c *Checker) IsMarkedComplete(s session.Subject, spec Spec) (bool, error) {
	info := filepath.Join(
		c.catalog.Layout().Resource(s, spec.Output.For(s)), s.Session(), ProcessingInfo,
	)
	success := filepath.Join(info, MarkerName(s, spec.ProcessingName))
	starttime := filepath.Join(info, StartTimeName(s, spec.ProcessingName))

	sst, err := os.Stat(success)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	tst, err := os.Stat(starttime)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	if sst.ModTime().Before(tst.ModTime()) {
		return false, nil
	}

	last, err := lastLine(success)
	if err != nil {
		return false, err
	}
	return last == SuccessSentence, nil
}

func lastLine(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	last := ""
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if l := strings.TrimSpace(scanner.Text()); l != "" {
			last = l
		}
	}
	return last, scanner.Err()
}
