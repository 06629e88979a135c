package report

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/lucasnoah/suiterun/internal/suite"
)

type junitTestSuites struct {
	XMLName  xml.Name         `xml:"testsuites"`
	Name     string           `xml:"name,attr"`
	Tests    int              `xml:"tests,attr"`
	Failures int              `xml:"failures,attr"`
	Errors   int              `xml:"errors,attr"`
	Time     string           `xml:"time,attr"`
	Suites   []junitTestSuite `xml:"testsuite"`
}

type junitTestSuite struct {
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Time      string          `xml:"time,attr"`
	Timestamp string          `xml:"timestamp,attr"`
	Cases     []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitMessage `xml:"failure,omitempty"`
	Error     *junitMessage `xml:"error,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

type junitMessage struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// WriteJUnit renders the summary as JUnit XML. Each suite becomes one test
// case; spawn errors map to <error>, non-zero exits and timeouts to <failure>.
func WriteJUnit(w io.Writer, s *suite.Summary) error {
	ts := junitTestSuite{
		Name:      s.Name,
		Tests:     s.Total(),
		Failures:  s.Failed - s.Errored,
		Errors:    s.Errored,
		Time:      seconds(s.DurationMs),
		Timestamp: s.StartedAt.UTC().Format(time.RFC3339),
	}
	for _, r := range s.Results {
		tc := junitTestCase{
			Name:      r.Descriptor.Name,
			Classname: s.Name,
			Time:      seconds(r.DurationMs),
		}
		if r.LogPath != "" {
			tc.SystemOut = "log: " + r.LogPath
		}
		msg := &junitMessage{
			Message: r.Err,
			Type:    string(r.Status),
			Body:    fmt.Sprintf("command: %s\nexit code: %d", r.Descriptor.CommandLine(), r.ExitCode),
		}
		switch r.Status {
		case suite.StatusError:
			tc.Error = msg
		case suite.StatusFailed, suite.StatusTimeout:
			tc.Failure = msg
		}
		ts.Cases = append(ts.Cases, tc)
	}

	doc := junitTestSuites{
		Name:     s.Name,
		Tests:    ts.Tests,
		Failures: ts.Failures,
		Errors:   ts.Errors,
		Time:     ts.Time,
		Suites:   []junitTestSuite{ts},
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode junit: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// WriteJUnitFile writes the JUnit report to path, creating parent directories.
func WriteJUnitFile(path string, s *suite.Summary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create junit file: %w", err)
	}
	if err := WriteJUnit(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func seconds(ms int) string {
	return fmt.Sprintf("%.3f", float64(ms)/1000)
}
