// internal/runner/report.go
package runner

import (
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// playwrightReport is the subset of the runner's machine-readable JSON report
// the pipeline cares about: per-test results and top-level errors.
type playwrightReport struct {
	Suites []playwrightSuite `json:"suites"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type playwrightSuite struct {
	Title  string            `json:"title"`
	Suites []playwrightSuite `json:"suites"`
	Specs  []struct {
		Title string `json:"title"`
		Tests []struct {
			Results []struct {
				Status string `json:"status"`
				Error  struct {
					Message string `json:"message"`
				} `json:"error"`
			} `json:"results"`
		} `json:"tests"`
	} `json:"specs"`
}

// ExtractReportError reads the runner's JSON report and returns the first
// failure message it contains. An unreadable or unparseable report returns
// ok=false; the caller falls back to raw stderr/stdout.
func ExtractReportError(reportPath string) (string, bool) {
	data, err := os.ReadFile(reportPath)
	if err != nil {
		return "", false
	}

	var report playwrightReport
	if err := json.Unmarshal(data, &report); err != nil {
		return "", false
	}

	if msg := firstSuiteError(report.Suites); msg != "" {
		return msg, true
	}
	for _, e := range report.Errors {
		if strings.TrimSpace(e.Message) != "" {
			return e.Message, true
		}
	}
	return "", false
}

func firstSuiteError(suites []playwrightSuite) string {
	for _, suite := range suites {
		for _, spec := range suite.Specs {
			for _, test := range spec.Tests {
				for _, result := range test.Results {
					if result.Status != "passed" && result.Status != "skipped" &&
						strings.TrimSpace(result.Error.Message) != "" {
						return result.Error.Message
					}
				}
			}
		}
		if msg := firstSuiteError(suite.Suites); msg != "" {
			return msg
		}
	}
	return ""
}
