// internal/runner/report_test.go
package runner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeReport(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExtractReportErrorFailedTest(t *testing.T) {
	path := writeReport(t, `{
		"suites": [{
			"title": "login.spec.ts",
			"specs": [{
				"title": "user can log in",
				"tests": [{
					"results": [
						{"status": "failed", "error": {"message": "expect(locator).toBeVisible() failed\nLocator: getByRole('button')"}},
						{"status": "passed", "error": {"message": ""}}
					]
				}]
			}]
		}]
	}`)

	msg, ok := ExtractReportError(path)
	require.True(t, ok)
	assert.Contains(t, msg, "toBeVisible() failed")
}

func TestExtractReportErrorNestedSuites(t *testing.T) {
	path := writeReport(t, `{
		"suites": [{
			"title": "outer",
			"suites": [{
				"title": "inner",
				"specs": [{
					"title": "nested case",
					"tests": [{
						"results": [{"status": "timedOut", "error": {"message": "Test timeout of 30000ms exceeded."}}]
					}]
				}]
			}]
		}]
	}`)

	msg, ok := ExtractReportError(path)
	require.True(t, ok)
	assert.Equal(t, "Test timeout of 30000ms exceeded.", msg)
}

func TestExtractReportErrorSkippedAndPassedIgnored(t *testing.T) {
	path := writeReport(t, `{
		"suites": [{
			"specs": [{
				"tests": [{
					"results": [
						{"status": "skipped", "error": {"message": "annotation"}},
						{"status": "passed", "error": {"message": ""}}
					]
				}]
			}]
		}]
	}`)

	// A skipped result's message is an annotation, not a failure.
	msg, ok := ExtractReportError(path)
	assert.False(t, ok)
	assert.Empty(t, msg)
}

func TestExtractReportErrorTopLevelErrors(t *testing.T) {
	path := writeReport(t, `{
		"suites": [],
		"errors": [{"message": "SyntaxError: unexpected token in fix-verify-abc-r0.spec.ts"}]
	}`)

	msg, ok := ExtractReportError(path)
	require.True(t, ok)
	assert.Contains(t, msg, "SyntaxError")
}

func TestExtractReportErrorMissingFile(t *testing.T) {
	_, ok := ExtractReportError(filepath.Join(t.TempDir(), "nope.json"))
	assert.False(t, ok)
}

func TestExtractReportErrorMalformed(t *testing.T) {
	path := writeReport(t, `{"suites": [`)
	_, ok := ExtractReportError(path)
	assert.False(t, ok)
}
