// internal/fixgen/diff.go
package fixgen

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// UnifiedDiff renders the difference between original and modified as a
// unified diff with three lines of context and a/ b/ headers. It is a pure
// function of its inputs: the same two strings always yield byte-identical
// output. The diff is a presentation of a FileChange, never its source of
// truth.
func UnifiedDiff(relPath, original, modified string) string {
	if original == modified {
		return ""
	}

	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(original),
		B:        difflib.SplitLines(modified),
		FromFile: "a/" + relPath,
		ToFile:   "b/" + relPath,
		Context:  3,
	}

	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		// GetUnifiedDiffString only errors on writer failure, which a
		// strings.Builder cannot produce.
		return ""
	}
	return strings.TrimSuffix(text, "\n") + "\n"
}
