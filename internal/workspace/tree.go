// internal/workspace/tree.go
package workspace

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DescribeTree walks root and produces a bounded natural-language description
// of the file tree for inclusion in a prompt. Directories matching any of the
// exclude globs (build output, dependency caches) are skipped entirely; the
// listing stops after maxEntries paths so prompt cost stays bounded.
func DescribeTree(root string, excludeDirs []string, maxEntries int) (string, error) {
	var sb strings.Builder
	entries := 0
	truncated := false

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are omitted from the description.
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if excluded(d.Name(), rel, excludeDirs) {
				return fs.SkipDir
			}
			return nil
		}

		if entries >= maxEntries {
			truncated = true
			return fs.SkipAll
		}
		sb.WriteString(rel)
		sb.WriteByte('\n')
		entries++
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walking %s: %w", root, err)
	}

	if truncated {
		sb.WriteString(fmt.Sprintf("... (listing truncated at %d files)\n", maxEntries))
	}
	return sb.String(), nil
}

// excluded reports whether a directory should be pruned from the tree. Each
// pattern matches either the bare directory name or, for glob patterns, the
// root-relative path.
func excluded(name, rel string, patterns []string) bool {
	if strings.HasPrefix(name, ".") && name != "." {
		return true
	}
	for _, p := range patterns {
		if p == name {
			return true
		}
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return true
		}
	}
	return false
}
