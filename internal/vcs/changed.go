// internal/vcs/changed.go

// Package vcs derives default file hints from the workspace's git state, so
// the pipeline has a starting working set when the caller names no files.
package vcs

import (
	"fmt"
	"sort"

	git "github.com/go-git/go-git/v5"
	"go.uber.org/zap"
)

// ChangedFiles returns the repository-relative paths of files that differ
// from HEAD: staged, unstaged and untracked alike. Deleted files are skipped;
// they cannot be read into a working set. The result is sorted for stable
// prompts.
func ChangedFiles(root string, logger *zap.Logger) ([]string, error) {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening repository at %s: %w", root, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("reading worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("reading worktree status: %w", err)
	}

	var paths []string
	for path, st := range status {
		if st.Worktree == git.Deleted || st.Staging == git.Deleted {
			continue
		}
		if st.Worktree == git.Unmodified && st.Staging == git.Unmodified {
			continue
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)

	logger.Debug("Derived file hints from git status.", zap.Int("count", len(paths)))
	return paths, nil
}
