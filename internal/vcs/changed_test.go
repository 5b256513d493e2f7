// internal/vcs/changed_test.go
package vcs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func initRepo(t *testing.T) (string, *git.Worktree) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	return dir, wt
}

func commitFile(t *testing.T, dir string, wt *git.Worktree, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	_, err := wt.Add(name)
	require.NoError(t, err)
	_, err = wt.Commit("add "+name, &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
}

func TestChangedFiles(t *testing.T) {
	dir, wt := initRepo(t)
	commitFile(t, dir, wt, "app.js", "original")
	commitFile(t, dir, wt, "gone.js", "doomed")

	// One modified, one untracked, one deleted.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("changed"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.js"), []byte("fresh"), 0o644))
	require.NoError(t, os.Remove(filepath.Join(dir, "gone.js")))

	paths, err := ChangedFiles(dir, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"app.js", "new.js"}, paths)
}

func TestChangedFilesCleanTree(t *testing.T) {
	dir, wt := initRepo(t)
	commitFile(t, dir, wt, "app.js", "original")

	paths, err := ChangedFiles(dir, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestChangedFilesNotARepo(t *testing.T) {
	_, err := ChangedFiles(t.TempDir(), zaptest.NewLogger(t))
	require.Error(t, err)
}
