// internal/workspace/applier_test.go
package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/suture-cli/api/schemas"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

// snapshot captures all file contents below root, keyed by relative path.
func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	state := make(map[string]string)
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		require.NoError(t, err)
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		require.NoError(t, err)
		state[rel] = readFile(t, path)
		return nil
	})
	require.NoError(t, err)
	return state
}

func fixFor(paths map[string]string) *schemas.FixResult {
	fix := &schemas.FixResult{Explanation: "test fix", Approach: "direct"}
	for path, content := range paths {
		fix.Changes = append(fix.Changes, schemas.FileChange{
			Path:            path,
			ModifiedContent: content,
		})
	}
	return fix
}

func TestApplyCapturesBackupBeforeWrite(t *testing.T) {
	dir := t.TempDir()
	applier := NewApplier(zaptest.NewLogger(t))

	target := filepath.Join(dir, "src", "counter.js")
	writeFile(t, target, "let count = 1;")

	backup, err := applier.Apply(fixFor(map[string]string{target: "let count = 0;"}))
	require.NoError(t, err)

	assert.Equal(t, "let count = 0;", readFile(t, target))
	require.Len(t, backup.Files, 1)
	assert.Equal(t, "let count = 1;", backup.Files[0].OriginalContent)
	assert.True(t, backup.Files[0].Existed)
}

func TestApplyNewFileUsesAbsenceSentinel(t *testing.T) {
	dir := t.TempDir()
	applier := NewApplier(zaptest.NewLogger(t))

	target := filepath.Join(dir, "src", "new", "widget.js")
	backup, err := applier.Apply(fixFor(map[string]string{target: "export {};"}))
	require.NoError(t, err)

	require.Len(t, backup.Files, 1)
	assert.False(t, backup.Files[0].Existed)
	assert.Empty(t, backup.Files[0].OriginalContent)

	require.NoError(t, applier.Rollback(backup))
	_, statErr := os.Stat(target)
	assert.True(t, os.IsNotExist(statErr), "rollback must delete files that did not exist")
}

func TestRollbackRestoresExactState(t *testing.T) {
	dir := t.TempDir()
	applier := NewApplier(zaptest.NewLogger(t))

	writeFile(t, filepath.Join(dir, "a.txt"), "original a")
	writeFile(t, filepath.Join(dir, "sub", "b.txt"), "original b")
	before := snapshot(t, dir)

	backup, err := applier.Apply(fixFor(map[string]string{
		filepath.Join(dir, "a.txt"):          "changed a",
		filepath.Join(dir, "sub", "b.txt"):   "changed b",
		filepath.Join(dir, "sub", "new.txt"): "brand new",
	}))
	require.NoError(t, err)
	require.NoError(t, applier.Rollback(backup))

	after := snapshot(t, dir)
	assert.Empty(t, cmp.Diff(before, after))
}

func TestRollbackIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	applier := NewApplier(zaptest.NewLogger(t))

	writeFile(t, filepath.Join(dir, "a.txt"), "original")
	backup, err := applier.Apply(fixFor(map[string]string{
		filepath.Join(dir, "a.txt"):   "changed",
		filepath.Join(dir, "new.txt"): "created",
	}))
	require.NoError(t, err)

	require.NoError(t, applier.Rollback(backup))
	once := snapshot(t, dir)
	require.NoError(t, applier.Rollback(backup))
	twice := snapshot(t, dir)

	assert.Empty(t, cmp.Diff(once, twice))
}

func TestApplyPartialFailureKeepsBackup(t *testing.T) {
	dir := t.TempDir()
	applier := NewApplier(zaptest.NewLogger(t))

	good := filepath.Join(dir, "good.txt")
	writeFile(t, good, "original")

	// The second change targets a path whose parent is a regular file, so
	// the prior-content read fails after the first change was already written.
	blocker := filepath.Join(dir, "blocker")
	writeFile(t, blocker, "i am a file")
	bad := filepath.Join(blocker, "child.txt")

	before := snapshot(t, dir)

	fix := &schemas.FixResult{Changes: []schemas.FileChange{
		{Path: good, ModifiedContent: "changed"},
		{Path: bad, ModifiedContent: "never written"},
	}}

	backup, err := applier.Apply(fix)
	require.Error(t, err)
	var applyErr *schemas.ApplyError
	require.ErrorAs(t, err, &applyErr)
	assert.Equal(t, bad, applyErr.Path)

	// The partial backup still rolls back the subset that was applied.
	require.NotNil(t, backup)
	require.NoError(t, applier.Rollback(backup))
	assert.Empty(t, cmp.Diff(before, snapshot(t, dir)))
}
