// internal/runner/artifacts.go
package runner

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// Artifacts groups test-run output files by kind.
type Artifacts struct {
	Videos      []string
	Screenshots []string
	Traces      []string
}

// CollectArtifacts walks outputDir and buckets files by extension. It is a
// pure filesystem scan with no dependency on the runner's exit code, so
// partial artifacts from a failed run are still returned. A missing output
// directory yields empty artifacts, not an error.
func CollectArtifacts(outputDir string) Artifacts {
	var a Artifacts

	_ = filepath.WalkDir(outputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".webm", ".mp4":
			a.Videos = append(a.Videos, path)
		case ".png", ".jpg", ".jpeg":
			a.Screenshots = append(a.Screenshots, path)
		case ".zip":
			a.Traces = append(a.Traces, path)
		}
		return nil
	})

	return a
}
