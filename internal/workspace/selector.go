// internal/workspace/selector.go
package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/xkilldash9x/suture-cli/api/schemas"
	"github.com/xkilldash9x/suture-cli/internal/config"
	"github.com/xkilldash9x/suture-cli/internal/llmutil"
)

// Selector builds the relevant-file working set for a bug: every hinted file
// that exists, plus up to MaxSuggestedFiles service-suggested candidates that
// exist and fit the size cap. Unique by absolute path, hints first.
type Selector struct {
	cfg    config.WorkspaceConfig
	llm    schemas.LLMClient
	logger *zap.Logger
}

var _ schemas.FileSelector = (*Selector)(nil)

// NewSelector creates a relevant-file selector rooted at cfg.Root.
func NewSelector(cfg config.WorkspaceConfig, llm schemas.LLMClient, logger *zap.Logger) *Selector {
	return &Selector{cfg: cfg, llm: llm, logger: logger.Named("workspace.selector")}
}

// suggestionResponse is the required shape of the service's candidate list.
type suggestionResponse struct {
	Files []struct {
		Path   string `json:"path"`
		Reason string `json:"reason"`
	} `json:"files"`
}

// Select merges hinted files with service suggestions. A malformed service
// response never fails the call; the hinted set alone is returned.
func (s *Selector) Select(ctx context.Context, bugDescription string, hintFiles []string) ([]schemas.RelevantFile, string, error) {
	root, err := filepath.Abs(s.cfg.Root)
	if err != nil {
		return nil, "", fmt.Errorf("resolving workspace root: %w", err)
	}

	var files []schemas.RelevantFile
	seen := make(map[string]struct{})

	for _, hint := range hintFiles {
		rf, ok := s.readFile(root, hint, schemas.ProvenanceUser, "user-specified")
		if !ok {
			continue
		}
		if _, dup := seen[rf.AbsolutePath]; dup {
			continue
		}
		seen[rf.AbsolutePath] = struct{}{}
		files = append(files, rf)
	}

	tree, err := DescribeTree(root, s.cfg.ExcludeDirs, s.cfg.MaxTreeEntries)
	if err != nil {
		s.logger.Warn("Failed to describe file tree; continuing with hinted files only.", zap.Error(err))
		return files, "", nil
	}

	suggestions := s.querySuggestions(ctx, bugDescription, tree)
	for _, sug := range suggestions {
		if len(files) >= len(hintFiles)+s.cfg.MaxSuggestedFiles {
			break
		}
		rf, ok := s.readFile(root, sug.Path, schemas.ProvenanceService, sug.Reason)
		if !ok {
			continue
		}
		if _, dup := seen[rf.AbsolutePath]; dup {
			continue
		}
		if int64(len(rf.Content)) > s.cfg.MaxFileSize {
			s.logger.Debug("Skipping oversized suggested file.",
				zap.String("path", sug.Path), zap.Int("bytes", len(rf.Content)))
			continue
		}
		seen[rf.AbsolutePath] = struct{}{}
		files = append(files, rf)
	}

	s.logger.Info("Relevant file set selected.",
		zap.Int("hinted", len(hintFiles)), zap.Int("total", len(files)))
	return files, tree, nil
}

type suggestion struct {
	Path   string
	Reason string
}

// querySuggestions asks the service for candidate paths. Any failure is
// logged and yields an empty list.
func (s *Selector) querySuggestions(ctx context.Context, bugDescription, tree string) []suggestion {
	req := schemas.GenerationRequest{
		SystemPrompt: "You are a senior engineer triaging a bug report against a web application codebase. Respond only with the requested JSON.",
		UserPrompt: fmt.Sprintf(`A bug was reported in this project:

%s

The project contains these files:

%s

List up to %d files most likely to contain the defect or to be needed to understand it. Respond as strict JSON:
{"files": [{"path": "relative/path", "reason": "why this file matters"}]}`,
			bugDescription, tree, s.cfg.MaxSuggestedFiles),
		Tier:    schemas.TierFast,
		Options: schemas.GenerationOptions{Temperature: 0.2, ForceJSONFormat: true},
	}

	response, err := s.llm.Generate(ctx, req)
	if err != nil {
		s.logger.Warn("File suggestion request failed; using hinted files only.", zap.Error(err))
		return nil
	}

	parsed, err := llmutil.ParseJSON[suggestionResponse](response)
	if err != nil {
		s.logger.Warn("Malformed file suggestion response; using hinted files only.",
			zap.Error(err), zap.String("raw", llmutil.Truncate(response, 300)))
		return nil
	}

	out := make([]suggestion, 0, len(parsed.Files))
	for _, f := range parsed.Files {
		if f.Path == "" {
			continue
		}
		out = append(out, suggestion{Path: f.Path, Reason: f.Reason})
	}
	if len(out) > s.cfg.MaxSuggestedFiles {
		out = out[:s.cfg.MaxSuggestedFiles]
	}
	return out
}

// readFile loads one candidate, resolving relative paths against root. Files
// absent from disk are skipped.
func (s *Selector) readFile(root, path string, prov schemas.Provenance, reason string) (schemas.RelevantFile, bool) {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(root, path)
	}
	abs = filepath.Clean(abs)

	content, err := os.ReadFile(abs)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Could not read candidate file.", zap.String("path", abs), zap.Error(err))
		}
		return schemas.RelevantFile{}, false
	}

	rel, err := filepath.Rel(root, abs)
	if err != nil {
		rel = path
	}

	return schemas.RelevantFile{
		RelativePath: filepath.ToSlash(rel),
		AbsolutePath: abs,
		Content:      string(content),
		Reason:       reason,
		Provenance:   prov,
	}, true
}
