// internal/fixgen/generator.go
package fixgen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/suture-cli/api/schemas"
	"github.com/xkilldash9x/suture-cli/internal/llmutil"
)

// Generator turns a bug description and a relevant-file working set into a
// structured multi-file patch. The service returns complete file bodies;
// diffs are synthesized locally and deterministically.
type Generator struct {
	root   string
	llm    schemas.LLMClient
	logger *zap.Logger
}

var _ schemas.FixGenerator = (*Generator)(nil)

// NewGenerator creates a fix generator whose relative paths resolve against
// root.
func NewGenerator(root string, llm schemas.LLMClient, logger *zap.Logger) *Generator {
	return &Generator{root: root, llm: llm, logger: logger.Named("fixgen")}
}

// fixProposal is the required shape of the fix-proposal service response.
type fixProposal struct {
	Explanation string `json:"explanation"`
	Approach    string `json:"approach"`
	Changes     []struct {
		FilePath        string `json:"filePath"`
		ModifiedContent string `json:"modifiedContent"`
	} `json:"changes"`
}

// Generate produces a FixResult for the bug. When prior is non-nil the prompt
// switches to retry mode: it embeds the complete previous fix and failure
// text with an explicit instruction to take a different approach. A response
// that cannot be parsed into the required shape is a *schemas.GenerationError;
// retrying with fresh context is the caller's responsibility.
func (g *Generator) Generate(ctx context.Context, bugDescription string, files []schemas.RelevantFile, codebaseContext string, prior *schemas.PriorAttempt) (*schemas.FixResult, error) {
	g.logger.Info("Generating fix proposal.",
		zap.Int("files", len(files)), zap.Bool("retry_mode", prior != nil))

	req := schemas.GenerationRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   buildFixPrompt(bugDescription, files, codebaseContext, prior),
		Tier:         schemas.TierPowerful,
		Options:      schemas.GenerationOptions{Temperature: 0.1, ForceJSONFormat: true},
	}

	response, err := g.llm.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fix-proposal service call failed: %w", err)
	}

	proposal, err := llmutil.ParseJSON[fixProposal](response)
	if err != nil {
		g.logger.Error("Fix proposal could not be parsed.",
			zap.Error(err), zap.String("raw", llmutil.Truncate(response, 500)))
		return nil, &schemas.GenerationError{Kind: "fix", Raw: response, Err: err}
	}
	if err := validateProposal(proposal); err != nil {
		return nil, &schemas.GenerationError{Kind: "fix", Raw: response, Err: err}
	}

	known := make(map[string]string, len(files))
	for _, f := range files {
		known[filepath.Clean(f.AbsolutePath)] = f.Content
	}

	fix := &schemas.FixResult{
		Explanation: proposal.Explanation,
		Approach:    proposal.Approach,
	}
	for _, ch := range proposal.Changes {
		abs, rel := g.resolvePath(ch.FilePath)
		original := g.originalContent(abs, known)
		fix.Changes = append(fix.Changes, schemas.FileChange{
			Path:            abs,
			RelativePath:    rel,
			OriginalContent: original,
			ModifiedContent: ch.ModifiedContent,
			Diff:            UnifiedDiff(rel, original, ch.ModifiedContent),
		})
	}

	g.logger.Info("Fix proposal generated.",
		zap.Int("changes", len(fix.Changes)), zap.String("approach", llmutil.Truncate(fix.Approach, 120)))
	return fix, nil
}

// originalContent resolves the pre-change body for a path: the known working
// set first, then disk, else empty (new file).
func (g *Generator) originalContent(abs string, known map[string]string) string {
	if content, ok := known[abs]; ok {
		return content
	}
	if b, err := os.ReadFile(abs); err == nil {
		return string(b)
	}
	return ""
}

func (g *Generator) resolvePath(path string) (abs, rel string) {
	if filepath.IsAbs(path) {
		abs = filepath.Clean(path)
	} else {
		abs = filepath.Clean(filepath.Join(g.root, path))
	}
	if r, err := filepath.Rel(g.root, abs); err == nil && !strings.HasPrefix(r, "..") {
		rel = filepath.ToSlash(r)
	} else {
		rel = filepath.ToSlash(path)
	}
	return abs, rel
}

func validateProposal(p *fixProposal) error {
	if len(p.Changes) == 0 {
		return fmt.Errorf("proposal contains no changes")
	}
	for i, ch := range p.Changes {
		if ch.FilePath == "" {
			return fmt.Errorf("change %d is missing filePath", i)
		}
	}
	return nil
}
