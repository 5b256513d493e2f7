// internal/testgen/generator.go
package testgen

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

const systemPrompt = `You are a senior QA engineer writing Playwright end-to-end tests in TypeScript. Produce a single self-contained spec file that verifies the described bug is fixed by exercising the running application through the browser. Return ONLY the raw test source, no explanations and no markdown fences.`

// Generator produces runnable browser-test source for a bug fix.
type Generator struct {
	llm    schemas.LLMClient
	logger *zap.Logger
}

var _ schemas.TestProposer = (*Generator)(nil)

// NewGenerator creates a test-proposal generator.
func NewGenerator(llm schemas.LLMClient, logger *zap.Logger) *Generator {
	return &Generator{llm: llm, logger: logger.Named("testgen")}
}

// ProposeTest returns complete test source. priorError, when non-empty, is
// the failure output of the previous execution and switches the prompt into
// healing mode. An empty or unusable response is a *schemas.GenerationError.
func (g *Generator) ProposeTest(ctx context.Context, bugDescription string, changes []schemas.FileChange, codebaseContext, baseURL, priorError string) (string, error) {
	g.logger.Info("Generating browser test.",
		zap.Int("changed_files", len(changes)), zap.Bool("healing", priorError != ""))

	req := schemas.GenerationRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   buildTestPrompt(bugDescription, changes, codebaseContext, baseURL, priorError),
		Tier:         schemas.TierPowerful,
		Options:      schemas.GenerationOptions{Temperature: 0.2},
	}

	response, err := g.llm.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("test-proposal service call failed: %w", err)
	}

	source := llmutil.StripFences(response)
	if strings.TrimSpace(source) == "" {
		return "", &schemas.GenerationError{Kind: "test", Raw: response,
			Err: fmt.Errorf("service returned empty test source")}
	}
	if !strings.Contains(source, "test(") && !strings.Contains(source, "it(") {
		return "", &schemas.GenerationError{Kind: "test", Raw: response,
			Err: fmt.Errorf("response does not look like runnable test source")}
	}

	return source, nil
}

func buildTestPrompt(bugDescription string, changes []schemas.FileChange, codebaseContext, baseURL, priorError string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "The application runs at %s.\n\n", baseURL)
	fmt.Fprintf(&sb, "This bug was just fixed:\n\n%s\n\n", bugDescription)

	sb.WriteString("Files changed by the fix:\n\n")
	for _, ch := range changes {
		fmt.Fprintf(&sb, "--- %s ---\n%s\n\n", ch.RelativePath, ch.ModifiedContent)
	}

	if codebaseContext != "" {
		fmt.Fprintf(&sb, "Project file tree for orientation:\n%s\n", codebaseContext)
	}

	if priorError != "" {
		fmt.Fprintf(&sb, `The previous version of this test FAILED with:

%s

Correct the test so it reliably verifies the fix: fix wrong selectors, add waits for dynamic content, and remove assumptions the page does not satisfy.

`, priorError)
	}

	sb.WriteString("Write one Playwright spec (TypeScript) that fails when the bug is present and passes when it is fixed. Use page.goto('" + baseURL + "'). Return only the source.")
	return sb.String()
}

// WriteSpec persists generated test source under dir and returns its path.
// Spec files are retained after the run for inspection.
func WriteSpec(dir, name, source string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating generated-tests directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		return "", fmt.Errorf("writing generated test: %w", err)
	}
	return path, nil
}
