// internal/fixgen/generator_test.go
package fixgen

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/suture-cli/api/schemas"
)

type mockLLM struct {
	response string
	err      error
	lastReq  schemas.GenerationRequest
}

func (m *mockLLM) Generate(_ context.Context, req schemas.GenerationRequest) (string, error) {
	m.lastReq = req
	return m.response, m.err
}

func (m *mockLLM) Close() error { return nil }

func TestGenerateParsesProposal(t *testing.T) {
	dir := t.TempDir()
	llm := &mockLLM{response: `{
		"explanation": "count is initialized to 1",
		"approach": "initialize count to zero",
		"changes": [{"filePath": "src/counter.js", "modifiedContent": "let count = 0;\n"}]
	}`}
	gen := NewGenerator(dir, llm, zaptest.NewLogger(t))

	files := []schemas.RelevantFile{{
		RelativePath: "src/counter.js",
		AbsolutePath: filepath.Join(dir, "src", "counter.js"),
		Content:      "let count = 1;\n",
	}}

	fix, err := gen.Generate(context.Background(), "counter does not reset to zero", files, "", nil)
	require.NoError(t, err)
	require.Len(t, fix.Changes, 1)

	ch := fix.Changes[0]
	assert.Equal(t, "src/counter.js", ch.RelativePath)
	assert.Equal(t, "let count = 1;\n", ch.OriginalContent, "original must come from the working set")
	assert.Equal(t, "let count = 0;\n", ch.ModifiedContent)
	assert.Contains(t, ch.Diff, "-let count = 1;")
	assert.Contains(t, ch.Diff, "+let count = 0;")
	assert.Equal(t, "initialize count to zero", fix.Approach)
}

func TestGenerateReadsOriginalFromDisk(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "on-disk.js")
	require.NoError(t, os.WriteFile(target, []byte("old body\n"), 0o644))

	llm := &mockLLM{response: `{"explanation": "e", "approach": "a",
		"changes": [{"filePath": "on-disk.js", "modifiedContent": "new body\n"}]}`}
	gen := NewGenerator(dir, llm, zaptest.NewLogger(t))

	fix, err := gen.Generate(context.Background(), "bug", nil, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "old body\n", fix.Changes[0].OriginalContent)
}

func TestGenerateTreatsUnknownPathAsNewFile(t *testing.T) {
	dir := t.TempDir()
	llm := &mockLLM{response: `{"explanation": "e", "approach": "a",
		"changes": [{"filePath": "brand/new.js", "modifiedContent": "body\n"}]}`}
	gen := NewGenerator(dir, llm, zaptest.NewLogger(t))

	fix, err := gen.Generate(context.Background(), "bug", nil, "", nil)
	require.NoError(t, err)
	assert.Empty(t, fix.Changes[0].OriginalContent)
	assert.Contains(t, fix.Changes[0].Diff, "+body")
}

func TestGenerateFencedResponse(t *testing.T) {
	dir := t.TempDir()
	llm := &mockLLM{response: "```json\n{\"explanation\": \"e\", \"approach\": \"a\", \"changes\": [{\"filePath\": \"a.js\", \"modifiedContent\": \"x\"}]}\n```"}
	gen := NewGenerator(dir, llm, zaptest.NewLogger(t))

	fix, err := gen.Generate(context.Background(), "bug", nil, "", nil)
	require.NoError(t, err)
	assert.Len(t, fix.Changes, 1)
}

func TestGenerateMalformedResponseIsGenerationError(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name     string
		response string
	}{
		{"not JSON", "I would change counter.js to reset the count."},
		{"empty changes", `{"explanation": "e", "approach": "a", "changes": []}`},
		{"missing filePath", `{"explanation": "e", "approach": "a", "changes": [{"modifiedContent": "x"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &mockLLM{response: tt.response}
			gen := NewGenerator(dir, llm, zaptest.NewLogger(t))

			_, err := gen.Generate(context.Background(), "bug", nil, "", nil)
			var genErr *schemas.GenerationError
			require.ErrorAs(t, err, &genErr)
			assert.Equal(t, "fix", genErr.Kind)
			assert.Equal(t, tt.response, genErr.Raw)
		})
	}
}

func TestRetryPromptCarriesPriorFailure(t *testing.T) {
	dir := t.TempDir()
	llm := &mockLLM{response: `{"explanation": "e", "approach": "second approach",
		"changes": [{"filePath": "a.js", "modifiedContent": "x"}]}`}
	gen := NewGenerator(dir, llm, zaptest.NewLogger(t))

	prior := &schemas.PriorAttempt{
		Fix: &schemas.FixResult{
			Approach:    "first approach",
			Explanation: "initial reasoning",
			Changes: []schemas.FileChange{{
				RelativePath: "a.js",
				Diff:         "--- a/a.js\n+++ b/a.js\n@@ -1 +1 @@\n-old\n+new\n",
			}},
		},
		FailureText: "element not found: #reset-button",
	}

	_, err := gen.Generate(context.Background(), "bug", nil, "", prior)
	require.NoError(t, err)

	prompt := llm.lastReq.UserPrompt
	assert.Contains(t, prompt, "first approach")
	assert.Contains(t, prompt, "element not found: #reset-button")
	assert.Contains(t, prompt, "DIFFERENT approach")
}
