// internal/fixgen/prompts.go
package fixgen

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/suture-cli/api/schemas"
)

const systemPrompt = `You are an expert web application developer. Given a bug report and the relevant source files, produce a precise, minimal fix. Every modifiedContent you return must be the COMPLETE new file body, never a partial diff or snippet. Respond only in the required JSON format.`

const responseShape = `Respond as strict JSON:
{
  "explanation": "what the bug is and why this change fixes it",
  "approach": "one-line summary of the strategy taken",
  "changes": [{"filePath": "relative/path", "modifiedContent": "complete new file content"}]
}`

// buildFixPrompt assembles the user prompt. First attempts get a minimal,
// targeted instruction; retries additionally carry the full previous fix and
// its verification failure so the service does not repeat itself.
func buildFixPrompt(bugDescription string, files []schemas.RelevantFile, codebaseContext string, prior *schemas.PriorAttempt) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "A user reported this bug:\n\n%s\n\n", bugDescription)

	if codebaseContext != "" {
		fmt.Fprintf(&sb, "Project file tree:\n%s\n", codebaseContext)
	}

	sb.WriteString("Relevant source files:\n\n")
	for _, f := range files {
		fmt.Fprintf(&sb, "--- %s (%s) ---\n%s\n\n", f.RelativePath, f.Provenance, f.Content)
	}

	if prior == nil {
		sb.WriteString("Produce the smallest fix that resolves the reported bug. Do not refactor unrelated code.\n\n")
	} else {
		sb.WriteString("A previous fix attempt FAILED verification. Previous attempt:\n\n")
		fmt.Fprintf(&sb, "Approach: %s\nExplanation: %s\n\n", prior.Fix.Approach, prior.Fix.Explanation)
		for _, ch := range prior.Fix.Changes {
			fmt.Fprintf(&sb, "Diff applied to %s:\n%s\n", ch.RelativePath, ch.Diff)
		}
		fmt.Fprintf(&sb, "\nVerification failure:\n%s\n\n", prior.FailureText)
		sb.WriteString("Analyze why the previous fix failed and take a DIFFERENT approach. Do not repeat the same change.\n\n")
	}

	sb.WriteString(responseShape)
	return sb.String()
}
