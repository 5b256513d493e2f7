// internal/llmutil/parser.go
package llmutil

import (
	"fmt"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// Regexes use \x60 for backticks because Go raw strings cannot contain them.

	// fencedJSONRegex extracts a JSON object wrapped in a markdown code fence.
	fencedJSONRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*({.*})\\s*\x60\x60\x60")
	// fencedBlockRegex extracts the first fenced block regardless of language tag.
	fencedBlockRegex = regexp.MustCompile("(?s)\x60\x60\x60[a-zA-Z]*\\s*(.*?)\\s*\x60\x60\x60")
)

// ParseJSON parses an LLM response into a target type, tolerating the usual
// formatting slop: markdown fences around the JSON, or conversational text
// surrounding a single top-level object. The strict shape check against T is
// the caller's responsibility; this only recovers the JSON text.
func ParseJSON[T any](response string) (*T, error) {
	payload := ExtractJSON(response)

	var result T
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal LLM JSON response: %w. Extracted (truncated): %s",
			err, Truncate(payload, 500))
	}
	return &result, nil
}

// ExtractJSON returns the most plausible JSON object text within an LLM
// response: the first fenced JSON block if present, else the span from the
// first '{' to the last '}', else the response unchanged.
func ExtractJSON(response string) string {
	response = strings.TrimSpace(response)

	if strings.HasPrefix(response, "```") {
		if m := fencedJSONRegex.FindStringSubmatch(response); len(m) > 1 {
			return m[1]
		}
	}

	if !strings.HasPrefix(response, "{") {
		first := strings.Index(response, "{")
		last := strings.LastIndex(response, "}")
		if first != -1 && last > first {
			return response[first : last+1]
		}
	}
	return response
}

// StripFences removes a surrounding markdown code fence (```ts, ```go, ...)
// from generated source text. Text without a fence is returned trimmed.
func StripFences(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		if m := fencedBlockRegex.FindStringSubmatch(content); len(m) > 1 {
			return strings.TrimSpace(m[1])
		}
	}
	return content
}

// Truncate shortens s for inclusion in error messages and logs. Byte-wise;
// rune boundaries are not respected, which is acceptable for diagnostics.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
