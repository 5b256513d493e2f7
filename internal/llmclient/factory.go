// internal/llmclient/factory.go
package llmclient

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/suture-cli/api/schemas"
	"github.com/xkilldash9x/suture-cli/internal/config"
)

// NewClient constructs the configured LLM client. Gemini is the only provider
// today; the factory keeps call sites provider-agnostic.
func NewClient(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	return NewGeminiClient(ctx, cfg, logger)
}
