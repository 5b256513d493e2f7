// internal/llmclient/gemini.go
package llmclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	genai "google.golang.org/genai"

	"github.com/xkilldash9x/suture-cli/api/schemas"
	"github.com/xkilldash9x/suture-cli/internal/config"
)

// GeminiClient implements schemas.LLMClient on top of the official genai SDK.
// Calls are rate-limited and retried with exponential backoff; retries stop
// early on errors that will not heal (bad request, blocked content).
type GeminiClient struct {
	cli     *genai.Client
	cfg     config.LLMConfig
	limiter *rate.Limiter
	logger  *zap.Logger
}

var _ schemas.LLMClient = (*GeminiClient)(nil)

// NewGeminiClient initializes the client.
func NewGeminiClient(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required (set SUTURE_LLM_API_KEY or GEMINI_API_KEY)")
	}

	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &GeminiClient{
		cli:     cli,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger.Named("llmclient.gemini"),
	}, nil
}

// Generate sends the request to the Gemini API and returns the text of the
// first candidate.
func (c *GeminiClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	model := c.modelFor(req.Tier)
	contents := buildContents(req)
	genCfg := buildGenerateConfig(req)

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.cfg.MaxRetryTime
	b.MaxInterval = 30 * time.Second

	var out string
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		callCtx := ctx
		if c.cfg.APITimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.cfg.APITimeout)
			defer cancel()
		}

		start := time.Now()
		resp, err := c.cli.Models.GenerateContent(callCtx, model, contents, genCfg)
		if err != nil {
			if isPermanent(err) {
				return backoff.Permanent(err)
			}
			c.logger.Warn("LLM request failed, retrying.",
				zap.String("model", model), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
			return err
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
			len(resp.Candidates[0].Content.Parts) == 0 {
			return backoff.Permanent(fmt.Errorf("empty response from model %s", model))
		}

		var sb strings.Builder
		for _, part := range resp.Candidates[0].Content.Parts {
			sb.WriteString(part.Text)
		}
		out = sb.String()

		c.logger.Debug("LLM request complete.",
			zap.String("model", model),
			zap.Duration("elapsed", time.Since(start)),
			zap.Int("response_bytes", len(out)))
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", fmt.Errorf("LLM generation failed: %w", err)
	}
	return out, nil
}

// Close releases client resources. The genai SDK holds no persistent
// connections that require teardown.
func (c *GeminiClient) Close() error { return nil }

func (c *GeminiClient) modelFor(tier schemas.ModelTier) string {
	if tier == schemas.TierFast {
		return c.cfg.FastModel
	}
	return c.cfg.PowerfulModel
}

func buildContents(req schemas.GenerationRequest) []*genai.Content {
	parts := []*genai.Part{{Text: req.UserPrompt}}
	for _, img := range req.Images {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: img.MIMEType, Data: img.Data},
		})
	}
	return []*genai.Content{{Role: genai.RoleUser, Parts: parts}}
}

func buildGenerateConfig(req schemas.GenerationRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Options.Temperature)),
	}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.SystemPrompt}}}
	}
	if req.Options.ForceJSONFormat {
		cfg.ResponseMIMEType = "application/json"
	}
	if req.Options.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = int32(req.Options.MaxOutputTokens)
	}
	return cfg
}

// isPermanent reports whether an API error will not be fixed by retrying.
func isPermanent(err error) bool {
	msg := err.Error()
	for _, marker := range []string{"400", "401", "403", "INVALID_ARGUMENT", "PERMISSION_DENIED", "blocked"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
