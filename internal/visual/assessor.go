// internal/visual/assessor.go

// Package visual renders an advisory judgment of the fixed application's UI
// from test-run screenshots. Its verdict never gates the pipeline: a failed
// or low-confidence assessment is recorded, not acted on.
package visual

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/suture-cli/api/schemas"
	"github.com/xkilldash9x/suture-cli/internal/llmutil"
)

// maxImages bounds how many screenshots go into one assessment call. The
// latest screenshots are the most informative; earlier ones are usually
// intermediate navigation states.
const maxImages = 4

const systemPrompt = `You are a meticulous QA engineer reviewing screenshots of a web application that was just patched.
Judge whether the user interface looks correct and consistent with the fix described.
Look for rendering glitches, broken layout, error banners, missing content, and unstyled elements.

Respond ONLY with a JSON object:
{
  "assessment": "<one-paragraph judgment>",
  "issues": ["<specific visual problem>", ...],
  "confidence": "high" | "medium" | "low"
}

An empty issues array means the UI looks healthy.`

// visualFindings mirrors the JSON shape the model is instructed to emit.
type visualFindings struct {
	Assessment string   `json:"assessment"`
	Issues     []string `json:"issues"`
	Confidence string   `json:"confidence"`
}

// Assessor implements schemas.VisualAssessor on top of a multimodal LLM
// client. When a run produced no screenshots it can capture one live from
// fallbackURL instead.
type Assessor struct {
	client         schemas.LLMClient
	fallbackURL    string
	captureTimeout time.Duration
	logger         *zap.Logger
}

var _ schemas.VisualAssessor = (*Assessor)(nil)

// NewAssessor builds a visual assessor. fallbackURL may be empty to disable
// live capture.
func NewAssessor(client schemas.LLMClient, fallbackURL string, captureTimeout time.Duration, logger *zap.Logger) *Assessor {
	return &Assessor{
		client:         client,
		fallbackURL:    fallbackURL,
		captureTimeout: captureTimeout,
		logger:         logger.Named("visual"),
	}
}

// Assess sends the most recent screenshots to the model and parses its
// judgment. With no screenshots and no capture fallback it returns an error;
// the caller records the assessment as unavailable.
func (a *Assessor) Assess(ctx context.Context, bugDescription string, screenshotPaths []string) (*schemas.VisualReport, error) {
	images, err := a.loadImages(ctx, screenshotPaths)
	if err != nil {
		return nil, err
	}

	req := schemas.GenerationRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   buildUserPrompt(bugDescription, len(images)),
		Tier:         schemas.TierPowerful,
		Images:       images,
		Options: schemas.GenerationOptions{
			Temperature:     0.2,
			ForceJSONFormat: true,
		},
	}

	response, err := a.client.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("visual assessment request: %w", err)
	}

	findings, err := llmutil.ParseJSON[visualFindings](response)
	if err != nil {
		return nil, fmt.Errorf("parsing visual assessment: %w", err)
	}

	report := &schemas.VisualReport{
		Assessment: findings.Assessment,
		Issues:     findings.Issues,
		Confidence: normalizeConfidence(findings.Confidence),
	}
	a.logger.Info("Visual assessment complete.",
		zap.Int("issues", len(report.Issues)),
		zap.String("confidence", string(report.Confidence)))
	return report, nil
}

// loadImages reads the newest screenshots from disk, or captures a live one
// when the run produced none.
func (a *Assessor) loadImages(ctx context.Context, paths []string) ([]schemas.InlineImage, error) {
	if len(paths) > maxImages {
		paths = paths[len(paths)-maxImages:]
	}

	var images []schemas.InlineImage
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			a.logger.Warn("Skipping unreadable screenshot.", zap.String("path", path), zap.Error(err))
			continue
		}
		images = append(images, schemas.InlineImage{MIMEType: mimeForPath(path), Data: data})
	}

	if len(images) > 0 {
		return images, nil
	}

	if a.fallbackURL == "" {
		return nil, fmt.Errorf("no screenshots available for visual assessment")
	}
	a.logger.Info("No screenshots from the test run; capturing live.", zap.String("url", a.fallbackURL))
	data, err := CaptureScreenshot(ctx, a.fallbackURL, a.captureTimeout, a.logger)
	if err != nil {
		return nil, err
	}
	return []schemas.InlineImage{{MIMEType: "image/png", Data: data}}, nil
}

func mimeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "image/png"
	}
}

func normalizeConfidence(raw string) schemas.Confidence {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "high":
		return schemas.ConfidenceHigh
	case "medium":
		return schemas.ConfidenceMedium
	default:
		return schemas.ConfidenceLow
	}
}

func buildUserPrompt(bugDescription string, imageCount int) string {
	var b strings.Builder
	b.WriteString("The following bug was just fixed:\n\n")
	b.WriteString(bugDescription)
	fmt.Fprintf(&b, "\n\nAttached are %d screenshot(s) taken while verifying the fix in a browser. ", imageCount)
	b.WriteString("Assess whether the UI looks correct.")
	return b.String()
}
