// internal/llmclient/gemini_test.go
package llmclient

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/suture-cli/api/schemas"
	"github.com/xkilldash9x/suture-cli/internal/config"
)

func TestModelFor(t *testing.T) {
	c := &GeminiClient{cfg: config.LLMConfig{
		FastModel:     "gemini-2.5-flash",
		PowerfulModel: "gemini-2.5-pro",
	}}

	assert.Equal(t, "gemini-2.5-flash", c.modelFor(schemas.TierFast))
	assert.Equal(t, "gemini-2.5-pro", c.modelFor(schemas.TierPowerful))
	// Unknown tiers get the precise model.
	assert.Equal(t, "gemini-2.5-pro", c.modelFor(""))
}

func TestBuildGenerateConfig(t *testing.T) {
	cfg := buildGenerateConfig(schemas.GenerationRequest{
		SystemPrompt: "be terse",
		Options: schemas.GenerationOptions{
			Temperature:     0.1,
			ForceJSONFormat: true,
			MaxOutputTokens: 2048,
		},
	})

	assert.Equal(t, "application/json", cfg.ResponseMIMEType)
	assert.NotNil(t, cfg.SystemInstruction)
	assert.EqualValues(t, 2048, cfg.MaxOutputTokens)
	if assert.NotNil(t, cfg.Temperature) {
		assert.InDelta(t, 0.1, float64(*cfg.Temperature), 1e-6)
	}
}

func TestBuildContentsIncludesImages(t *testing.T) {
	contents := buildContents(schemas.GenerationRequest{
		UserPrompt: "assess this screenshot",
		Images: []schemas.InlineImage{
			{MIMEType: "image/png", Data: []byte{0x89, 0x50}},
		},
	})

	assert.Len(t, contents, 1)
	assert.Len(t, contents[0].Parts, 2)
	assert.Equal(t, "image/png", contents[0].Parts[1].InlineData.MIMEType)
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, isPermanent(errors.New("googleapi: Error 400: INVALID_ARGUMENT")))
	assert.True(t, isPermanent(errors.New("response blocked by safety settings")))
	assert.False(t, isPermanent(errors.New("googleapi: Error 503: overloaded")))
	assert.False(t, isPermanent(errors.New("net/http: timeout awaiting response")))
}
