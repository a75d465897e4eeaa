package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/medisync/internal/config"
	"github.com/wolfman30/medisync/internal/llm"
	"github.com/wolfman30/medisync/internal/observability/metrics"
	"github.com/wolfman30/medisync/pkg/logging"
)

// LLM provider preferences.
const (
	ProviderAuto    = "auto"
	ProviderBedrock = "bedrock"
	ProviderGemini  = "gemini"
)

// Collaborators are the LLM clients behind extraction, generation and the
// shift summary. Each is instrumented under its own name.
type Collaborators struct {
	Extraction llm.Client
	Generation llm.Client
	Summary    llm.Client

	closers []func() error
}

// Close releases provider clients.
func (c *Collaborators) Close() {
	for _, fn := range c.closers {
		_ = fn()
	}
}

// BuildCollaborators wires Bedrock and Gemini according to cfg.LLMProvider.
// In auto mode Bedrock is primary and Gemini the fallback. With neither
// configured every collaborator is a stub that always reports unavailable.
func BuildCollaborators(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, m *metrics.CollaboratorMetrics, logger *logging.Logger) (*Collaborators, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	out := &Collaborators{}
	var bedrock, gemini llm.Client

	provider := strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	if provider == "" {
		provider = ProviderAuto
	}
	if provider != ProviderAuto && provider != ProviderBedrock && provider != ProviderGemini {
		return nil, fmt.Errorf("bootstrap: unknown llm provider %q", provider)
	}

	if provider != ProviderGemini && strings.TrimSpace(cfg.BedrockModelID) != "" {
		if awsCfg == nil {
			return nil, fmt.Errorf("bootstrap: bedrock needs aws config")
		}
		bedrock = llm.NewBedrockClient(bedrockruntime.NewFromConfig(*awsCfg), cfg.BedrockModelID)
	}
	if provider != ProviderBedrock && strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		gc, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		gemini = gc
		out.closers = append(out.closers, gc.Close)
	}

	var base llm.Client
	switch {
	case bedrock != nil:
		base = llm.NewFallbackClient(bedrock, gemini, logger)
		logger.Info("llm collaborators enabled", "primary", ProviderBedrock, "fallback", gemini != nil)
	case gemini != nil:
		base = gemini
		logger.Info("llm collaborators enabled", "primary", ProviderGemini)
	default:
		logger.Warn("no llm provider configured; extraction, generation and summaries are unavailable")
		base = llm.StubClient{}
	}

	out.Extraction = llm.Instrument(base, "extraction", cfg.LLMTimeout, m)
	out.Generation = llm.Instrument(base, "generation", cfg.LLMTimeout, m)
	out.Summary = llm.Instrument(base, "summary", cfg.LLMTimeout, m)
	return out, nil
}
