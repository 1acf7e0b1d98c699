// Package sentiment scores article text on a -1 (bearish) to 1 (bullish)
// scale.
package sentiment

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/rs/zerolog"

	"github.com/dyike/CortexFolio/config"
)

const (
	LabelPositive = "positive"
	LabelNegative = "negative"
	LabelNeutral  = "neutral"

	labelThreshold = 0.05
)

// Scorer assigns a sentiment in [-1, 1] to a piece of text.
type Scorer interface {
	Score(ctx context.Context, text string) (float64, error)
}

// ScorerFunc adapts a plain function to Scorer.
type ScorerFunc func(ctx context.Context, text string) (float64, error)

func (f ScorerFunc) Score(ctx context.Context, text string) (float64, error) {
	return f(ctx, text)
}

// Neutral scores everything 0.
type Neutral struct{}

func (Neutral) Score(context.Context, string) (float64, error) { return 0, nil }

func Label(score float64) string {
	switch {
	case score > labelThreshold:
		return LabelPositive
	case score < -labelThreshold:
		return LabelNegative
	default:
		return LabelNeutral
	}
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// New builds the scorer selected by cfg.SentimentScorer.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (Scorer, error) {
	switch cfg.SentimentScorer {
	case "", config.ScorerNeutral:
		return Neutral{}, nil
	case config.ScorerLLM:
		gen, err := newChatModel(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewLLMScorer(gen, log), nil
	default:
		return nil, fmt.Errorf("unknown sentiment scorer %q", cfg.SentimentScorer)
	}
}

func newChatModel(ctx context.Context, cfg *config.Config) (Generator, error) {
	if cfg.LLMAPIKey == "" {
		return nil, fmt.Errorf("llm scorer: api key not configured")
	}
	switch cfg.LLMProvider {
	case config.LLMProviderDeepSeek:
		cm, err := deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:    cfg.LLMAPIKey,
			Model:     cfg.LLMModel,
			MaxTokens: cfg.LLMMaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create DeepSeek model: %w", err)
		}
		return cm, nil
	case config.LLMProviderOpenAI:
		maxTokens := cfg.LLMMaxTokens
		cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:   cfg.LLMBaseURL,
			APIKey:    cfg.LLMAPIKey,
			Model:     cfg.LLMModel,
			MaxTokens: &maxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI-compatible model: %w", err)
		}
		return cm, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
}
