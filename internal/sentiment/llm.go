package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
)

// Generator is the part of an eino chat model the scorer needs.
type Generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

const systemPrompt = `You rate the market sentiment of financial news text.
Reply with a single JSON object {"score": x} where x is a number between -1 (very bearish) and 1 (very bullish), 0 being neutral. Do not add any other text.`

// maxPromptRunes bounds the text sent to the model.
const maxPromptRunes = 4000

// LLMScorer asks a chat model for a score.
type LLMScorer struct {
	model   Generator
	log     zerolog.Logger
	handler callbacks.Handler
}

func NewLLMScorer(m Generator, log zerolog.Logger) *LLMScorer {
	log = log.With().Str("component", "sentiment").Logger()
	return &LLMScorer{model: m, log: log, handler: newLogHandler(log)}
}

func (s *LLMScorer) Score(ctx context.Context, text string) (float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, nil
	}
	if utf8.RuneCountInString(text) > maxPromptRunes {
		text = string([]rune(text)[:maxPromptRunes])
	}

	ctx = callbacks.InitCallbacks(ctx, runInfo, s.handler)
	resp, err := s.model.Generate(ctx, []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(text),
	})
	if err != nil {
		return 0, fmt.Errorf("score sentiment: %w", err)
	}
	if resp == nil {
		return 0, fmt.Errorf("score sentiment: empty reply")
	}

	score, err := parseScore(resp.Content)
	if err != nil {
		s.log.Warn().Err(err).Str("reply", resp.Content).Msg("unparseable sentiment reply")
		return 0, fmt.Errorf("score sentiment: %w", err)
	}
	return score, nil
}

// parseScore reads {"score": x} from a reply that may wrap it in prose or
// a code fence.
func parseScore(reply string) (float64, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return 0, fmt.Errorf("no JSON object in reply")
	}
	var out struct {
		Score *float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(reply[start:end+1]), &out); err != nil {
		return 0, fmt.Errorf("decode reply: %w", err)
	}
	if out.Score == nil {
		return 0, fmt.Errorf("reply has no score")
	}
	return clamp(*out.Score), nil
}
