package sentiment

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexFolio/config"
	"github.com/dyike/CortexFolio/internal/logger"
)

type fakeModel struct {
	reply string
	err   error
	seen  []*schema.Message
	calls int
}

func (f *fakeModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.calls++
	f.seen = input
	if f.err != nil {
		return nil, f.err
	}
	return &schema.Message{Role: schema.Assistant, Content: f.reply}, nil
}

func TestNeutral(t *testing.T) {
	s, err := Neutral{}.Score(context.Background(), "Stocks soar to record highs")
	require.NoError(t, err)
	assert.Zero(t, s)
}

func TestScorerFunc(t *testing.T) {
	var sc Scorer = ScorerFunc(func(_ context.Context, text string) (float64, error) {
		return float64(len(text)) / 10, nil
	})
	s, err := sc.Score(context.Background(), "abc")
	require.NoError(t, err)
	assert.InDelta(t, 0.3, s, 1e-12)
}

func TestLabel(t *testing.T) {
	tests := map[float64]string{
		0.8:   LabelPositive,
		0.051: LabelPositive,
		0.05:  LabelNeutral,
		0:     LabelNeutral,
		-0.05: LabelNeutral,
		-0.2:  LabelNegative,
	}
	for score, want := range tests {
		assert.Equal(t, want, Label(score), "score %v", score)
	}
}

func TestLLMScorer(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  float64
	}{
		{"plain", `{"score": 0.4}`, 0.4},
		{"fenced", "```json\n{\"score\": -0.7}\n```", -0.7},
		{"clamped high", `{"score": 3}`, 1},
		{"clamped low", `Sure: {"score": -9.5}`, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm := &fakeModel{reply: tt.reply}
			got, err := NewLLMScorer(fm, logger.Nop()).Score(context.Background(), "Apple beats earnings")
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
			require.Len(t, fm.seen, 2)
			assert.Equal(t, schema.System, fm.seen[0].Role)
			assert.Equal(t, "Apple beats earnings", fm.seen[1].Content)
		})
	}
}

func TestLLMScorerErrors(t *testing.T) {
	bad := &fakeModel{reply: "I think it is positive"}
	_, err := NewLLMScorer(bad, logger.Nop()).Score(context.Background(), "text")
	assert.Error(t, err)

	missing := &fakeModel{reply: `{"sentiment": 1}`}
	_, err = NewLLMScorer(missing, logger.Nop()).Score(context.Background(), "text")
	assert.Error(t, err)

	failing := &fakeModel{err: errors.New("rate limited")}
	_, err = NewLLMScorer(failing, logger.Nop()).Score(context.Background(), "text")
	assert.ErrorContains(t, err, "rate limited")
}

func TestLLMScorerSkipsEmptyText(t *testing.T) {
	fm := &fakeModel{reply: `{"score": 1}`}
	got, err := NewLLMScorer(fm, logger.Nop()).Score(context.Background(), "   ")
	require.NoError(t, err)
	assert.Zero(t, got)
	assert.Zero(t, fm.calls)
}

func TestNewSelectsScorer(t *testing.T) {
	cfg := config.DefaultConfigWithRoot(t.TempDir())

	s, err := New(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	assert.IsType(t, Neutral{}, s)

	cfg.SentimentScorer = config.ScorerLLM
	cfg.LLMAPIKey = ""
	_, err = New(context.Background(), cfg, logger.Nop())
	assert.Error(t, err)

	cfg.SentimentScorer = "vader"
	_, err = New(context.Background(), cfg, logger.Nop())
	assert.Error(t, err)
}

// reportingModel fires the callbacks a real chat model emits.
type reportingModel struct{ err error }

func (m reportingModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	ctx = callbacks.OnStart(ctx, &model.CallbackInput{Messages: input})
	if m.err != nil {
		callbacks.OnError(ctx, m.err)
		return nil, m.err
	}
	msg := &schema.Message{Role: schema.Assistant, Content: `{"score": 0.2}`}
	callbacks.OnEnd(ctx, &model.CallbackOutput{
		Message:    msg,
		TokenUsage: &model.TokenUsage{PromptTokens: 12, CompletionTokens: 3, TotalTokens: 15},
	})
	return msg, nil
}

func TestLLMScorerLogsModelCalls(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Level: "debug", Output: &buf})

	got, err := NewLLMScorer(reportingModel{}, log).Score(context.Background(), "Fed holds rates")
	require.NoError(t, err)
	assert.InDelta(t, 0.2, got, 1e-12)
	assert.Contains(t, buf.String(), "chat model call finished")
	assert.Contains(t, buf.String(), `"prompt_tokens":12`)

	buf.Reset()
	_, err = NewLLMScorer(reportingModel{err: errors.New("boom")}, log).Score(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, buf.String(), "chat model call failed")
}
