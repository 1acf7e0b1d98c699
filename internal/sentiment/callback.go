package sentiment

import (
	"context"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog"
)

type startKey struct{}

var runInfo = &callbacks.RunInfo{
	Name:      "sentiment",
	Type:      "LLMScorer",
	Component: components.ComponentOfChatModel,
}

// newLogHandler reports chat model calls at debug level with latency and
// token usage. Failures are logged at warn.
func newLogHandler(log zerolog.Logger) callbacks.Handler {
	return callbacks.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, _ *callbacks.RunInfo, _ callbacks.CallbackInput) context.Context {
			return context.WithValue(ctx, startKey{}, time.Now())
		}).
		OnEndFn(func(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
			evt := log.Debug().Str("run", info.Name)
			if started, ok := ctx.Value(startKey{}).(time.Time); ok {
				evt = evt.Dur("latency", time.Since(started))
			}
			if out := model.ConvCallbackOutput(output); out != nil && out.TokenUsage != nil {
				evt = evt.
					Int("prompt_tokens", out.TokenUsage.PromptTokens).
					Int("completion_tokens", out.TokenUsage.CompletionTokens)
			}
			evt.Msg("chat model call finished")
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
			log.Warn().Err(err).Str("run", info.Name).Msg("chat model call failed")
			return ctx
		}).
		Build()
}
