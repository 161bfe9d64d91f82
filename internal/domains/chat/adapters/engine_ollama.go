package adapters

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"

	"github.com/seproj/chatbackend/internal/domains/chat/ports"
	apperrors "github.com/seproj/chatbackend/internal/platform/errors"
	"github.com/seproj/chatbackend/internal/platform/logging"
)

const defaultOllamaURL = "http://localhost:11434"

// OllamaEngine runs generations against a local Ollama daemon.
type OllamaEngine struct {
	engineBase

	llm *ollama.LLM
}

func NewOllamaEngine(serverURL, model string, inflight ports.InflightRegistry, log logging.Logger) (*OllamaEngine, error) {
	serverURL = strings.TrimRight(strings.TrimSpace(serverURL), "/")
	if serverURL == "" {
		serverURL = defaultOllamaURL
	}
	llm, err := ollama.New(ollama.WithModel(model), ollama.WithServerURL(serverURL))
	if err != nil {
		return nil, apperrors.NewGenerationUnavailable("ollama: cannot create client", err)
	}
	e := &OllamaEngine{llm: llm}
	e.init("ollama", model, inflight, log)
	return e, nil
}

func (e *OllamaEngine) Generate(ctx context.Context, req ports.GenerationRequest, handler ports.FragmentHandler) (ports.Fragment, error) {
	return e.track(ctx, req.RequestID, func(ctx context.Context) (ports.Fragment, error) {
		acc := newAccumulator(handler)
		started := false
		var handlerErr error

		opts := []llms.CallOption{
			llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
				started = true
				handlerErr = acc.add(string(chunk))
				return handlerErr
			}),
			llms.WithMaxTokens(req.Sampling.MaxTokens),
			llms.WithTemperature(req.Sampling.Temperature),
			llms.WithTopP(req.Sampling.TopP),
			llms.WithFrequencyPenalty(req.Sampling.FrequencyPenalty),
			llms.WithPresencePenalty(req.Sampling.PresencePenalty),
		}
		if len(req.Sampling.Stop) > 0 {
			opts = append(opts, llms.WithStopWords(req.Sampling.Stop))
		}

		resp, err := e.llm.GenerateContent(ctx, []llms.MessageContent{
			llms.TextParts(schema.ChatMessageTypeHuman, req.Prompt),
		}, opts...)
		if err != nil {
			if ctx.Err() != nil {
				return acc.final(""), ctx.Err()
			}
			if handlerErr != nil {
				return acc.final(""), handlerErr
			}
			if !started {
				return acc.final(""), apperrors.NewGenerationUnavailable("ollama: request failed", err)
			}
			return acc.final(""), apperrors.NewGeneration("ollama: stream failed", err)
		}
		e.ready.Store(true)

		reason := ""
		if resp != nil && len(resp.Choices) > 0 {
			reason = resp.Choices[0].StopReason
		}
		return acc.final(reason), nil
	})
}
