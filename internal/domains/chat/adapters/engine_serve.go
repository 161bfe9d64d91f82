package adapters

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/schema"

	"github.com/seproj/chatbackend/internal/domains/chat/ports"
	apperrors "github.com/seproj/chatbackend/internal/platform/errors"
	"github.com/seproj/chatbackend/internal/platform/logging"
)

// ServeEngine talks to a vLLM OpenAI-compatible server through its chat
// completions endpoint. The rendered prompt is sent as a single user message.
type ServeEngine struct {
	engineBase

	BaseURL string
	APIKey  string

	HTTPClient *http.Client
}

func NewServeEngine(baseURL, model, apiKey string, inflight ports.InflightRegistry, log logging.Logger) *ServeEngine {
	e := &ServeEngine{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		APIKey:  strings.TrimSpace(apiKey),
	}
	e.init("serve", model, inflight, log)
	return e
}

func (e *ServeEngine) Generate(ctx context.Context, req ports.GenerationRequest, handler ports.FragmentHandler) (ports.Fragment, error) {
	return e.track(ctx, req.RequestID, func(ctx context.Context) (ports.Fragment, error) {
		return e.stream(ctx, req, handler)
	})
}

func (e *ServeEngine) chatModel(ctx context.Context, req ports.GenerationRequest) (*openai.ChatModel, error) {
	key := e.APIKey
	if key == "" {
		// vLLM ignores the key unless started with --api-key; the client requires one.
		key = "EMPTY"
	}
	maxTokens := req.Sampling.MaxTokens
	temperature := float32(req.Sampling.Temperature)
	topP := float32(req.Sampling.TopP)
	presence := float32(req.Sampling.PresencePenalty)
	frequency := float32(req.Sampling.FrequencyPenalty)

	cfg := &openai.ChatModelConfig{
		APIKey:           key,
		BaseURL:          e.BaseURL + "/v1",
		Model:            e.model,
		MaxTokens:        &maxTokens,
		Temperature:      &temperature,
		TopP:             &topP,
		PresencePenalty:  &presence,
		FrequencyPenalty: &frequency,
		Stop:             req.Sampling.Stop,
	}
	if e.HTTPClient != nil {
		cfg.HTTPClient = e.HTTPClient
	}
	return openai.NewChatModel(ctx, cfg)
}

func (e *ServeEngine) stream(ctx context.Context, req ports.GenerationRequest, handler ports.FragmentHandler) (ports.Fragment, error) {
	cm, err := e.chatModel(ctx, req)
	if err != nil {
		return ports.Fragment{}, apperrors.NewGenerationUnavailable("serve: cannot build chat model", err)
	}

	reader, err := cm.Stream(ctx, []*schema.Message{schema.UserMessage(req.Prompt)})
	if err != nil {
		if ctx.Err() != nil {
			return ports.Fragment{}, ctx.Err()
		}
		e.log.WithError(err).Error("vLLM serve stream failed to start")
		return ports.Fragment{}, apperrors.NewGenerationUnavailable("serve: stream request failed", err)
	}
	defer reader.Close()
	e.ready.Store(true)

	acc := newAccumulator(handler)
	reason := ""
	for {
		msg, err := reader.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return acc.final(""), ctx.Err()
			}
			return acc.final(""), apperrors.NewGeneration("serve: stream read failed", err)
		}
		if msg == nil {
			continue
		}
		if msg.ResponseMeta != nil && msg.ResponseMeta.FinishReason != "" {
			reason = msg.ResponseMeta.FinishReason
		}
		if err := acc.add(msg.Content); err != nil {
			return acc.final(""), err
		}
	}
	return acc.final(reason), nil
}
