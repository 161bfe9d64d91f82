package adapters

import (
	"context"
	"strings"

	contractchat "github.com/seproj/chatbackend/internal/contracts/v1/chat"
	chatdomain "github.com/seproj/chatbackend/internal/domains/chat/domain"
	chatports "github.com/seproj/chatbackend/internal/domains/chat/ports"
	"github.com/seproj/chatbackend/internal/domains/orchestrator/ports"
	apperrors "github.com/seproj/chatbackend/internal/platform/errors"
)

// ChatTranscripts reads transcripts from the chat domain's store.
type ChatTranscripts struct {
	Store chatports.TranscriptStore
}

func (c ChatTranscripts) ListByPersona(req ports.ListRequest) (map[string][]contractchat.TranscriptV1, error) {
	if c.Store == nil {
		return nil, apperrors.NewInternal("orchestrator: transcript store is nil", nil)
	}
	res, err := c.Store.ListByPersona(chatports.ListTranscriptsRequest{
		Personas:      req.Personas,
		CapPerPersona: req.CapPerPersona,
	})
	if err != nil {
		return nil, err
	}
	return res.ByPersona, nil
}

// EngineGenerator runs orchestrator prompts directly on the chat engine.
// These completions are not recorded as transcripts.
type EngineGenerator struct {
	Engine chatports.GenerationService
}

func (g EngineGenerator) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	if g.Engine == nil {
		return "", apperrors.NewInternal("orchestrator: engine is nil", nil)
	}
	frag, err := g.Engine.Generate(ctx, chatports.GenerationRequest{
		RequestID: chatdomain.NewRequestID(),
		Prompt:    req.Prompt,
		Sampling: chatdomain.Sampling{
			MaxTokens:        req.MaxTokens,
			Temperature:      req.Temperature,
			TopP:             req.TopP,
			PresencePenalty:  req.PresencePenalty,
			FrequencyPenalty: req.FrequencyPenalty,
		},
	}, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(frag.Text), nil
}
