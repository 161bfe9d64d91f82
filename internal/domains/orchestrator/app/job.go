package app

import (
	"context"
	"sort"

	"github.com/samber/lo"

	contractchat "github.com/seproj/chatbackend/internal/contracts/v1/chat"
	contractorch "github.com/seproj/chatbackend/internal/contracts/v1/orchestrator"
	"github.com/seproj/chatbackend/internal/domains/orchestrator/domain"
	"github.com/seproj/chatbackend/internal/domains/orchestrator/ports"
	apperrors "github.com/seproj/chatbackend/internal/platform/errors"
	"github.com/seproj/chatbackend/internal/platform/logging"
)

// NoTranscriptsMessage is returned when there is nothing to summarise.
const NoTranscriptsMessage = "No transcripts available for the requested personas."

// Sampling of the two orchestrator completions.
var (
	summarySampling = ports.CompletionRequest{
		Temperature:      0.35,
		TopP:             0.9,
		FrequencyPenalty: 0.2,
	}
	requirementsSampling = ports.CompletionRequest{
		Temperature:      0.45,
		TopP:             0.92,
		FrequencyPenalty: 0.2,
	}
)

// Job turns stored transcripts into per-persona summaries and, optionally, a
// requirements document. Run has no side effects on shared state.
type Job struct {
	Source    ports.TranscriptSource
	Generator ports.Generator
	Log       logging.Logger
}

func (j Job) Run(ctx context.Context, p domain.RunParams) (contractorch.ResultV1, error) {
	if j.Source == nil || j.Generator == nil {
		return contractorch.ResultV1{}, apperrors.NewInternal("orchestrator: job is not wired", nil)
	}

	grouped, err := j.Source.ListByPersona(ports.ListRequest{
		Personas:      p.Personas,
		CapPerPersona: p.MaxTranscriptsPerPersona,
	})
	if err != nil {
		return contractorch.ResultV1{}, err
	}

	personas := lo.Keys(lo.PickBy(grouped, func(_ string, ts []contractchat.TranscriptV1) bool {
		return len(ts) > 0
	}))
	if len(personas) == 0 {
		return contractorch.ResultV1{}, apperrors.NewNoTranscripts(NoTranscriptsMessage)
	}
	sort.Strings(personas)

	summaries := map[string]string{}
	ordered := make([]domain.PersonaSummary, 0, len(personas))
	for _, persona := range personas {
		if err := ctx.Err(); err != nil {
			return contractorch.ResultV1{}, err
		}
		req := summarySampling
		req.Prompt = domain.SummaryPrompt(persona, grouped[persona])
		req.MaxTokens = p.SummaryMaxTokens

		text, err := j.Generator.Complete(ctx, req)
		if err != nil {
			return contractorch.ResultV1{}, err
		}
		summary := domain.ClampLines(text, domain.MaxSummaryLines)
		j.Log.With(logging.Fields{"persona": persona, "transcripts": len(grouped[persona])}).Debug("persona summarised")
		if summary == "" {
			continue
		}
		summaries[persona] = summary
		ordered = append(ordered, domain.PersonaSummary{Persona: persona, Summary: summary})
	}
	if len(summaries) == 0 {
		return contractorch.ResultV1{}, apperrors.NewNoTranscripts(NoTranscriptsMessage)
	}

	result := contractorch.ResultV1{Summaries: summaries}
	if p.IncludeRequirements {
		req := requirementsSampling
		req.Prompt = domain.RequirementsPrompt(ordered)
		req.MaxTokens = p.RequirementsMaxTokens

		doc, err := j.Generator.Complete(ctx, req)
		if err != nil {
			return contractorch.ResultV1{}, err
		}
		result.RequirementsDocument = doc
	}
	return result, nil
}
