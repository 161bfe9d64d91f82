package domain

import (
	"fmt"

	"github.com/samber/lo"

	contractchat "github.com/seproj/chatbackend/internal/contracts/v1/chat"
	apperrors "github.com/seproj/chatbackend/internal/platform/errors"
)

// SamplingDefaults fill the fields a caller leaves unset.
type SamplingDefaults struct {
	MaxTokens        int
	Temperature      float64
	TopP             float64
	FrequencyPenalty float64
	Stop             []string
}

// SamplingOverrides are the optional caller-supplied fields.
type SamplingOverrides struct {
	MaxTokens        *int
	Temperature      *float64
	TopP             *float64
	PresencePenalty  *float64
	FrequencyPenalty *float64
	Stop             []string
	Stream           bool
}

// Sampling is the engine-facing configuration.
type Sampling struct {
	MaxTokens        int
	Temperature      float64
	TopP             float64
	PresencePenalty  float64
	FrequencyPenalty float64
	Stop             []string
}

// ResolveSampling applies defaults, validates ranges, and returns both the
// persisted caller view and the engine view. The engine's stop list is the
// caller's stops followed by the default stops, de-duplicated.
func ResolveSampling(d SamplingDefaults, o SamplingOverrides) (contractchat.GenerationParametersV1, Sampling, error) {
	p := contractchat.GenerationParametersV1{
		MaxTokens:        d.MaxTokens,
		Temperature:      d.Temperature,
		TopP:             d.TopP,
		FrequencyPenalty: d.FrequencyPenalty,
		Stop:             o.Stop,
		Stream:           o.Stream,
	}
	if o.MaxTokens != nil {
		p.MaxTokens = *o.MaxTokens
	}
	if o.Temperature != nil {
		p.Temperature = *o.Temperature
	}
	if o.TopP != nil {
		p.TopP = *o.TopP
	}
	if o.PresencePenalty != nil {
		p.PresencePenalty = *o.PresencePenalty
	}
	if o.FrequencyPenalty != nil {
		p.FrequencyPenalty = *o.FrequencyPenalty
	}

	switch {
	case p.MaxTokens < 1:
		return p, Sampling{}, apperrors.NewInvalidRequest("max_tokens must be >= 1")
	case p.Temperature < 0 || p.Temperature > 2:
		return p, Sampling{}, apperrors.NewInvalidRequest(rangeMsg("temperature", 0, 2))
	case p.TopP < 0 || p.TopP > 1:
		return p, Sampling{}, apperrors.NewInvalidRequest(rangeMsg("top_p", 0, 1))
	case p.PresencePenalty < -2 || p.PresencePenalty > 2:
		return p, Sampling{}, apperrors.NewInvalidRequest(rangeMsg("presence_penalty", -2, 2))
	case p.FrequencyPenalty < -2 || p.FrequencyPenalty > 2:
		return p, Sampling{}, apperrors.NewInvalidRequest(rangeMsg("frequency_penalty", -2, 2))
	}

	s := Sampling{
		MaxTokens:        p.MaxTokens,
		Temperature:      p.Temperature,
		TopP:             p.TopP,
		PresencePenalty:  p.PresencePenalty,
		FrequencyPenalty: p.FrequencyPenalty,
		Stop:             MergeStops(o.Stop, d.Stop),
	}
	return p, s, nil
}

// MergeStops concatenates caller and default stops, keeping first occurrences.
func MergeStops(caller, defaults []string) []string {
	all := make([]string, 0, len(caller)+len(defaults))
	all = append(all, caller...)
	all = append(all, defaults...)
	all = lo.Filter(all, func(s string, _ int) bool { return s != "" })
	if len(all) == 0 {
		return nil
	}
	return lo.Uniq(all)
}

func rangeMsg(field string, low, high float64) string {
	return fmt.Sprintf("%s must be between %g and %g", field, low, high)
}
