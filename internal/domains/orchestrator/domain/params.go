package domain

import (
	"fmt"

	contractorch "github.com/seproj/chatbackend/internal/contracts/v1/orchestrator"
	apperrors "github.com/seproj/chatbackend/internal/platform/errors"
)

// Limits of an explicit orchestrate request.
const (
	MinTranscriptsPerPersona = 1
	MaxTranscriptsPerPersona = 50

	MinSummaryTokens = 128
	MaxSummaryTokens = 2048

	MinRequirementsTokens = 256
	MaxRequirementsTokens = 3072
)

// RunParams are the resolved parameters of one orchestrator run.
type RunParams struct {
	Personas                 []string
	MaxTranscriptsPerPersona int
	SummaryMaxTokens         int
	RequirementsMaxTokens    int
	IncludeRequirements      bool
}

// Defaults are the values used when a request leaves a field unset, and by
// every scheduled refresh.
type Defaults struct {
	MaxTranscriptsPerPersona int
	SummaryMaxTokens         int
	RequirementsMaxTokens    int
}

// ScheduledParams returns the fixed parameters of a background refresh:
// every persona, summaries only.
func (d Defaults) ScheduledParams() RunParams {
	return RunParams{
		MaxTranscriptsPerPersona: d.MaxTranscriptsPerPersona,
		SummaryMaxTokens:         d.SummaryMaxTokens,
		RequirementsMaxTokens:    d.RequirementsMaxTokens,
		IncludeRequirements:      false,
	}
}

// Validate checks the defaults against the request limits, so a scheduled
// refresh is always capped and an explicit request with omitted fields can
// succeed.
func (d Defaults) Validate() error {
	if err := checkRange("max_transcripts", d.MaxTranscriptsPerPersona, MinTranscriptsPerPersona, MaxTranscriptsPerPersona); err != nil {
		return fmt.Errorf("orchestrator defaults: %w", err)
	}
	if err := checkRange("summary_max_tokens", d.SummaryMaxTokens, MinSummaryTokens, MaxSummaryTokens); err != nil {
		return fmt.Errorf("orchestrator defaults: %w", err)
	}
	if err := checkRange("requirements_max_tokens", d.RequirementsMaxTokens, MinRequirementsTokens, MaxRequirementsTokens); err != nil {
		return fmt.Errorf("orchestrator defaults: %w", err)
	}
	return nil
}

// ResolveRequest applies defaults to an explicit request and validates ranges.
// IncludeRequirements defaults to true.
func ResolveRequest(d Defaults, req contractorch.RequestV1) (RunParams, error) {
	p := RunParams{
		Personas:                 req.Personas,
		MaxTranscriptsPerPersona: d.MaxTranscriptsPerPersona,
		SummaryMaxTokens:         d.SummaryMaxTokens,
		RequirementsMaxTokens:    d.RequirementsMaxTokens,
		IncludeRequirements:      true,
	}
	if req.MaxTranscriptsPerPersona != nil {
		p.MaxTranscriptsPerPersona = *req.MaxTranscriptsPerPersona
	}
	if req.SummaryMaxTokens != nil {
		p.SummaryMaxTokens = *req.SummaryMaxTokens
	}
	if req.RequirementsMaxTokens != nil {
		p.RequirementsMaxTokens = *req.RequirementsMaxTokens
	}
	if req.IncludeRequirements != nil {
		p.IncludeRequirements = *req.IncludeRequirements
	}

	if err := checkRange("max_transcripts_per_persona", p.MaxTranscriptsPerPersona, MinTranscriptsPerPersona, MaxTranscriptsPerPersona); err != nil {
		return p, err
	}
	if err := checkRange("summary_max_tokens", p.SummaryMaxTokens, MinSummaryTokens, MaxSummaryTokens); err != nil {
		return p, err
	}
	if err := checkRange("requirements_max_tokens", p.RequirementsMaxTokens, MinRequirementsTokens, MaxRequirementsTokens); err != nil {
		return p, err
	}
	return p, nil
}

func checkRange(field string, v, low, high int) error {
	if v < low || v > high {
		return apperrors.NewInvalidRequest(fmt.Sprintf("%s must be between %d and %d", field, low, high))
	}
	return nil
}
