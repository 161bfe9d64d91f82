package orchestrator

import "time"

// ResultV1 is the output of one orchestrator run.
type ResultV1 struct {
	Summaries            map[string]string `json:"summaries"`
	RequirementsDocument string            `json:"requirements_document"`
}

// Clone returns a deep copy of r.
func (r ResultV1) Clone() ResultV1 {
	out := ResultV1{RequirementsDocument: r.RequirementsDocument}
	if r.Summaries != nil {
		out.Summaries = make(map[string]string, len(r.Summaries))
		for k, v := range r.Summaries {
			out.Summaries[k] = v
		}
	}
	return out
}

// SnapshotV1 is a cached result paired with the time it was produced.
type SnapshotV1 struct {
	UpdatedAt            time.Time         `json:"updated_at"`
	Summaries            map[string]string `json:"summaries"`
	RequirementsDocument string            `json:"requirements_document"`
}

// Result returns the result half of s.
func (s SnapshotV1) Result() ResultV1 {
	return ResultV1{Summaries: s.Summaries, RequirementsDocument: s.RequirementsDocument}.Clone()
}

// RequestV1 is the /orchestrate request body. Nil fields take defaults.
type RequestV1 struct {
	Personas                 []string `json:"personas,omitempty"`
	MaxTranscriptsPerPersona *int     `json:"max_transcripts_per_persona,omitempty"`
	SummaryMaxTokens         *int     `json:"summary_max_tokens,omitempty"`
	RequirementsMaxTokens    *int     `json:"requirements_max_tokens,omitempty"`
	IncludeRequirements      *bool    `json:"include_requirements,omitempty"`
}

// SchedulerStatsV1 reports the refresh scheduler's state.
type SchedulerStatsV1 struct {
	Running   bool  `json:"running"`
	Pending   bool  `json:"pending"`
	Runs      int64 `json:"runs"`
	Failures  int64 `json:"failures"`
	Coalesced int64 `json:"coalesced"`
}
