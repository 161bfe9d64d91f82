package chat

import "time"

// DefaultPersona labels transcripts recorded without a persona.
const DefaultPersona = "general"

// FinishReasonV1 is the terminal reason of a generation.
type FinishReasonV1 string

const (
	FinishStop      FinishReasonV1 = "stop"
	FinishLength    FinishReasonV1 = "length"
	FinishError     FinishReasonV1 = "error"
	FinishCancelled FinishReasonV1 = "cancelled"
)

// TranscriptV1 is the durable record of one generation request, stored as one
// JSON document per request.
type TranscriptV1 struct {
	RequestID string    `json:"request_id"`
	CreatedAt time.Time `json:"created_at"`

	// Persona is the raw label supplied by the caller; Stakeholder mirrors it.
	Persona     string `json:"persona"`
	Stakeholder string `json:"stakeholder"`

	// Sequence is the store-assigned append ordinal. It orders transcripts
	// that share a CreatedAt.
	Sequence uint64 `json:"sequence,omitempty"`

	Messages   []MessageV1            `json:"messages"`
	Response   TranscriptResponseV1   `json:"response"`
	Parameters GenerationParametersV1 `json:"generation_parameters"`
}

type TranscriptResponseV1 struct {
	Content      string         `json:"content"`
	FinishReason FinishReasonV1 `json:"finish_reason"`
}

// PersonaOrDefault returns the grouping key of t.
func (t TranscriptV1) PersonaOrDefault() string {
	if t.Persona == "" {
		return DefaultPersona
	}
	return t.Persona
}
