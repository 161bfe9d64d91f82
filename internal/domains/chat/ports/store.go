package ports

import (
	contractchat "github.com/seproj/chatbackend/internal/contracts/v1/chat"
)

// TranscriptStore persists one record per generation request and lists them
// grouped by persona.
//
// Implementations must be concurrency-safe; appends must not interleave.
type TranscriptStore interface {
	Append(req AppendTranscriptRequest) error
	ListByPersona(req ListTranscriptsRequest) (ListTranscriptsResult, error)
}

type AppendTranscriptRequest struct {
	Transcript contractchat.TranscriptV1
}

type ListTranscriptsRequest struct {
	// Personas optionally restricts the listing; matching is on the persona slug.
	Personas []string

	// CapPerPersona keeps only the N most recent transcripts per persona.
	// Values <= 0 mean no cap.
	CapPerPersona int
}

type ListTranscriptsResult struct {
	// ByPersona maps the persona label to its transcripts, oldest first.
	ByPersona map[string][]contractchat.TranscriptV1
}
