package ports

import (
	"context"

	contractchat "github.com/seproj/chatbackend/internal/contracts/v1/chat"
	contractorch "github.com/seproj/chatbackend/internal/contracts/v1/orchestrator"
)

// TranscriptSource lists stored transcripts grouped by persona label.
type TranscriptSource interface {
	ListByPersona(req ListRequest) (map[string][]contractchat.TranscriptV1, error)
}

type ListRequest struct {
	// Personas optionally restricts the listing (slug match).
	Personas []string
	// CapPerPersona keeps the N most recent per persona, oldest first.
	CapPerPersona int
}

// Generator runs one buffered, single-turn completion and returns the
// trimmed output.
type Generator interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

type CompletionRequest struct {
	Prompt           string
	MaxTokens        int
	Temperature      float64
	TopP             float64
	PresencePenalty  float64
	FrequencyPenalty float64
}

// StateCache holds the latest orchestrator result and the time it was
// produced. Read never observes a result paired with another write's time.
type StateCache interface {
	Read() (contractorch.SnapshotV1, bool)
	Write(result contractorch.ResultV1) contractorch.SnapshotV1
}
