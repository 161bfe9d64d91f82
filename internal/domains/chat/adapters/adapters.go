package adapters

import (
	"github.com/seproj/chatbackend/internal/domains/chat/ports"
	"github.com/seproj/chatbackend/internal/platform/clock"
	"github.com/seproj/chatbackend/internal/platform/logging"
)

// Adapters bundles the default adapters for the chat domain.
//
// The in-flight registry is process memory; it only coordinates aborts for
// requests running in this server.
type Adapters struct {
	Store    ports.TranscriptStore
	Inflight ports.InflightRegistry
	Engines  EngineRegistry
}

// NewFSAdapters returns adapters backed by a transcript directory.
func NewFSAdapters(root string, clk clock.Clock, log logging.Logger) Adapters {
	inflight := NewMemoryInflight()
	inflight.Clock = clk
	return Adapters{
		Store:    NewFSTranscriptStore(root, log),
		Inflight: inflight,
		Engines:  NewEngineRegistry(),
	}
}
