package app

import (
	"time"

	contractchat "github.com/seproj/chatbackend/internal/contracts/v1/chat"
	"github.com/seproj/chatbackend/internal/domains/chat/domain"
	"github.com/seproj/chatbackend/internal/domains/chat/ports"
	"github.com/seproj/chatbackend/internal/platform/clock"
	"github.com/seproj/chatbackend/internal/platform/logging"
)

// Service implements the chat application use-cases.
//
// It orchestrates ports:
// - GenerationService (the single configured engine)
// - TranscriptStore (one record per request)
// - RefreshTrigger (background orchestrator refresh, optional)
type Service struct {
	Clock   clock.Clock
	Engine  ports.GenerationService
	Store   ports.TranscriptStore
	Refresh ports.RefreshTrigger
	Log     logging.Logger

	// Defaults fill sampling fields the caller leaves unset.
	Defaults domain.SamplingDefaults
}

type HealthRequest struct {
	// Model is the configured model id; an empty value reports unhealthy.
	Model string
}

type HealthResult struct {
	Health contractchat.HealthV1
	OK     bool
}

// Health reports the configured model and whether the engine has answered yet.
func (s *Service) Health(req HealthRequest) HealthResult {
	h := contractchat.HealthV1{Status: "ok", Model: req.Model}
	if s.Engine != nil {
		h.EngineReady = s.Engine.Ready()
		h.Backend = s.Engine.Name()
	}
	return HealthResult{Health: h, OK: req.Model != ""}
}

func (s *Service) nowUTC() time.Time {
	return clock.NowUTC(s.Clock)
}
