package api

import (
	"context"

	chatapp "github.com/seproj/chatbackend/internal/domains/chat/app"
	"github.com/seproj/chatbackend/internal/domains/chat/domain"
	"github.com/seproj/chatbackend/internal/domains/chat/ports"
	"github.com/seproj/chatbackend/internal/platform/clock"
	"github.com/seproj/chatbackend/internal/platform/logging"
)

// API is the stable boundary for the chat domain.
// CLI and server handlers should call into this interface.
type API interface {
	Generate(ctx context.Context, req chatapp.GenerateRequest, sink chatapp.EventSink) (chatapp.GenerateResult, error)
	Health(req chatapp.HealthRequest) chatapp.HealthResult
}

// Dependencies are injected by wiring.Container.
type Dependencies struct {
	Clock   clock.Clock
	Engine  ports.GenerationService
	Store   ports.TranscriptStore
	Refresh ports.RefreshTrigger
	Log     logging.Logger

	Defaults domain.SamplingDefaults
}

func New(deps Dependencies) API {
	return &chatAPI{
		svc: &chatapp.Service{
			Clock:    deps.Clock,
			Engine:   deps.Engine,
			Store:    deps.Store,
			Refresh:  deps.Refresh,
			Log:      deps.Log.WithField("domain", "chat"),
			Defaults: deps.Defaults,
		},
	}
}

type chatAPI struct {
	svc *chatapp.Service
}

func (c *chatAPI) Generate(ctx context.Context, req chatapp.GenerateRequest, sink chatapp.EventSink) (chatapp.GenerateResult, error) {
	return c.svc.Generate(ctx, req, sink)
}

func (c *chatAPI) Health(req chatapp.HealthRequest) chatapp.HealthResult {
	return c.svc.Health(req)
}
