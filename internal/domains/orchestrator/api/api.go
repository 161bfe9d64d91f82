package api

import (
	"context"

	contractorch "github.com/seproj/chatbackend/internal/contracts/v1/orchestrator"
	orchapp "github.com/seproj/chatbackend/internal/domains/orchestrator/app"
	"github.com/seproj/chatbackend/internal/domains/orchestrator/domain"
	"github.com/seproj/chatbackend/internal/domains/orchestrator/ports"
	"github.com/seproj/chatbackend/internal/platform/logging"
)

// API is the stable boundary for the orchestrator domain.
type API interface {
	Orchestrate(ctx context.Context, req orchapp.OrchestrateRequest) (orchapp.OrchestrateResult, error)
	State() (orchapp.StateResult, error)

	// Request schedules a background refresh; it never blocks.
	Request()
	SchedulerStats() contractorch.SchedulerStatsV1

	// Close cancels and waits for background refreshes.
	Close()
}

// Dependencies are injected by wiring.Container.
type Dependencies struct {
	Source    ports.TranscriptSource
	Generator ports.Generator
	Cache     ports.StateCache
	Defaults  domain.Defaults
	Log       logging.Logger

	// Spawn overrides how scheduled refreshes are started (tests).
	Spawn orchapp.Spawner
}

func New(deps Dependencies) API {
	log := deps.Log.WithField("domain", "orchestrator")
	svc := &orchapp.Service{
		Job:      orchapp.Job{Source: deps.Source, Generator: deps.Generator, Log: log},
		Cache:    deps.Cache,
		Defaults: deps.Defaults,
		Log:      log,
	}
	svc.Scheduler = orchapp.NewScheduler(svc.Refresh, deps.Spawn, log)
	return &orchAPI{svc: svc}
}

type orchAPI struct {
	svc *orchapp.Service
}

func (o *orchAPI) Orchestrate(ctx context.Context, req orchapp.OrchestrateRequest) (orchapp.OrchestrateResult, error) {
	return o.svc.Orchestrate(ctx, req)
}

func (o *orchAPI) State() (orchapp.StateResult, error) {
	return o.svc.State()
}

func (o *orchAPI) Request() {
	o.svc.Request()
}

func (o *orchAPI) SchedulerStats() contractorch.SchedulerStatsV1 {
	return o.svc.SchedulerStats()
}

func (o *orchAPI) Close() {
	o.svc.Scheduler.Close()
}
