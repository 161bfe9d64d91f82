package app

import (
	"context"

	contractorch "github.com/seproj/chatbackend/internal/contracts/v1/orchestrator"
	"github.com/seproj/chatbackend/internal/domains/orchestrator/domain"
	"github.com/seproj/chatbackend/internal/domains/orchestrator/ports"
	apperrors "github.com/seproj/chatbackend/internal/platform/errors"
	"github.com/seproj/chatbackend/internal/platform/logging"
)

const (
	// FailedMessage is reported for any orchestrate failure other than
	// invalid input or missing transcripts.
	FailedMessage = "Failed to run orchestrator."
	// NoStateMessage is reported before the first successful run.
	NoStateMessage = "Orchestrator state not yet available."
)

// Service implements the orchestrator use-cases: explicit runs, the cached
// state, and scheduled refreshes.
type Service struct {
	Job       Job
	Cache     ports.StateCache
	Scheduler *Scheduler
	Defaults  domain.Defaults
	Log       logging.Logger
}

type OrchestrateRequest struct {
	Request contractorch.RequestV1
}

type OrchestrateResult struct {
	Result contractorch.ResultV1
}

// Orchestrate runs the job with the caller's parameters and caches the result.
func (s *Service) Orchestrate(ctx context.Context, req OrchestrateRequest) (OrchestrateResult, error) {
	p, err := domain.ResolveRequest(s.Defaults, req.Request)
	if err != nil {
		return OrchestrateResult{}, err
	}
	res, err := s.Job.Run(ctx, p)
	if err != nil {
		if apperrors.IsNoTranscripts(err) || apperrors.IsInvalidRequest(err) {
			return OrchestrateResult{}, err
		}
		s.Log.WithError(err).Error("failed to execute orchestrator request")
		return OrchestrateResult{}, apperrors.NewInternal(FailedMessage, err)
	}
	if s.Cache != nil {
		s.Cache.Write(res)
	}
	return OrchestrateResult{Result: res}, nil
}

type StateResult struct {
	Snapshot contractorch.SnapshotV1
}

// State returns the cached snapshot, or NotFound before the first run.
func (s *Service) State() (StateResult, error) {
	if s.Cache == nil {
		return StateResult{}, apperrors.NewNotFound(NoStateMessage)
	}
	snap, ok := s.Cache.Read()
	if !ok {
		return StateResult{}, apperrors.NewNotFound(NoStateMessage)
	}
	return StateResult{Snapshot: snap}, nil
}

// Refresh is one scheduled run: default parameters, no requirements
// document. Having nothing to summarise is not a failure.
func (s *Service) Refresh(ctx context.Context) error {
	res, err := s.Job.Run(ctx, s.Defaults.ScheduledParams())
	if apperrors.IsNoTranscripts(err) {
		s.Log.Info("skipping orchestrator refresh; no transcripts available")
		return nil
	}
	if err != nil {
		return err
	}
	if s.Cache != nil {
		s.Cache.Write(res)
	}
	s.Log.WithField("personas", len(res.Summaries)).Info("orchestrator state refreshed")
	return nil
}

// Request schedules a background refresh.
func (s *Service) Request() {
	if s.Scheduler != nil {
		s.Scheduler.Request()
	}
}

func (s *Service) SchedulerStats() contractorch.SchedulerStatsV1 {
	if s.Scheduler == nil {
		return contractorch.SchedulerStatsV1{}
	}
	return s.Scheduler.Stats()
}
