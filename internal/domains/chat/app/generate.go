package app

import (
	"context"
	"errors"
	"strings"
	"sync"

	contractchat "github.com/seproj/chatbackend/internal/contracts/v1/chat"
	"github.com/seproj/chatbackend/internal/domains/chat/domain"
	"github.com/seproj/chatbackend/internal/domains/chat/ports"
	apperrors "github.com/seproj/chatbackend/internal/platform/errors"
	"github.com/seproj/chatbackend/internal/platform/logging"
)

// EventSink receives the streamed side of a generation.
//
// Begin is called once with the request id before the engine is invoked;
// after that every outcome is reported through Event, never as an HTTP
// status. Returning an error from either method is treated as the caller
// going away.
type EventSink interface {
	Begin(requestID string) error
	Event(ev contractchat.StreamEventV1) error
}

type GenerateRequest struct {
	Messages []contractchat.MessageV1
	Sampling domain.SamplingOverrides
	Persona  string

	// Stream is recorded with the transcript parameters. Streaming itself is
	// selected by passing a non-nil sink.
	Stream bool
}

type GenerateResult struct {
	RequestID    string
	Output       string
	FinishReason contractchat.FinishReasonV1
}

// Generate runs one client request end to end: prompt construction, engine
// invocation, relay of deltas to sink (when non-nil), a single persistence
// step, and a refresh request after a successful generation.
//
// Validation failures are returned before a request id is allocated or the
// engine is called.
func (s *Service) Generate(ctx context.Context, req GenerateRequest, sink EventSink) (GenerateResult, error) {
	if s.Engine == nil {
		return GenerateResult{}, apperrors.NewInternal("chat: Engine is nil", nil)
	}

	prompt, err := domain.BuildPrompt(req.Messages)
	if err != nil {
		return GenerateResult{}, err
	}
	overrides := req.Sampling
	overrides.Stream = req.Stream
	params, sampling, err := domain.ResolveSampling(s.Defaults, overrides)
	if err != nil {
		return GenerateResult{}, err
	}

	requestID := domain.NewRequestID()
	persona := domain.PersonaLabel(req.Persona)
	log := s.Log.With(logging.Fields{"request_id": requestID, "persona": persona, "backend": s.Engine.Name()})

	if sink != nil {
		if err := sink.Begin(requestID); err != nil {
			return GenerateResult{RequestID: requestID}, err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Whatever ends the caller's context, the engine hears about it by id.
	stopAbort := context.AfterFunc(ctx, func() {
		s.Engine.Abort(requestID)
	})
	defer stopAbort()

	run := &generation{
		requestID: requestID,
		sink:      sink,
		cancel:    cancel,
	}

	created := s.nowUTC()
	log.Debug("generation started")
	frag, genErr := s.Engine.Generate(ctx, ports.GenerationRequest{
		RequestID: requestID,
		Prompt:    prompt,
		Sampling:  sampling,
		Persona:   persona,
	}, ports.FragmentFunc(run.onFragment))

	// The final fragment may carry text not yet seen by the handler.
	if genErr == nil && frag.Text != "" && frag.Text != run.text {
		genErr = run.onFragment(ports.Fragment{Text: frag.Text})
	}

	fin := &finalizer{
		svc: s,
		log: log,
		transcript: contractchat.TranscriptV1{
			RequestID:   requestID,
			CreatedAt:   created,
			Persona:     persona,
			Stakeholder: persona,
			Messages:    req.Messages,
			Parameters:  params,
		},
	}

	switch {
	case run.cancelled(ctx, genErr):
		// The caller is gone; make sure the engine stopped, record what we have.
		if stopAbort() {
			s.Engine.Abort(requestID)
		}
		fin.persist(run.text, contractchat.FinishCancelled)
		log.WithField("chars", len(run.text)).Info("generation cancelled by caller")
		return GenerateResult{RequestID: requestID, Output: run.text, FinishReason: contractchat.FinishCancelled}, context.Canceled

	case genErr != nil:
		if run.received == 0 && apperrors.IsGenerationUnavailable(genErr) {
			log.WithError(genErr).Error("generation service unavailable")
		} else {
			if run.received > 0 {
				fin.persist(run.text, contractchat.FinishError)
			}
			log.WithError(genErr).Error("generation failed")
			if k := apperrors.KindOf(genErr); k != apperrors.KindGeneration && k != apperrors.KindGenerationUnavailable {
				genErr = apperrors.NewGeneration("generation failed: "+genErr.Error(), genErr)
			}
		}
		run.emit(contractchat.StreamEventV1{
			Type:      contractchat.EventError,
			Message:   apperrors.MessageOf(genErr),
			Content:   run.text,
			RequestID: requestID,
		})
		return GenerateResult{RequestID: requestID, Output: run.text, FinishReason: contractchat.FinishError}, genErr
	}

	reason := frag.FinishReason
	if reason == "" {
		reason = contractchat.FinishStop
	}
	output := run.text
	if sink == nil {
		output = strings.TrimSpace(output)
	}

	fin.persist(output, reason)
	if strings.TrimSpace(output) != "" && s.Refresh != nil {
		s.Refresh.Request()
	}
	log.With(logging.Fields{"chars": len(output), "finish_reason": reason}).Info("generation finished")

	run.emit(contractchat.StreamEventV1{
		Type:         contractchat.EventDone,
		Content:      output,
		FinishReason: reason,
		RequestID:    requestID,
	})
	return GenerateResult{RequestID: requestID, Output: output, FinishReason: reason}, nil
}

// generation is the relay state of one request.
type generation struct {
	requestID string
	sink      EventSink
	cancel    context.CancelFunc

	text     string
	received int
	sinkErr  error
}

func (g *generation) onFragment(f ports.Fragment) error {
	delta, err := domain.NextDelta(g.text, f.Text)
	if err != nil {
		return err
	}
	g.received++
	if delta == "" {
		return nil
	}
	g.text = f.Text
	if g.sink == nil {
		return nil
	}
	if err := g.sink.Event(contractchat.StreamEventV1{
		Type:      contractchat.EventToken,
		Delta:     delta,
		Content:   g.text,
		RequestID: g.requestID,
	}); err != nil {
		g.sinkErr = err
		g.cancel()
		return context.Canceled
	}
	return nil
}

func (g *generation) emit(ev contractchat.StreamEventV1) {
	if g.sink == nil || g.sinkErr != nil {
		return
	}
	g.sinkErr = g.sink.Event(ev)
}

func (g *generation) cancelled(ctx context.Context, err error) bool {
	return g.sinkErr != nil || ctx.Err() != nil || errors.Is(err, context.Canceled)
}

// finalizer persists the transcript of one request at most once.
type finalizer struct {
	svc        *Service
	log        logging.Logger
	transcript contractchat.TranscriptV1
	once       sync.Once
}

func (f *finalizer) persist(text string, reason contractchat.FinishReasonV1) {
	f.once.Do(func() {
		if f.svc.Store == nil {
			return
		}
		t := f.transcript
		t.Response = contractchat.TranscriptResponseV1{Content: text, FinishReason: reason}
		if err := f.svc.Store.Append(ports.AppendTranscriptRequest{Transcript: t}); err != nil {
			f.log.WithError(err).Error("failed to persist chat transcript")
		}
	})
}
