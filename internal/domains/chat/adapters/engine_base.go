package adapters

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	contractchat "github.com/seproj/chatbackend/internal/contracts/v1/chat"
	"github.com/seproj/chatbackend/internal/domains/chat/ports"
	apperrors "github.com/seproj/chatbackend/internal/platform/errors"
	"github.com/seproj/chatbackend/internal/platform/logging"
)

// engineBase carries what every backend shares: identity, readiness, and
// per-request cancellation through the in-flight registry.
type engineBase struct {
	name  string
	model string

	inflight ports.InflightRegistry
	log      logging.Logger

	ready atomic.Bool
}

func (b *engineBase) init(name, model string, inflight ports.InflightRegistry, log logging.Logger) {
	if inflight == nil {
		inflight = NewMemoryInflight()
	}
	b.name = name
	b.model = model
	b.inflight = inflight
	b.log = log.WithField("backend", name)
}

func (b *engineBase) Name() string  { return b.name }
func (b *engineBase) Model() string { return b.model }
func (b *engineBase) Ready() bool   { return b.ready.Load() }

func (b *engineBase) Abort(requestID string) bool {
	_, ok := b.inflight.Abort(requestID)
	if ok {
		b.log.WithField("request_id", requestID).Info("engine request aborted")
	}
	return ok
}

// track runs fn under a cancellable context registered for requestID and
// records the terminal status.
func (b *engineBase) track(ctx context.Context, requestID string, fn func(ctx context.Context) (ports.Fragment, error)) (ports.Fragment, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if _, err := b.inflight.Register(ports.RegisterInflightRequest{
		RequestID: requestID,
		Backend:   b.name,
		Cancel:    cancel,
	}); err != nil {
		return ports.Fragment{}, apperrors.NewGenerationUnavailable("cannot register engine request", err)
	}

	frag, err := fn(ctx)

	fin := ports.FinishInflightRequest{RequestID: requestID, Status: ports.InflightDone}
	switch {
	case err != nil && ctx.Err() != nil:
		fin.Status = ports.InflightCancelled
	case err != nil:
		fin.Status = ports.InflightError
		fin.Error = err.Error()
	}
	b.inflight.Finish(fin)

	if err != nil && ctx.Err() != nil && !errors.Is(err, context.Canceled) {
		// Surface cancellation uniformly regardless of how the client library reports it.
		return frag, errors.Join(context.Canceled, err)
	}
	return frag, err
}

// accumulator turns engine deltas into cumulative fragments.
type accumulator struct {
	handler ports.FragmentHandler
	text    strings.Builder
}

func newAccumulator(h ports.FragmentHandler) *accumulator {
	if h == nil {
		h = ports.FragmentFunc(nil)
	}
	return &accumulator{handler: h}
}

func (a *accumulator) add(delta string) error {
	if delta == "" {
		return nil
	}
	a.text.WriteString(delta)
	return a.handler.OnFragment(ports.Fragment{Text: a.text.String()})
}

func (a *accumulator) final(reason string) ports.Fragment {
	return ports.Fragment{Text: a.text.String(), FinishReason: normalizeFinishReason(reason)}
}

// normalizeFinishReason maps backend-specific reasons onto the stored vocabulary.
func normalizeFinishReason(reason string) contractchat.FinishReasonV1 {
	r := strings.ToLower(strings.TrimSpace(reason))
	switch r {
	case "":
		return ""
	case "stop", "eos", "end_turn", "stop_sequence", "done":
		return contractchat.FinishStop
	case "length", "max_tokens":
		return contractchat.FinishLength
	case "abort", "cancelled", "canceled":
		return contractchat.FinishCancelled
	case "error":
		return contractchat.FinishError
	default:
		return contractchat.FinishReasonV1(r)
	}
}
