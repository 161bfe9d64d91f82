package ports

import (
	"context"

	contractchat "github.com/seproj/chatbackend/internal/contracts/v1/chat"
	"github.com/seproj/chatbackend/internal/domains/chat/domain"
)

// GenerationService is the outbound port for text generation engines
// (stub, vLLM serve, vLLM completions, ollama).
//
// Request handling must not depend on a specific backend; it talks only to
// this interface. Backends are chosen once, at wiring time.
type GenerationService interface {
	// Name is a stable backend identifier like "stub" or "serve".
	Name() string

	// Model is the model id requests are sent to (may be empty for stub).
	Model() string

	// Ready reports whether the engine has been initialised.
	Ready() bool

	// Generate runs one request to completion. The handler sees cumulative
	// text in order; returning an error from it stops generation and that
	// error is returned. The returned Fragment is the last one observed.
	// Cancelling ctx aborts the request.
	Generate(ctx context.Context, req GenerationRequest, handler FragmentHandler) (Fragment, error)

	// Abort cancels the in-flight request with the given id. It reports
	// whether such a request was running.
	Abort(requestID string) bool
}

// GenerationRequest is the engine-facing request for one completion.
type GenerationRequest struct {
	RequestID string
	Prompt    string
	Sampling  domain.Sampling

	// Persona is informational; backends may forward it as metadata.
	Persona string
}

// Fragment is the engine's view of a request's output so far.
type Fragment struct {
	// Text is cumulative: each fragment extends the previous one.
	Text string

	// FinishReason is set on the final fragment when the engine reports one.
	FinishReason contractchat.FinishReasonV1
}

// FragmentHandler receives fragments as they arrive.
// Implementations should be fast; heavy work should be done elsewhere.
type FragmentHandler interface {
	OnFragment(f Fragment) error
}

// FragmentFunc adapts a function to FragmentHandler.
type FragmentFunc func(f Fragment) error

func (fn FragmentFunc) OnFragment(f Fragment) error {
	if fn == nil {
		return nil
	}
	return fn(f)
}
