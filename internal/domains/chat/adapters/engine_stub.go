package adapters

import (
	"context"
	"strings"
	"time"

	contractchat "github.com/seproj/chatbackend/internal/contracts/v1/chat"
	"github.com/seproj/chatbackend/internal/domains/chat/ports"
	"github.com/seproj/chatbackend/internal/platform/logging"
)

// StubEngine is a local, deterministic engine used for development, tests,
// and as a safe default when no real backend is configured.
type StubEngine struct {
	engineBase

	// ChunkSize is the number of bytes added per fragment (default 24).
	ChunkSize int
	// ChunkDelay slows streaming down so cancellation can be exercised by hand.
	ChunkDelay time.Duration
	// Reply overrides the reply text derived from the prompt.
	Reply func(prompt string) string
}

func NewStubEngine(model string, inflight ports.InflightRegistry, log logging.Logger) *StubEngine {
	e := &StubEngine{ChunkSize: 24}
	e.init("stub", model, inflight, log)
	e.ready.Store(true)
	return e
}

func (e *StubEngine) Generate(ctx context.Context, req ports.GenerationRequest, handler ports.FragmentHandler) (ports.Fragment, error) {
	return e.track(ctx, req.RequestID, func(ctx context.Context) (ports.Fragment, error) {
		reply := stubReply(req.Prompt)
		if e.Reply != nil {
			reply = e.Reply(req.Prompt)
		}
		reason := contractchat.FinishStop
		// Rough token budget: four bytes per token.
		if limit := req.Sampling.MaxTokens * 4; limit > 0 && len(reply) > limit {
			reply = reply[:limit]
			reason = contractchat.FinishLength
		}

		acc := newAccumulator(handler)
		for _, c := range chunkText(reply, e.ChunkSize) {
			if err := ctx.Err(); err != nil {
				return acc.final(""), err
			}
			if e.ChunkDelay > 0 {
				select {
				case <-ctx.Done():
					return acc.final(""), ctx.Err()
				case <-time.After(e.ChunkDelay):
				}
			}
			if err := acc.add(c); err != nil {
				return acc.final(""), err
			}
		}
		frag := acc.final("")
		frag.FinishReason = reason
		return frag, nil
	})
}

// stubReply echoes the last user line of a chat prompt, or the first line of
// any other prompt.
func stubReply(prompt string) string {
	lines := strings.Split(prompt, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if rest, ok := strings.CutPrefix(lines[i], "User: "); ok && strings.TrimSpace(rest) != "" {
			return "Stub assistant reply. You said: " + strings.TrimSpace(rest)
		}
	}
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			if len(l) > 200 {
				l = l[:200]
			}
			return "- Stub summary of: " + l
		}
	}
	return "Stub assistant reply."
}

func chunkText(s string, n int) []string {
	if n <= 0 || s == "" {
		return []string{s}
	}
	var out []string
	for len(s) > 0 {
		if len(s) <= n {
			out = append(out, s)
			break
		}
		out = append(out, s[:n])
		s = s[n:]
	}
	return out
}
