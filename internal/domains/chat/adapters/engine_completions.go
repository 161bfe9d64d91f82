package adapters

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/seproj/chatbackend/internal/domains/chat/ports"
	apperrors "github.com/seproj/chatbackend/internal/platform/errors"
	"github.com/seproj/chatbackend/internal/platform/logging"
)

// CompletionsEngine streams from a vLLM server's raw-prompt
// /v1/completions endpoint, so the prompt reaches the model byte for byte.
type CompletionsEngine struct {
	engineBase

	BaseURL string
	APIKey  string

	// StreamClient is used for streaming calls. If nil, a client without a
	// hard timeout is used; cancellation comes from the request context.
	StreamClient *http.Client
}

func NewCompletionsEngine(baseURL, model, apiKey string, inflight ports.InflightRegistry, log logging.Logger) *CompletionsEngine {
	e := &CompletionsEngine{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		APIKey:  strings.TrimSpace(apiKey),
	}
	e.init("completions", model, inflight, log)
	return e
}

func (e *CompletionsEngine) Generate(ctx context.Context, req ports.GenerationRequest, handler ports.FragmentHandler) (ports.Fragment, error) {
	return e.track(ctx, req.RequestID, func(ctx context.Context) (ports.Fragment, error) {
		return e.stream(ctx, req, handler)
	})
}

type completionsChunk struct {
	Choices []struct {
		Text         string  `json:"text"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (e *CompletionsEngine) stream(ctx context.Context, req ports.GenerationRequest, handler ports.FragmentHandler) (ports.Fragment, error) {
	payload := map[string]any{
		"model":             e.model,
		"prompt":            req.Prompt,
		"stream":            true,
		"max_tokens":        req.Sampling.MaxTokens,
		"temperature":       req.Sampling.Temperature,
		"top_p":             req.Sampling.TopP,
		"presence_penalty":  req.Sampling.PresencePenalty,
		"frequency_penalty": req.Sampling.FrequencyPenalty,
		"n":                 1,
	}
	if len(req.Sampling.Stop) > 0 {
		payload["stop"] = req.Sampling.Stop
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return ports.Fragment{}, apperrors.NewGenerationUnavailable("completions: marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+"/v1/completions", bytes.NewReader(b))
	if err != nil {
		return ports.Fragment{}, apperrors.NewGenerationUnavailable("completions: build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if e.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.APIKey)
	}

	resp, err := e.streamClient().Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ports.Fragment{}, ctx.Err()
		}
		return ports.Fragment{}, apperrors.NewGenerationUnavailable("completions: stream request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := readAllLimit(resp.Body, 2_000_000)
		e.log.WithField("status", resp.StatusCode).Error("vLLM serve returned error: " + strings.TrimSpace(string(body)))
		return ports.Fragment{}, apperrors.NewGenerationUnavailable(
			fmt.Sprintf("completions: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}
	e.ready.Store(true)

	acc := newAccumulator(handler)
	reason := ""

	// SSE parsing: read lines, collect "data:" blocks until blank line.
	br := bufio.NewReader(resp.Body)
	var dataBuf strings.Builder

	flush := func() error {
		raw := strings.TrimSpace(dataBuf.String())
		dataBuf.Reset()
		if raw == "" {
			return nil
		}
		if raw == "[DONE]" {
			return doneErr{}
		}
		var chunk completionsChunk
		if err := json.Unmarshal([]byte(raw), &chunk); err != nil {
			e.log.Warn("completions: failed to decode streaming payload: " + raw)
			return nil
		}
		if chunk.Error != nil {
			return apperrors.NewGeneration("completions: "+chunk.Error.Message, nil)
		}
		if len(chunk.Choices) == 0 {
			return nil
		}
		c := chunk.Choices[0]
		if c.FinishReason != nil && *c.FinishReason != "" {
			reason = *c.FinishReason
		}
		return acc.add(c.Text)
	}

	for {
		line, err := br.ReadString('\n')
		if line != "" {
			trim := strings.TrimRight(line, "\r\n")
			if trim == "" {
				if ferr := flush(); ferr != nil {
					if _, ok := ferr.(doneErr); ok {
						break
					}
					return acc.final(""), ferr
				}
			} else if strings.HasPrefix(trim, "data:") {
				data := strings.TrimSpace(strings.TrimPrefix(trim, "data:"))
				if dataBuf.Len() > 0 {
					dataBuf.WriteString("\n")
				}
				dataBuf.WriteString(data)
			}
		}

		if err != nil {
			if ctx.Err() != nil {
				return acc.final(""), ctx.Err()
			}
			if err != io.EOF {
				return acc.final(""), apperrors.NewGeneration("completions: stream read failed", err)
			}
			// EOF: flush remaining buffered event.
			if ferr := flush(); ferr != nil {
				if _, ok := ferr.(doneErr); !ok {
					return acc.final(""), ferr
				}
			}
			break
		}
	}

	return acc.final(reason), nil
}

func (e *CompletionsEngine) streamClient() *http.Client {
	if e.StreamClient != nil {
		return e.StreamClient
	}
	return &http.Client{}
}

func readAllLimit(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		max = 1_000_000
	}
	return io.ReadAll(io.LimitReader(r, max))
}

type doneErr struct{}

func (doneErr) Error() string { return "done" }
