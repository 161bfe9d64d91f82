package httpserver

import (
	"context"
	"errors"
	"net/http"

	contractchat "github.com/seproj/chatbackend/internal/contracts/v1/chat"
	chatapi "github.com/seproj/chatbackend/internal/domains/chat/api"
	chatapp "github.com/seproj/chatbackend/internal/domains/chat/app"
	"github.com/seproj/chatbackend/internal/domains/chat/domain"
	"github.com/seproj/chatbackend/internal/platform/httpjson"
)

// Server is the HTTP transport adapter for the chat domain.
type Server struct {
	Chat chatapi.API

	// Model is reported by /health; empty means unhealthy.
	Model string
}

func (s Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

// Register mounts the chat routes on mux.
func (s Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /generate", s.handleGenerate)
	mux.HandleFunc("POST /api/generate", s.handleGenerate)
}

func (s Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.Chat == nil {
		httpjson.Detail(w, http.StatusInternalServerError, "server misconfigured: Chat API is nil")
		return
	}
	res := s.Chat.Health(chatapp.HealthRequest{Model: s.Model})
	status := http.StatusOK
	if !res.OK {
		status = http.StatusServiceUnavailable
	}
	httpjson.Write(w, status, res.Health)
}

type generateBody struct {
	Messages         []contractchat.MessageV1 `json:"messages"`
	Stream           *bool                    `json:"stream"`
	MaxTokens        *int                     `json:"max_tokens"`
	Temperature      *float64                 `json:"temperature"`
	TopP             *float64                 `json:"top_p"`
	PresencePenalty  *float64                 `json:"presence_penalty"`
	FrequencyPenalty *float64                 `json:"frequency_penalty"`
	Stop             []string                 `json:"stop"`
	Persona          string                   `json:"persona"`
}

func (s Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if s.Chat == nil {
		httpjson.Detail(w, http.StatusInternalServerError, "server misconfigured: Chat API is nil")
		return
	}
	var body generateBody
	if err := httpjson.Read(r, &body); err != nil {
		httpjson.Detail(w, http.StatusBadRequest, err.Error())
		return
	}
	stream := true
	if body.Stream != nil {
		stream = *body.Stream
	}

	req := chatapp.GenerateRequest{
		Messages: body.Messages,
		Persona:  body.Persona,
		Stream:   stream,
		Sampling: domain.SamplingOverrides{
			MaxTokens:        body.MaxTokens,
			Temperature:      body.Temperature,
			TopP:             body.TopP,
			PresencePenalty:  body.PresencePenalty,
			FrequencyPenalty: body.FrequencyPenalty,
			Stop:             body.Stop,
		},
	}

	if !stream {
		res, err := s.Chat.Generate(r.Context(), req, nil)
		if res.RequestID != "" {
			w.Header().Set("X-Request-ID", res.RequestID)
		}
		w.Header().Set("Cache-Control", "no-cache")
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			httpjson.Error(w, err)
			return
		}
		httpjson.Write(w, http.StatusOK, contractchat.GenerateResponseV1{
			Output:       res.Output,
			FinishReason: res.FinishReason,
			RequestID:    res.RequestID,
		})
		return
	}

	sink := &ndjsonSink{w: w}
	_, err := s.Chat.Generate(r.Context(), req, sink)
	if err == nil {
		return
	}
	// Once the stream has begun, failures were reported as an error event.
	if !sink.begun {
		httpjson.Error(w, err)
	}
}

// ndjsonSink writes stream events as newline-delimited JSON, committing the
// response headers on Begin.
type ndjsonSink struct {
	w     http.ResponseWriter
	lw    *httpjson.LineWriter
	begun bool
}

func (n *ndjsonSink) Begin(requestID string) error {
	h := n.w.Header()
	h.Set("Content-Type", "application/x-ndjson")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Request-ID", requestID)
	h.Set("X-Accel-Buffering", "no")
	n.w.WriteHeader(http.StatusOK)
	n.lw = httpjson.NewLineWriter(n.w)
	n.begun = true
	if f, ok := n.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

func (n *ndjsonSink) Event(ev contractchat.StreamEventV1) error {
	return n.lw.WriteLine(ev)
}
