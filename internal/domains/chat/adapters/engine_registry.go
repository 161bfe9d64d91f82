package adapters

import (
	"net/http"
	"sort"
	"strings"

	"github.com/seproj/chatbackend/internal/domains/chat/ports"
	apperrors "github.com/seproj/chatbackend/internal/platform/errors"
	"github.com/seproj/chatbackend/internal/platform/logging"
	"github.com/seproj/chatbackend/internal/platform/policy"
)

// EngineOptions describe the single engine a process runs.
type EngineOptions struct {
	Backend string
	// Model is what health reports; ServeModel is what remote backends request.
	Model      string
	ServeModel string
	BaseURL    string
	APIKey     string

	Policy   policy.Policy
	Inflight ports.InflightRegistry
	Log      logging.Logger

	// HTTPClient is used by the HTTP backends when set (tests).
	HTTPClient *http.Client
}

// EngineFactory builds one backend.
type EngineFactory func(opts EngineOptions) (ports.GenerationService, error)

// EngineRegistry maps backend names to factories. The stub backend is
// always present.
type EngineRegistry struct {
	items map[string]EngineFactory
}

func NewEngineRegistry() EngineRegistry {
	return EngineRegistry{items: map[string]EngineFactory{
		"stub": func(o EngineOptions) (ports.GenerationService, error) {
			return NewStubEngine(o.Model, o.Inflight, o.Log), nil
		},
		"serve": func(o EngineOptions) (ports.GenerationService, error) {
			if err := o.Policy.RequireURLAllowed(o.BaseURL); err != nil {
				return nil, err
			}
			e := NewServeEngine(o.BaseURL, servedModel(o), o.APIKey, o.Inflight, o.Log)
			e.HTTPClient = o.HTTPClient
			return e, nil
		},
		"completions": func(o EngineOptions) (ports.GenerationService, error) {
			if err := o.Policy.RequireURLAllowed(o.BaseURL); err != nil {
				return nil, err
			}
			e := NewCompletionsEngine(o.BaseURL, servedModel(o), o.APIKey, o.Inflight, o.Log)
			e.StreamClient = o.HTTPClient
			return e, nil
		},
		"ollama": func(o EngineOptions) (ports.GenerationService, error) {
			url := o.BaseURL
			if strings.TrimSpace(url) == "" {
				url = defaultOllamaURL
			}
			if err := o.Policy.RequireURLAllowed(url); err != nil {
				return nil, err
			}
			return NewOllamaEngine(url, servedModel(o), o.Inflight, o.Log)
		},
	}}
}

// Register adds or replaces a backend factory.
func (r EngineRegistry) Register(name string, f EngineFactory) {
	r.items[normalizeBackend(name)] = f
}

func (r EngineRegistry) Names() []string {
	out := make([]string, 0, len(r.items))
	for k := range r.items {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Build constructs the engine for opts.Backend; an empty backend means stub.
func (r EngineRegistry) Build(opts EngineOptions) (ports.GenerationService, error) {
	name := normalizeBackend(opts.Backend)
	if name == "" {
		name = "stub"
	}
	f, ok := r.items[name]
	if !ok {
		return nil, apperrors.NewInvalidRequest("unknown engine backend: " + opts.Backend + " (known: " + strings.Join(r.Names(), ", ") + ")")
	}
	if opts.Inflight == nil {
		opts.Inflight = NewMemoryInflight()
	}
	return f(opts)
}

func servedModel(o EngineOptions) string {
	if m := strings.TrimSpace(o.ServeModel); m != "" {
		return m
	}
	return strings.TrimSpace(o.Model)
}

func normalizeBackend(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
