package httpserver

import (
	"net/http"

	contractorch "github.com/seproj/chatbackend/internal/contracts/v1/orchestrator"
	orchapi "github.com/seproj/chatbackend/internal/domains/orchestrator/api"
	orchapp "github.com/seproj/chatbackend/internal/domains/orchestrator/app"
	"github.com/seproj/chatbackend/internal/platform/httpjson"
)

// Server is the HTTP transport adapter for the orchestrator domain.
type Server struct {
	Orchestrator orchapi.API
}

func (s Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

// Register mounts the orchestrator routes on mux, with and without the /api prefix.
func (s Server) Register(mux *http.ServeMux) {
	for _, prefix := range []string{"", "/api"} {
		mux.HandleFunc("POST "+prefix+"/orchestrate", s.handleOrchestrate)
		mux.HandleFunc("GET "+prefix+"/orchestrator/state", s.handleState)
		mux.HandleFunc("GET "+prefix+"/orchestrator/scheduler", s.handleScheduler)
	}
}

func (s Server) handleOrchestrate(w http.ResponseWriter, r *http.Request) {
	if s.Orchestrator == nil {
		httpjson.Detail(w, http.StatusInternalServerError, "server misconfigured: Orchestrator API is nil")
		return
	}
	var body contractorch.RequestV1
	if err := httpjson.Read(r, &body); err != nil {
		httpjson.Detail(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.Orchestrator.Orchestrate(r.Context(), orchapp.OrchestrateRequest{Request: body})
	if err != nil {
		httpjson.Error(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, res.Result)
}

func (s Server) handleState(w http.ResponseWriter, r *http.Request) {
	if s.Orchestrator == nil {
		httpjson.Detail(w, http.StatusInternalServerError, "server misconfigured: Orchestrator API is nil")
		return
	}
	res, err := s.Orchestrator.State()
	if err != nil {
		httpjson.Error(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, res.Snapshot)
}

func (s Server) handleScheduler(w http.ResponseWriter, r *http.Request) {
	if s.Orchestrator == nil {
		httpjson.Detail(w, http.StatusInternalServerError, "server misconfigured: Orchestrator API is nil")
		return
	}
	httpjson.Write(w, http.StatusOK, s.Orchestrator.SchedulerStats())
}
