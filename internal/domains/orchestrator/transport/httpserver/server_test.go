package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contractchat "github.com/seproj/chatbackend/internal/contracts/v1/chat"
	contractorch "github.com/seproj/chatbackend/internal/contracts/v1/orchestrator"
	chatadapters "github.com/seproj/chatbackend/internal/domains/chat/adapters"
	chatports "github.com/seproj/chatbackend/internal/domains/chat/ports"
	"github.com/seproj/chatbackend/internal/domains/orchestrator/adapters"
	orchapi "github.com/seproj/chatbackend/internal/domains/orchestrator/api"
	"github.com/seproj/chatbackend/internal/domains/orchestrator/domain"
	"github.com/seproj/chatbackend/internal/platform/logging"
)

func newHandler(t *testing.T, seed int) http.Handler {
	t.Helper()
	store := chatadapters.NewFSTranscriptStore(t.TempDir(), logging.Nop())
	for i := 1; i <= seed; i++ {
		require.NoError(t, store.Append(chatports.AppendTranscriptRequest{Transcript: contractchat.TranscriptV1{
			RequestID: fmt.Sprintf("%032x", i),
			CreatedAt: time.Date(2024, 5, 1, 9, i, 0, 0, time.UTC),
			Persona:   "pm",
			Messages:  []contractchat.MessageV1{{Role: contractchat.RoleUser, Content: "need reports"}},
		}}))
	}
	engine := chatadapters.NewStubEngine("m", nil, logging.Nop())
	engine.Reply = func(string) string { return "- wants reports" }

	orch := orchapi.New(orchapi.Dependencies{
		Source:    adapters.ChatTranscripts{Store: store},
		Generator: adapters.EngineGenerator{Engine: engine},
		Cache:     adapters.NewMemoryStateCache(),
		Defaults:  domain.Defaults{MaxTranscriptsPerPersona: 5, SummaryMaxTokens: 512, RequirementsMaxTokens: 1024},
		Log:       logging.Nop(),
	})
	t.Cleanup(orch.Close)
	return Server{Orchestrator: orch}.Handler()
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestOrchestrateAndState(t *testing.T) {
	h := newHandler(t, 2)

	rec := do(h, http.MethodGet, "/orchestrator/state", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"Orchestrator state not yet available."}`, rec.Body.String())

	rec = do(h, http.MethodPost, "/api/orchestrate", `{"include_requirements":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var res contractorch.ResultV1
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "- wants reports", res.Summaries["pm"])
	assert.Equal(t, "- wants reports", res.RequirementsDocument)

	rec = do(h, http.MethodGet, "/api/orchestrator/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap contractorch.SnapshotV1
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, res.Summaries, snap.Summaries)
	assert.False(t, snap.UpdatedAt.IsZero())
}

func TestOrchestrateErrors(t *testing.T) {
	h := newHandler(t, 0)

	rec := do(h, http.MethodPost, "/orchestrate", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"No transcripts available for the requested personas."}`, rec.Body.String())

	rec = do(h, http.MethodPost, "/orchestrate", `{"summary_max_tokens":5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodGet, "/orchestrator/scheduler", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"running":false,"pending":false,"runs":0,"failures":0,"coalesced":0}`, rec.Body.String())
}
