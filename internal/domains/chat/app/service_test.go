package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contractchat "github.com/seproj/chatbackend/internal/contracts/v1/chat"
	"github.com/seproj/chatbackend/internal/domains/chat/domain"
	"github.com/seproj/chatbackend/internal/domains/chat/ports"
	apperrors "github.com/seproj/chatbackend/internal/platform/errors"
	"github.com/seproj/chatbackend/internal/platform/logging"
)

// fakeEngine replays scripted cumulative fragments.
type fakeEngine struct {
	fragments []string
	reason    contractchat.FinishReasonV1
	err       error

	// blockAfter makes Generate wait for Abort after that many fragments.
	blockAfter int
	aborted    chan string

	mu      sync.Mutex
	calls   []ports.GenerationRequest
	aborts  []string
	onEvent func(i int)
}

func newFakeEngine(fragments ...string) *fakeEngine {
	return &fakeEngine{fragments: fragments, reason: contractchat.FinishStop, aborted: make(chan string, 4)}
}

func (f *fakeEngine) Name() string  { return "fake" }
func (f *fakeEngine) Model() string { return "fake-model" }
func (f *fakeEngine) Ready() bool   { return true }

func (f *fakeEngine) Abort(id string) bool {
	f.mu.Lock()
	f.aborts = append(f.aborts, id)
	f.mu.Unlock()
	select {
	case f.aborted <- id:
	default:
	}
	return true
}

func (f *fakeEngine) Generate(ctx context.Context, req ports.GenerationRequest, h ports.FragmentHandler) (ports.Fragment, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	last := ""
	for i, text := range f.fragments {
		if f.blockAfter > 0 && i == f.blockAfter {
			<-f.aborted
			return ports.Fragment{Text: last}, context.Canceled
		}
		if err := h.OnFragment(ports.Fragment{Text: text}); err != nil {
			return ports.Fragment{Text: last}, err
		}
		last = text
		if f.onEvent != nil {
			f.onEvent(i)
		}
	}
	if f.err != nil {
		return ports.Fragment{Text: last}, f.err
	}
	return ports.Fragment{Text: last, FinishReason: f.reason}, nil
}

func (f *fakeEngine) abortIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.aborts...)
}

type memStore struct {
	mu    sync.Mutex
	items []contractchat.TranscriptV1
	err   error
}

func (m *memStore) Append(req ports.AppendTranscriptRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.items = append(m.items, req.Transcript)
	return nil
}

func (m *memStore) ListByPersona(ports.ListTranscriptsRequest) (ports.ListTranscriptsResult, error) {
	return ports.ListTranscriptsResult{}, nil
}

func (m *memStore) all() []contractchat.TranscriptV1 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]contractchat.TranscriptV1(nil), m.items...)
}

type countingTrigger struct {
	mu sync.Mutex
	n  int
}

func (c *countingTrigger) Request() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *countingTrigger) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

type recordingSink struct {
	requestID string
	events    []contractchat.StreamEventV1
	failAt    int
}

func (r *recordingSink) Begin(id string) error {
	r.requestID = id
	return nil
}

func (r *recordingSink) Event(ev contractchat.StreamEventV1) error {
	r.events = append(r.events, ev)
	if r.failAt > 0 && len(r.events) >= r.failAt {
		return errors.New("broken pipe")
	}
	return nil
}

func newService(engine ports.GenerationService) (*Service, *memStore, *countingTrigger) {
	store := &memStore{}
	trig := &countingTrigger{}
	return &Service{
		Engine:  engine,
		Store:   store,
		Refresh: trig,
		Log:     logging.Nop(),
		Defaults: domain.SamplingDefaults{
			MaxTokens:        1024,
			Temperature:      0.7,
			TopP:             0.95,
			FrequencyPenalty: 0.8,
			Stop:             []string{"\nSystem:", "\nUser:"},
		},
	}, store, trig
}

func userHello() []contractchat.MessageV1 {
	return []contractchat.MessageV1{{Role: contractchat.RoleUser, Content: "Hello"}}
}

func TestGenerateBufferedPersistsGeneralPersona(t *testing.T) {
	engine := newFakeEngine("Hi", "Hi there", "Hi there!  ")
	svc, store, trig := newService(engine)

	res, err := svc.Generate(context.Background(), GenerateRequest{Messages: userHello()}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", res.Output)
	assert.Equal(t, contractchat.FinishStop, res.FinishReason)
	assert.True(t, domain.IsValidRequestID(res.RequestID))

	items := store.all()
	require.Len(t, items, 1)
	tr := items[0]
	assert.Equal(t, res.RequestID, tr.RequestID)
	assert.Equal(t, contractchat.DefaultPersona, tr.Persona)
	assert.Equal(t, "Hi there!", tr.Response.Content)
	assert.Equal(t, contractchat.FinishStop, tr.Response.FinishReason)
	assert.Equal(t, 1024, tr.Parameters.MaxTokens)
	assert.False(t, tr.Parameters.Stream)
	assert.Equal(t, 1, trig.count())

	require.Len(t, engine.calls, 1)
	call := engine.calls[0]
	assert.Equal(t, res.RequestID, call.RequestID)
	assert.Equal(t, []string{"\nSystem:", "\nUser:"}, call.Sampling.Stop)
	prompt, _ := domain.BuildPrompt(userHello())
	assert.Equal(t, prompt, call.Prompt)
}

func TestGenerateRejectsEmptyConversation(t *testing.T) {
	engine := newFakeEngine("x")
	svc, store, trig := newService(engine)
	sink := &recordingSink{}

	_, err := svc.Generate(context.Background(), GenerateRequest{}, sink)
	assert.True(t, apperrors.IsInvalidRequest(err))
	assert.Empty(t, engine.calls)
	assert.Empty(t, store.all())
	assert.Empty(t, sink.requestID, "no request id before validation passes")
	assert.Zero(t, trig.count())
}

func TestGenerateRejectsBadSampling(t *testing.T) {
	engine := newFakeEngine("x")
	svc, _, _ := newService(engine)
	bad := 3.0
	_, err := svc.Generate(context.Background(), GenerateRequest{
		Messages: userHello(),
		Sampling: domain.SamplingOverrides{Temperature: &bad},
	}, nil)
	assert.True(t, apperrors.IsInvalidRequest(err))
	assert.Empty(t, engine.calls)
}

func TestGenerateStreamsDeltas(t *testing.T) {
	engine := newFakeEngine("Hel", "Hello")
	svc, store, trig := newService(engine)
	sink := &recordingSink{}

	res, err := svc.Generate(context.Background(), GenerateRequest{Messages: userHello(), Persona: "pm", Stream: true}, sink)
	require.NoError(t, err)

	require.Len(t, sink.events, 3)
	assert.Equal(t, contractchat.EventToken, sink.events[0].Type)
	assert.Equal(t, "Hel", sink.events[0].Delta)
	assert.Equal(t, "lo", sink.events[1].Delta)
	assert.Equal(t, "Hello", sink.events[1].Content)
	done := sink.events[2]
	assert.Equal(t, contractchat.EventDone, done.Type)
	assert.Equal(t, "Hello", done.Content)
	assert.Equal(t, contractchat.FinishStop, done.FinishReason)
	for _, ev := range sink.events {
		assert.Equal(t, res.RequestID, ev.RequestID)
	}
	assert.Equal(t, res.RequestID, sink.requestID)

	items := store.all()
	require.Len(t, items, 1)
	assert.Equal(t, "pm", items[0].Persona)
	assert.Equal(t, "Hello", items[0].Response.Content)
	assert.True(t, items[0].Parameters.Stream)
	assert.Equal(t, 1, trig.count())
}

func TestGenerateDefaultsMissingFinishReason(t *testing.T) {
	engine := newFakeEngine("ok")
	engine.reason = ""
	svc, _, _ := newService(engine)
	res, err := svc.Generate(context.Background(), GenerateRequest{Messages: userHello()}, nil)
	require.NoError(t, err)
	assert.Equal(t, contractchat.FinishStop, res.FinishReason)
}

func TestGenerateClientDisconnectPersistsCancelled(t *testing.T) {
	engine := newFakeEngine("Chunk 1", "Chunk 1Chunk 2", "Chunk 1Chunk 2Chunk 3")
	engine.blockAfter = 2
	svc, store, trig := newService(engine)
	sink := &recordingSink{}

	ctx, cancel := context.WithCancel(context.Background())
	engine.onEvent = func(i int) {
		if i == 1 {
			cancel()
		}
	}

	res, err := svc.Generate(ctx, GenerateRequest{Messages: userHello(), Stream: true}, sink)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, engine.abortIDs(), res.RequestID)

	items := store.all()
	require.Len(t, items, 1)
	assert.Equal(t, contractchat.FinishCancelled, items[0].Response.FinishReason)
	assert.Equal(t, "Chunk 1Chunk 2", items[0].Response.Content)
	assert.Zero(t, trig.count())
	for _, ev := range sink.events {
		assert.Equal(t, contractchat.EventToken, ev.Type)
	}
}

func TestGenerateSinkFailureAbortsEngine(t *testing.T) {
	engine := newFakeEngine("a", "ab", "abc")
	engine.blockAfter = 2
	svc, store, _ := newService(engine)
	sink := &recordingSink{failAt: 1}

	_, err := svc.Generate(context.Background(), GenerateRequest{Messages: userHello(), Stream: true}, sink)
	assert.ErrorIs(t, err, context.Canceled)

	items := store.all()
	require.Len(t, items, 1)
	assert.Equal(t, contractchat.FinishCancelled, items[0].Response.FinishReason)
	assert.Equal(t, "a", items[0].Response.Content)
}

func TestGenerateMidStreamFailurePersistsPartial(t *testing.T) {
	engine := newFakeEngine("Hel")
	engine.err = apperrors.NewGeneration("engine crashed", nil)
	svc, store, trig := newService(engine)
	sink := &recordingSink{}

	_, err := svc.Generate(context.Background(), GenerateRequest{Messages: userHello(), Stream: true}, sink)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindGeneration, apperrors.KindOf(err))

	items := store.all()
	require.Len(t, items, 1)
	assert.Equal(t, contractchat.FinishError, items[0].Response.FinishReason)
	assert.Equal(t, "Hel", items[0].Response.Content)
	assert.Zero(t, trig.count())

	last := sink.events[len(sink.events)-1]
	assert.Equal(t, contractchat.EventError, last.Type)
	assert.Equal(t, "engine crashed", last.Message)
	assert.Equal(t, "Hel", last.Content)
}

func TestGenerateUnavailableWritesNothing(t *testing.T) {
	engine := newFakeEngine()
	engine.err = apperrors.NewGenerationUnavailable("connection refused", nil)
	svc, store, _ := newService(engine)

	_, err := svc.Generate(context.Background(), GenerateRequest{Messages: userHello()}, nil)
	assert.True(t, apperrors.IsGenerationUnavailable(err))
	assert.Empty(t, store.all())
}

func TestGenerateProtocolViolation(t *testing.T) {
	engine := newFakeEngine("Hello", "Help")
	svc, store, _ := newService(engine)

	_, err := svc.Generate(context.Background(), GenerateRequest{Messages: userHello()}, nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindGeneration, apperrors.KindOf(err))

	items := store.all()
	require.Len(t, items, 1)
	assert.Equal(t, contractchat.FinishError, items[0].Response.FinishReason)
	assert.Equal(t, "Hello", items[0].Response.Content)
}

func TestGeneratePersistenceFailureIsNotAnError(t *testing.T) {
	engine := newFakeEngine("Hello")
	svc, store, trig := newService(engine)
	store.err = errors.New("disk full")

	res, err := svc.Generate(context.Background(), GenerateRequest{Messages: userHello()}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello", res.Output)
	assert.Equal(t, 1, trig.count())
}

func TestGenerateBlankOutputSkipsRefresh(t *testing.T) {
	engine := newFakeEngine("   ")
	svc, store, trig := newService(engine)

	res, err := svc.Generate(context.Background(), GenerateRequest{Messages: userHello()}, nil)
	require.NoError(t, err)
	assert.Equal(t, "", res.Output)
	assert.Len(t, store.all(), 1)
	assert.Zero(t, trig.count())
}

func TestGenerateRequestIDsAreUnique(t *testing.T) {
	svc, _, _ := newService(newFakeEngine("x"))
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		res, err := svc.Generate(context.Background(), GenerateRequest{Messages: userHello()}, nil)
		require.NoError(t, err)
		assert.False(t, seen[res.RequestID])
		seen[res.RequestID] = true
	}
}

func TestHealth(t *testing.T) {
	svc, _, _ := newService(newFakeEngine())
	h := svc.Health(HealthRequest{Model: "m"})
	assert.True(t, h.OK)
	assert.Equal(t, "ok", h.Health.Status)
	assert.True(t, h.Health.EngineReady)

	h = svc.Health(HealthRequest{})
	assert.False(t, h.OK)
}
