package adapters

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/seproj/chatbackend/internal/domains/chat/ports"
	"github.com/seproj/chatbackend/internal/platform/clock"
)

const defaultKeepFinished = 256

// MemoryInflight is a concurrency-safe in-memory registry of engine requests.
// Terminal entries are kept (bounded by keepFinished) so late Abort/Get calls
// still see what happened. The zero value is ready to use.
type MemoryInflight struct {
	Clock clock.Clock

	mu       sync.Mutex
	items    map[string]*inflightEntry
	finished []string

	keepFinished int
}

type inflightEntry struct {
	state  ports.InflightState
	cancel func()
}

func NewMemoryInflight() *MemoryInflight {
	return &MemoryInflight{
		items:        map[string]*inflightEntry{},
		keepFinished: defaultKeepFinished,
	}
}

func (m *MemoryInflight) Register(req ports.RegisterInflightRequest) (ports.InflightState, error) {
	if m == nil {
		return ports.InflightState{}, fmt.Errorf("inflight: nil receiver")
	}
	id := strings.TrimSpace(req.RequestID)
	if id == "" {
		return ports.InflightState{}, fmt.Errorf("inflight: request id is empty")
	}

	now := clock.NowUTC(m.Clock)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.items == nil {
		m.items = map[string]*inflightEntry{}
	}
	if ent, ok := m.items[id]; ok && ent.state.Status == ports.InflightRunning {
		return ent.state, fmt.Errorf("inflight: request %s is already running", id)
	}

	st := ports.InflightState{
		RequestID: id,
		Backend:   req.Backend,
		Status:    ports.InflightRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.items[id] = &inflightEntry{state: st, cancel: req.Cancel}
	return st, nil
}

func (m *MemoryInflight) Finish(req ports.FinishInflightRequest) (ports.InflightState, bool) {
	if m == nil {
		return ports.InflightState{}, false
	}
	id := strings.TrimSpace(req.RequestID)

	m.mu.Lock()
	defer m.mu.Unlock()

	ent, ok := m.items[id]
	if !ok {
		return ports.InflightState{}, false
	}
	// Terminal states are sticky; an aborted request stays cancelled.
	if ent.state.Status != ports.InflightRunning {
		return ent.state, true
	}

	status := req.Status
	if status == "" || status == ports.InflightRunning {
		status = ports.InflightDone
	}
	ent.state.Status = status
	ent.state.Error = req.Error
	ent.state.UpdatedAt = clock.NowUTC(m.Clock)
	ent.cancel = nil
	m.retire(id)
	return ent.state, true
}

func (m *MemoryInflight) Abort(requestID string) (ports.InflightState, bool) {
	if m == nil {
		return ports.InflightState{}, false
	}
	id := strings.TrimSpace(requestID)

	m.mu.Lock()
	ent, ok := m.items[id]
	if !ok || ent.state.Status != ports.InflightRunning {
		var st ports.InflightState
		if ok {
			st = ent.state
		}
		m.mu.Unlock()
		return st, false
	}
	cancel := ent.cancel
	ent.cancel = nil
	ent.state.Status = ports.InflightCancelled
	ent.state.UpdatedAt = clock.NowUTC(m.Clock)
	st := ent.state
	m.retire(id)
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return st, true
}

func (m *MemoryInflight) Get(requestID string) (ports.InflightState, bool) {
	if m == nil {
		return ports.InflightState{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ent, ok := m.items[strings.TrimSpace(requestID)]
	if !ok {
		return ports.InflightState{}, false
	}
	return ent.state, true
}

func (m *MemoryInflight) Running() []string {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []string
	for id, ent := range m.items {
		if ent.state.Status == ports.InflightRunning {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// retire records a finished id and evicts the oldest finished entries.
// Caller holds m.mu.
func (m *MemoryInflight) retire(id string) {
	keep := m.keepFinished
	if keep <= 0 {
		keep = defaultKeepFinished
	}
	m.finished = append(m.finished, id)
	for len(m.finished) > keep {
		old := m.finished[0]
		m.finished = m.finished[1:]
		if ent, ok := m.items[old]; ok && ent.state.Status != ports.InflightRunning {
			delete(m.items, old)
		}
	}
}
