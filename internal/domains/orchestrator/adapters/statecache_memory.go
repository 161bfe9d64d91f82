package adapters

import (
	"sync"

	contractorch "github.com/seproj/chatbackend/internal/contracts/v1/orchestrator"
	"github.com/seproj/chatbackend/internal/platform/clock"
)

// MemoryStateCache holds the latest orchestrator snapshot in process memory.
// The result and its timestamp are swapped together under one lock; readers
// get deep copies.
type MemoryStateCache struct {
	Clock clock.Clock

	mu   sync.RWMutex
	snap *contractorch.SnapshotV1
}

func NewMemoryStateCache() *MemoryStateCache {
	return &MemoryStateCache{}
}

func (c *MemoryStateCache) Read() (contractorch.SnapshotV1, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil {
		return contractorch.SnapshotV1{}, false
	}
	return cloneSnapshot(*c.snap), true
}

func (c *MemoryStateCache) Write(result contractorch.ResultV1) contractorch.SnapshotV1 {
	r := result.Clone()
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := contractorch.SnapshotV1{
		UpdatedAt:            clock.NowUTC(c.Clock),
		Summaries:            r.Summaries,
		RequirementsDocument: r.RequirementsDocument,
	}
	c.snap = &snap
	return cloneSnapshot(snap)
}

// restore installs a previously persisted snapshot as-is.
func (c *MemoryStateCache) restore(snap contractorch.SnapshotV1) {
	s := cloneSnapshot(snap)
	c.mu.Lock()
	c.snap = &s
	c.mu.Unlock()
}

func cloneSnapshot(s contractorch.SnapshotV1) contractorch.SnapshotV1 {
	r := s.Result()
	return contractorch.SnapshotV1{
		UpdatedAt:            s.UpdatedAt,
		Summaries:            r.Summaries,
		RequirementsDocument: r.RequirementsDocument,
	}
}
