package app

import (
	"context"
	"fmt"
	"sync"

	contractorch "github.com/seproj/chatbackend/internal/contracts/v1/orchestrator"
	apperrors "github.com/seproj/chatbackend/internal/platform/errors"
	"github.com/seproj/chatbackend/internal/platform/logging"
)

// Spawner starts fn asynchronously. The default runs it on a new goroutine;
// tests substitute a queue they drain by hand.
type Spawner func(fn func())

func goSpawner(fn func()) { go fn() }

// Scheduler runs refreshes single-flight. A Request while a run is in
// flight marks one rerun as pending; any number of such requests coalesce
// into that single rerun, which starts as soon as the current run ends.
//
//	idle --Request--> running --Request--> running+pending
//	running --done--> idle
//	running+pending --done--> running (rerun, pending cleared)
type Scheduler struct {
	run   func(ctx context.Context) error
	spawn Spawner
	log   logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	running   bool
	pending   bool
	closed    bool
	runs      int64
	failures  int64
	coalesced int64
}

// NewScheduler returns an idle scheduler that executes run. A nil spawn
// uses goroutines.
func NewScheduler(run func(ctx context.Context) error, spawn Spawner, log logging.Logger) *Scheduler {
	if spawn == nil {
		spawn = goSpawner
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{run: run, spawn: spawn, log: log, ctx: ctx, cancel: cancel}
}

// Request asks for a refresh. It never blocks on the refresh itself.
func (s *Scheduler) Request() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.running {
		s.pending = true
		s.coalesced++
		s.mu.Unlock()
		return
	}
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	s.spawn(s.execute)
}

func (s *Scheduler) execute() {
	defer s.wg.Done()

	err := s.runOnce()

	s.mu.Lock()
	s.runs++
	if err != nil {
		s.failures++
	}
	rerun := s.pending && !s.closed
	s.pending = false
	if rerun {
		s.wg.Add(1)
	} else {
		s.running = false
	}
	s.mu.Unlock()

	if err != nil {
		s.log.WithError(err).Error("orchestrator refresh failed")
	}
	if rerun {
		s.spawn(s.execute)
	}
}

// runOnce executes one refresh; a panic is reported as an error so the
// state machine always completes.
func (s *Scheduler) runOnce() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.NewInternal(fmt.Sprintf("orchestrator refresh panicked: %v", r), nil)
		}
	}()
	return s.run(s.ctx)
}

// Wait blocks until no run is in flight or pending.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Close stops accepting requests, cancels the in-flight run, and waits for it.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.pending = false
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) Stats() contractorch.SchedulerStatsV1 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return contractorch.SchedulerStatsV1{
		Running:   s.running,
		Pending:   s.pending,
		Runs:      s.runs,
		Failures:  s.failures,
		Coalesced: s.coalesced,
	}
}
