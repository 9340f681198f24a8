package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prosearch/prosearch/internal/engine"
	"github.com/prosearch/prosearch/internal/streaming"
)

// historyGrace is how long a finished run's event backlog stays available
// for late SSE reconnects before it is dropped.
const historyGrace = 10 * time.Minute

// Service owns the live research runs: it assigns run IDs, executes the
// workflow engine in the background and exposes cancellation. Workflow
// state exists only inside the engine call; once a run ends, only its
// event backlog remains, and only for a grace period.
type Service struct {
	engine  *engine.Engine
	streams *streaming.Manager
	logger  *zap.Logger

	mu   sync.Mutex
	runs map[string]*runHandle
	wg   sync.WaitGroup
}

type runHandle struct {
	cancel context.CancelFunc
}

// NewService creates the run registry.
func NewService(eng *engine.Engine, streams *streaming.Manager, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		engine:  eng,
		streams: streams,
		logger:  logger,
		runs:    make(map[string]*runHandle),
	}
}

// StartRun launches a research run and returns its ID immediately; progress
// is delivered through the streaming manager.
func (s *Service) StartRun(in engine.RunInput) string {
	runID := uuid.NewString()
	in.RunID = runID

	ctx, cancel := context.WithCancel(context.Background())
	h := &runHandle{cancel: cancel}

	s.mu.Lock()
	s.runs[runID] = h
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		if _, err := s.engine.Run(ctx, in); err != nil {
			s.logger.Warn("run ended with error", zap.String("run_id", runID), zap.Error(err))
		}

		s.mu.Lock()
		delete(s.runs, runID)
		s.mu.Unlock()

		time.AfterFunc(historyGrace, func() { s.streams.Drop(runID) })
	}()

	return runID
}

// Cancel aborts a live run. Returns false when the run is unknown or
// already finished.
func (s *Service) Cancel(runID string) bool {
	s.mu.Lock()
	h, ok := s.runs[runID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	h.cancel()
	return true
}

// Active returns the number of live runs.
func (s *Service) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}

// Shutdown cancels all live runs and waits for them to unwind, bounded
// by ctx.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, h := range s.runs {
		h.cancel()
	}
	s.mu.Unlock()

	doneCh := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(doneCh)
	}()
	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
