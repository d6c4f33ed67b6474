package core

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultInterval is the pause between background sync cycles.
const DefaultInterval = 60 * time.Second

// SyncFunc runs one sync cycle.
type SyncFunc func(ctx context.Context) *Result

// Scheduler runs a sync cycle once on start and then on every tick until
// stopped. Cycles run on a single goroutine so they never overlap; a tick
// that fires during a long cycle is dropped by the ticker.
type Scheduler struct {
	run      SyncFunc
	interval time.Duration
	logger   *slog.Logger

	stopCh    chan struct{} // nil until Start
	wg        sync.WaitGroup
	mu        sync.RWMutex
	isRunning bool
	lastSync  time.Time
	lastErr   error
	cycles    int
}

// NewScheduler creates a scheduler. A non-positive interval selects
// DefaultInterval.
func NewScheduler(run SyncFunc, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		run:      run,
		interval: interval,
		logger:   logger,
	}
}

// ForSyncer schedules s.Sync with the given scope.
func ForSyncer(s *Syncer, scope Scope) SyncFunc {
	return func(ctx context.Context) *Result {
		return s.Sync(ctx, scope)
	}
}

// Start launches the loop. Calling Start on a running scheduler does nothing;
// a stopped scheduler can be started again.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.wg.Add(1)
	s.mu.Unlock()

	go s.loop(ctx, stopCh)

	s.logger.Info("background sync started", "interval", s.interval.String())
}

// Stop signals the loop and waits for an in-flight cycle to finish. It is
// safe to call after the loop already exited through ctx, and more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	stopCh := s.stopCh
	s.stopCh = nil
	s.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	s.wg.Wait()

	s.logger.Info("background sync stopped")
}

// Wait blocks until the loop exits, either through Stop or ctx.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, stopCh <-chan struct{}) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

func (s *Scheduler) cycle(ctx context.Context) {
	res := s.run(ctx)

	var err error
	if res != nil {
		err = res.Err()
	}
	if err != nil {
		s.logger.Warn("background sync failed", "error", err)
	}

	s.mu.Lock()
	s.lastSync = time.Now()
	s.lastErr = err
	s.cycles++
	s.mu.Unlock()
}

// SchedulerStatus is a snapshot of the loop state.
type SchedulerStatus struct {
	IsRunning bool
	LastSync  time.Time
	LastErr   error
	Cycles    int
}

// Status returns the current loop state.
func (s *Scheduler) Status() SchedulerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SchedulerStatus{
		IsRunning: s.isRunning,
		LastSync:  s.lastSync,
		LastErr:   s.lastErr,
		Cycles:    s.cycles,
	}
}
