package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SessionSweeper defines the interface for evicting abandoned page sessions
type SessionSweeper interface {
	Sweep(ctx context.Context, idle time.Duration) (int, error)
}

// Scheduler periodically evicts page sessions whose browser went away without unmounting
type Scheduler struct {
	sweeper  SessionSweeper
	interval time.Duration
	idle     time.Duration
	logger   *slog.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
	running  bool
	mu       sync.Mutex
}

// New creates a new session janitor
func New(sweeper SessionSweeper, interval, idle time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if idle <= 0 {
		idle = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		sweeper:  sweeper,
		interval: interval,
		idle:     idle,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("session janitor started", "interval", s.interval, "idle", s.idle)

	s.wg.Add(1)
	go s.run(ctx)
}

// Stop stops the scheduler and waits for the loop to exit
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("session janitor stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	n, err := s.sweeper.Sweep(ctx, s.idle)
	if err != nil {
		s.logger.Error("failed to sweep analytics sessions", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("evicted idle analytics sessions", "count", n)
	}
}
