// Package schedule runs the detection pipeline on a fixed interval.
package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/pipeline"
)

// Scheduler triggers pipeline runs on a fixed interval. A run failure
// is logged and the schedule continues; only Stop or context
// cancellation ends the loop.
type Scheduler struct {
	pipe     *pipeline.Pipeline
	interval time.Duration
	runFirst bool

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// New creates a scheduler from configuration.
func New(cfg domain.SchedulerConfig, pipe *pipeline.Pipeline) *Scheduler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Scheduler{
		pipe:     pipe,
		interval: interval,
		runFirst: cfg.RunOnStart,
	}
}

// Start launches the scheduling loop in a background goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(loopCtx)

	slog.Info("scheduler started",
		"interval", s.interval.String(),
		"run_on_start", s.runFirst,
	)
}

// Stop ends the scheduling loop and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	done := s.done
	s.started = false
	s.mu.Unlock()

	cancel()
	<-done
	slog.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	if s.runFirst {
		s.execute(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.execute(ctx)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context) {
	run, _, err := s.pipe.ExecuteFromRepository(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("scheduled run failed", "error", err)
		return
	}

	slog.Info("scheduled run completed",
		"run_id", run.ID,
		"findings", run.FindingCount,
		"total_leakage_gbp", run.TotalLeakageGBP,
	)
}
