// Package scheduler executes commands on fixed intervals and prunes
// execution history.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/mattjoyce/relaycmd/internal/config"
	"github.com/mattjoyce/relaycmd/internal/events"
	"github.com/mattjoyce/relaycmd/internal/registry"
)

// pruneInterval is how often history retention is enforced.
const pruneInterval = time.Hour

type entry struct {
	command string
	every   time.Duration
	jitter  time.Duration
}

// Scheduler fires configured commands. A firing that finds its command
// unable to execute is skipped, not queued.
type Scheduler struct {
	entries   []entry
	exec      Executor
	events    *events.Hub
	logger    *slog.Logger
	pruner    Pruner
	retention time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithPruner deletes history older than retention on start and hourly after.
func WithPruner(p Pruner, retention time.Duration) Option {
	return func(s *Scheduler) {
		s.pruner = p
		s.retention = retention
	}
}

// New creates a scheduler for the given schedules. hub may be nil.
func New(schedules []config.ScheduleConfig, exec Executor, hub *events.Hub, logger *slog.Logger, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		exec:   exec,
		events: hub,
		logger: logger.With("component", "scheduler"),
		stopCh: make(chan struct{}),
	}
	for _, sc := range schedules {
		every, err := parseScheduleEvery(sc.Every)
		if err != nil {
			return nil, fmt.Errorf("schedule for %q: %w", sc.Command, err)
		}
		s.entries = append(s.entries, entry{command: sc.Command, every: every, jitter: sc.Jitter})
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start launches one loop per schedule plus the pruning loop. It returns
// immediately; Stop or cancelling ctx ends the loops.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting scheduler", "schedules", len(s.entries))

	for _, e := range s.entries {
		s.wg.Add(1)
		go s.run(ctx, e)
	}
	if s.pruner != nil && s.retention > 0 {
		s.wg.Add(1)
		go s.pruneLoop(ctx)
	}
}

// Stop ends every loop and waits for them to return. It is safe to call
// more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping scheduler")
		close(s.stopCh)
	})
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context, e entry) {
	defer s.wg.Done()

	timer := time.NewTimer(calculateJitteredInterval(e.every, e.jitter))
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			s.fire(e)
			timer.Reset(calculateJitteredInterval(e.every, e.jitter))
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// fire executes one scheduled run.
func (s *Scheduler) fire(e entry) {
	exec, err := s.exec.Execute(e.command)
	switch {
	case errors.Is(err, registry.ErrNotExecutable):
		s.events.Publish(events.SchedulerSkipped, e.command, map[string]any{
			"reason": "not_executable",
		})
		s.logger.Info("Skipped scheduled execution", "command", e.command, "reason", "not_executable")
	case err != nil:
		s.logger.Error("Scheduled execution failed to dispatch", "command", e.command, "error", err)
	default:
		s.events.Publish(events.SchedulerScheduled, e.command, map[string]any{
			"execution_id": exec.ID,
		})
		s.logger.Info("Scheduled execution dispatched", "command", e.command, "execution_id", exec.ID)
	}
}

func (s *Scheduler) pruneLoop(ctx context.Context) {
	defer s.wg.Done()

	s.prune(ctx)
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.prune(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) prune(ctx context.Context) {
	n, err := s.pruner.Prune(ctx, s.retention, time.Now())
	if err != nil {
		s.logger.Error("Failed to prune execution history", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("Pruned execution history", "rows", n, "retention", s.retention)
	}
}

// calculateJitteredInterval adds a random jitter in [0, jitter) to the base
// interval.
func calculateJitteredInterval(baseInterval time.Duration, jitter time.Duration) time.Duration {
	if jitter <= 0 {
		return baseInterval
	}
	return baseInterval + time.Duration(rand.Int63n(jitter.Nanoseconds()))
}

func parseScheduleEvery(every string) (time.Duration, error) {
	return config.ParseInterval(every)
}
