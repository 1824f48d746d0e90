// Package scheduler runs named periodic tasks on independent cadences inside
// one process. Each task fires once shortly after startup (after a short
// stagger so startup work does not thunder in together) and then on its fixed
// interval.
//
// Tasks are isolated from each other: one task's slow or failing tick never
// blocks another task's cadence. Within a single task, a tick always runs to
// completion (success, error, or recovered panic) before that task's next
// tick is considered. Errors and panics are caught and logged; the next tick
// proceeds normally.
//
// The scheduler is constructed once at startup and torn down explicitly:
// Stop cancels the shared context and waits for in-flight ticks to drain.
package scheduler

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Task is one named periodic pass.
type Task struct {
	Name     string
	Interval time.Duration
	// Stagger delays the first run after Start. Zero uses the scheduler
	// default.
	Stagger time.Duration
	Run     func(ctx context.Context) error
}

// Scheduler owns a collection of tasks and their goroutines.
type Scheduler struct {
	// DefaultStagger is applied to tasks that do not set their own.
	DefaultStagger time.Duration

	mu      sync.Mutex
	tasks   []Task
	started bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns an empty scheduler with a small default startup stagger.
func New() *Scheduler {
	return &Scheduler{DefaultStagger: 5 * time.Second}
}

// Add registers a task. Tasks with a non-positive interval are rejected by
// Start; registering after Start panics, as task wiring is a startup concern.
func (s *Scheduler) Add(t Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		panic("scheduler: Add after Start")
	}
	s.tasks = append(s.tasks, t)
}

// Start launches one goroutine per task. The provided context is the parent
// for every tick; cancelling it (or calling Stop) ends all tasks.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	for _, t := range s.tasks {
		if t.Interval <= 0 {
			log.Error().Str("task", t.Name).Msg("scheduler task has no interval; not started")
			continue
		}
		stagger := t.Stagger
		if stagger <= 0 {
			stagger = s.DefaultStagger
		}
		s.wg.Add(1)
		go s.loop(ctx, t, stagger)
	}
}

// Stop cancels all tasks and waits for in-flight ticks to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// loop drives one task: stagger, first tick, then the fixed interval.
func (s *Scheduler) loop(ctx context.Context, t Task, stagger time.Duration) {
	defer s.wg.Done()

	lg := log.With().Str("task", t.Name).Logger()

	select {
	case <-ctx.Done():
		return
	case <-time.After(stagger):
	}
	s.tick(ctx, t, lg)

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, t, lg)
		}
	}
}

// tick runs one pass, containing errors and panics so the cadence survives.
func (s *Scheduler) tick(ctx context.Context, t Task, lg zerolog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			lg.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("scheduler task panicked")
		}
	}()

	start := time.Now()
	if err := t.Run(ctx); err != nil {
		lg.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("scheduler task failed")
		return
	}
	lg.Debug().Dur("elapsed", time.Since(start)).Msg("scheduler task completed")
}
