// Package scheduler drives periodic actor ticks. Every task runs in its own
// loop, so a tick never overlaps the previous tick of the same task while
// different tasks proceed independently.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrDone is returned by a task that has finished and should leave the
// schedule.
var ErrDone = errors.New("task done")

// Task is a unit of periodic work.
type Task interface {
	Name() string
	Interval() time.Duration
	Tick(ctx context.Context) error
}

// Observer receives tick outcomes for metrics.
type Observer interface {
	TickFinished(task string, took time.Duration, err error)
	TickPanicked(task string)
}

type nopObserver struct{}

func (nopObserver) TickFinished(string, time.Duration, error) {}
func (nopObserver) TickPanicked(string)                       {}

// Config controls failure backoff.
type Config struct {
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// Scheduler runs a set of tasks until its context is cancelled.
type Scheduler struct {
	cfg      Config
	observer Observer
	logger   *slog.Logger

	mu      sync.Mutex
	tasks   []Task
	running bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithObserver reports tick outcomes.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a scheduler. Zero backoff values default to 1s and 1m.
func New(cfg Config, opts ...Option) *Scheduler {
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffMax < cfg.BackoffBase {
		cfg.BackoffMax = max(time.Minute, cfg.BackoffBase)
	}
	s := &Scheduler{
		cfg:      cfg,
		observer: nopObserver{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "scheduler")
	return s
}

// Add registers a task. Tasks must be added before Run.
func (s *Scheduler) Add(tasks ...Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scheduler already running")
	}
	for _, t := range tasks {
		if t.Interval() <= 0 {
			return fmt.Errorf("task %s: interval must be positive", t.Name())
		}
		s.tasks = append(s.tasks, t)
	}
	return nil
}

// Run starts every task and blocks until ctx is cancelled or every task has
// returned ErrDone. In-flight ticks finish before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}
	s.running = true
	tasks := append([]Task(nil), s.tasks...)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.logger.Info("scheduler starting", "tasks", len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range tasks {
		g.Go(func() error {
			s.loop(gctx, t)
			return nil
		})
	}
	err := g.Wait()

	s.logger.Info("scheduler stopped")
	return err
}

func (s *Scheduler) loop(ctx context.Context, t Task) {
	logger := s.logger.With("task", t.Name())
	failures := 0

	timer := time.NewTimer(t.Interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		err := s.runTick(ctx, t)
		switch {
		case errors.Is(err, ErrDone):
			logger.Info("task finished")
			return
		case err != nil:
			failures++
			logger.Warn("tick failed", "error", err, "consecutive_failures", failures)
		default:
			failures = 0
		}

		timer.Reset(t.Interval() + s.backoff(failures))
	}
}

// runTick runs one tick, converting a panic into an error.
func (s *Scheduler) runTick(ctx context.Context, t Task) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.observer.TickPanicked(t.Name())
			s.logger.Error("tick panicked", "task", t.Name(), "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("tick panicked: %v", r)
		}
		if !errors.Is(err, ErrDone) {
			s.observer.TickFinished(t.Name(), time.Since(start), err)
		}
	}()
	return t.Tick(ctx)
}

// backoff returns the extra delay after n consecutive failures.
func (s *Scheduler) backoff(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	d := s.cfg.BackoffBase
	for i := 1; i < n; i++ {
		d *= 2
		if d >= s.cfg.BackoffMax {
			return s.cfg.BackoffMax
		}
	}
	return min(d, s.cfg.BackoffMax)
}

// Func adapts a function into a Task.
type Func struct {
	TaskName string
	Every    time.Duration
	Fn       func(ctx context.Context) error
}

func (f Func) Name() string                   { return f.TaskName }
func (f Func) Interval() time.Duration        { return f.Every }
func (f Func) Tick(ctx context.Context) error { return f.Fn(ctx) }
