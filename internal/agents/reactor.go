package agents

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// ReactorConfig spreads handler reactions over time so actors reacting to
// the same event do not write at once.
type ReactorConfig struct {
	StaggerStep  time.Duration
	StaggerSlots int
	JitterMax    time.Duration
}

// Reactor runs delayed handler actions on the engine's root context.
type Reactor struct {
	ctx    context.Context
	cfg    ReactorConfig
	rand   *Rand
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewReactor creates a reactor. Actions are skipped once ctx is done; a nil
// ctx never cancels. With a zero config actions run inline.
func NewReactor(ctx context.Context, cfg ReactorConfig, r *Rand, logger *slog.Logger) *Reactor {
	if ctx == nil {
		ctx = context.Background()
	}
	if r == nil {
		r = NewRand(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reactor{ctx: ctx, cfg: cfg, rand: r, logger: logger.With("component", "reactor")}
}

// Stagger is the deterministic part of an entity's reaction delay, derived
// from the last byte of its ID.
func Stagger(entityID string, slots int, step time.Duration) time.Duration {
	if slots <= 0 || step <= 0 || entityID == "" {
		return 0
	}
	last := entityID[len(entityID)-1]
	return time.Duration(int(last)%slots) * step
}

// Delay returns stagger plus a fresh random jitter for entityID.
func (r *Reactor) Delay(entityID string) time.Duration {
	d := Stagger(entityID, r.cfg.StaggerSlots, r.cfg.StaggerStep)
	if r.cfg.JitterMax > 0 {
		d += time.Duration(r.rand.Float64() * float64(r.cfg.JitterMax))
	}
	return d
}

// After runs fn once entityID's delay has passed. A panic in fn is
// recovered and logged.
func (r *Reactor) After(entityID string, fn func(ctx context.Context)) {
	delay := r.Delay(entityID)
	if delay <= 0 {
		r.run(entityID, fn)
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-r.ctx.Done():
			r.logger.Debug("reaction dropped at shutdown", "entity_id", entityID)
		case <-timer.C:
			r.run(entityID, fn)
		}
	}()
}

func (r *Reactor) run(entityID string, fn func(ctx context.Context)) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("reaction panicked",
				"entity_id", entityID,
				"panic", p,
				"stack", string(debug.Stack()),
			)
		}
	}()
	fn(r.ctx)
}

// Wait blocks until every pending reaction has finished or been dropped.
func (r *Reactor) Wait() {
	r.wg.Wait()
}
