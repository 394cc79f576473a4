// Package engine assembles the store, bus, actors and scheduler into a
// running coordination engine.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/healsync/healsync/internal/activity"
	"github.com/healsync/healsync/internal/agents"
	"github.com/healsync/healsync/internal/bus"
	"github.com/healsync/healsync/internal/config"
	"github.com/healsync/healsync/internal/database"
	"github.com/healsync/healsync/internal/metrics"
	"github.com/healsync/healsync/internal/repository"
	"github.com/healsync/healsync/internal/scenario"
	"github.com/healsync/healsync/internal/scheduler"
	"github.com/healsync/healsync/internal/scoring"
	"github.com/healsync/healsync/internal/store"
	"github.com/healsync/healsync/internal/util"
)

// Options are the optional engine collaborators.
type Options struct {
	// Scenario, when set, is injected on the scenario interval.
	Scenario *scenario.Scenario
	// Metrics collects engine metrics. Nil creates a private registry.
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	// Start is the simulated start time. Zero uses the wall clock.
	Start time.Time
}

// Engine is a wired set of actors ready to run.
type Engine struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	Store   *store.Store
	Bus     *bus.Bus
	Clock   *util.SimClock
	scoring *scoring.Client
	reactor *agents.Reactor
	agents  []agents.Agent
	sched   *scheduler.Scheduler
	detach  func()
	cancel  context.CancelFunc
}

// New builds the engine over an already migrated database.
func New(ctx context.Context, cfg *config.Config, db *sql.DB, dialect database.Dialect, opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}
	start := opts.Start
	if start.IsZero() {
		start = time.Now()
	}

	clock := util.NewSimClock(start, cfg.Simulation.TimeScale)
	st := store.New(repository.NewEntityRepository(db, dialect),
		store.WithObserver(m),
		store.WithLogger(logger),
		store.WithClock(clock.Now),
	)
	b := bus.New(bus.WithObserver(m), bus.WithLogger(logger))

	var sc *scoring.Client
	if cfg.Scoring.BaseURL != "" {
		sc = scoring.New(cfg.Scoring.BaseURL, cfg.Scoring.Timeout.Duration,
			scoring.WithObserver(m),
			scoring.WithLogger(logger),
		)
	}

	recorder := activity.NewRecorder(repository.NewActivityRepository(db, dialect),
		activity.WithLogger(logger),
		activity.WithClock(clock),
	)

	rnd := agents.NewRand(cfg.Simulation.RandomSeed)
	reactorCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	reactor := agents.NewReactor(reactorCtx, agents.ReactorConfig{
		StaggerStep:  cfg.Coordination.StaggerStep.Duration,
		StaggerSlots: cfg.Coordination.StaggerSlots,
		JitterMax:    cfg.Coordination.JitterMax.Duration,
	}, rnd, logger)

	settings := agents.DefaultSettings()
	settings.TimeScale = cfg.Simulation.TimeScale
	settings.NaturalDrift = cfg.Simulation.NaturalDrift
	if d := cfg.Simulation.OrderRetention.Duration; d > 0 {
		settings.OrderRetention = d
	}
	if d := cfg.Simulation.PendingOrderTimeout.Duration; d > 0 {
		settings.PendingTimeout = d
	}

	env := &agents.Env{
		Store:    st,
		Bus:      b,
		Scoring:  sc,
		Activity: recorder,
		Reactor:  reactor,
		Clock:    clock,
		Rand:     rnd,
		Observer: m,
		Logger:   logger,
		Settings: settings,
	}

	sch := cfg.Scheduler
	built, err := agents.Build(ctx, env, agents.Intervals{
		Hospital: sch.HospitalInterval.Duration,
		Lab:      sch.LabInterval.Duration,
		Pharmacy: sch.PharmacyInterval.Duration,
		Supplier: sch.SupplierInterval.Duration,
		City:     sch.CityInterval.Duration,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("building agents: %w", err)
	}

	s := scheduler.New(scheduler.Config{
		BackoffBase: sch.BackoffBase.Duration,
		BackoffMax:  sch.BackoffMax.Duration,
	}, scheduler.WithObserver(m), scheduler.WithLogger(logger))

	e := &Engine{
		cfg:     cfg,
		logger:  logger.With("component", "engine"),
		metrics: m,
		Store:   st,
		Bus:     b,
		Clock:   clock,
		scoring: sc,
		reactor: reactor,
		agents:  built,
		sched:   s,
		cancel:  cancel,
	}

	for _, a := range built {
		if err := s.Add(a); err != nil {
			e.Close()
			return nil, err
		}
	}
	if opts.Scenario != nil {
		in := scenario.NewInjector(opts.Scenario, st, recorder, sch.ScenarioInterval.Duration, logger)
		if err := s.Add(in); err != nil {
			e.Close()
			return nil, err
		}
	}

	e.detach = recorder.Attach(b)
	return e, nil
}

// Agents returns the running actors.
func (e *Engine) Agents() []agents.Agent {
	return e.agents
}

// Run ticks every actor, and serves metrics when enabled, until ctx is
// cancelled.
func (e *Engine) Run(ctx context.Context) error {
	if e.scoring.Enabled() {
		if err := e.scoring.Health(ctx); err != nil {
			e.logger.Warn("scoring service unreachable, using fallback rules", "error", err)
		}
	} else {
		e.logger.Info("scoring service not configured, using fallback rules")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.sched.Run(gctx)
	})
	if e.cfg.Metrics.Enabled && e.cfg.Metrics.ListenAddr != "" {
		g.Go(func() error {
			return e.metrics.Serve(gctx, e.cfg.Metrics.ListenAddr, e.logger)
		})
	}

	e.logger.Info("engine running", "agents", len(e.agents))
	return g.Wait()
}

// Close unsubscribes every actor, drops pending delayed reactions and waits
// for running ones.
func (e *Engine) Close() {
	for _, a := range e.agents {
		a.Close()
	}
	e.cancel()
	e.reactor.Wait()
	if e.detach != nil {
		e.detach()
	}
}
