package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/healsync/healsync/internal/activity"
	"github.com/healsync/healsync/internal/models"
	"github.com/healsync/healsync/internal/repository"
	"github.com/healsync/healsync/internal/scheduler"
	"github.com/healsync/healsync/internal/store"
)

// Injector runs a scenario as a finite scheduler task. It leaves the
// schedule once every tick has been injected.
type Injector struct {
	scenario *Scenario
	store    *store.Store
	activity *activity.Recorder
	interval time.Duration
	logger   *slog.Logger
	tick     int
}

// NewInjector creates an injector. A nil recorder only logs.
func NewInjector(s *Scenario, st *store.Store, rec *activity.Recorder, interval time.Duration, logger *slog.Logger) *Injector {
	if logger == nil {
		logger = slog.Default()
	}
	if rec == nil {
		rec = activity.NewRecorder(nil, activity.WithLogger(logger))
	}
	return &Injector{
		scenario: s,
		store:    st,
		activity: rec,
		interval: interval,
		logger:   logger.With("component", "scenario", "scenario", s.Name),
	}
}

func (in *Injector) Name() string            { return "scenario-" + in.scenario.Name }
func (in *Injector) Interval() time.Duration { return in.interval }

// Ticks returns how many ticks have been injected.
func (in *Injector) Ticks() int { return in.tick }

// Tick injects one step of growth into every targeted lab.
func (in *Injector) Tick(ctx context.Context) error {
	if in.tick >= in.scenario.Ticks {
		return scheduler.ErrDone
	}
	if in.tick == 0 {
		in.logger.Warn("scenario started", "disease", in.scenario.Disease, "ticks", in.scenario.Ticks)
		in.activity.Emit(ctx, activity.Entry{Actor: "scenario", Type: "scenario_started", Payload: in.scenario})
	}

	labs, err := in.store.Find(ctx, models.EntityFilter{
		Type:   models.EntityTypeLab,
		Status: models.EntityStatusActive,
	})
	if err != nil {
		return fmt.Errorf("finding labs: %w", err)
	}

	n := in.tick
	growth := in.scenario.Growth(n)
	positive := int(math.Floor(float64(growth) * in.scenario.PositiveShare))
	rollHistory := in.scenario.HistoryEvery > 0 && n%in.scenario.HistoryEvery == 0

	var errs []error
	for _, lab := range labs {
		if !in.scenario.Targets(lab.Zone) {
			continue
		}
		written, err := in.store.Mutate(ctx, lab.ID, func(e *models.Entity) error {
			t := e.Lab.TestsFor(in.scenario.Disease)
			t.Today += growth
			t.Positive += positive
			if rollHistory {
				t.PushHistory(t.Today, models.InjectedHistoryCap)
			}
			return nil
		})
		if err != nil {
			if errors.Is(err, repository.ErrEntityNotFound) {
				continue
			}
			errs = append(errs, err)
			continue
		}
		today := written.Lab.Tests[in.scenario.Disease].Today
		in.logger.Info("tests rising", "lab", lab.Name, "today", today, "growth", growth, "tick", n)
		in.activity.Emit(ctx, activity.Entry{
			Actor:    "scenario",
			Type:     "outbreak_progress",
			EntityID: lab.ID,
			Zone:     lab.Zone,
			Payload: map[string]any{
				"disease":  in.scenario.Disease,
				"today":    today,
				"growth":   growth,
				"positive": positive,
				"tick":     n,
			},
		})
	}

	in.tick++
	if err := errors.Join(errs...); err != nil {
		return err
	}
	if in.tick >= in.scenario.Ticks {
		in.logger.Warn("scenario peak reached", "disease", in.scenario.Disease)
		return scheduler.ErrDone
	}
	return nil
}
