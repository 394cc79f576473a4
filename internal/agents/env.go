// Package agents implements the facility actors. Each actor owns one entity:
// it ticks on its own cadence, reacts to events from other actors, and writes
// its entity only through the store's conflict-checked Mutate.
package agents

import (
	"log/slog"
	"time"

	"github.com/healsync/healsync/internal/activity"
	"github.com/healsync/healsync/internal/bus"
	"github.com/healsync/healsync/internal/models"
	"github.com/healsync/healsync/internal/scoring"
	"github.com/healsync/healsync/internal/store"
	"github.com/healsync/healsync/internal/util"
)

// Observer receives engine-level outcomes for metrics.
type Observer interface {
	OutbreakPublished(d models.Disease, fallback bool)
	OrderOutcome(outcome string)
	AlertRaised(kind string)
}

type nopObserver struct{}

func (nopObserver) OutbreakPublished(models.Disease, bool) {}
func (nopObserver) OrderOutcome(string)                    {}
func (nopObserver) AlertRaised(string)                     {}

// Settings tune actor behavior.
type Settings struct {
	// TimeScale is simulated seconds per real second; it sizes per-tick
	// consumption. Zero disables consumption.
	TimeScale float64
	// NaturalDrift enables random test count drift at labs.
	NaturalDrift bool
	// OrderRetention is how long delivered orders stay on a supplier, in
	// simulated time.
	OrderRetention time.Duration
	// OutbreakMemory is how long a pharmacy treats an outbreak report as
	// active, in simulated time.
	OutbreakMemory time.Duration
	// PendingTimeout is how long a pharmacy order may go unanswered before
	// it is dropped and placed again, in simulated time. Zero keeps orders
	// until the supplier answers.
	PendingTimeout time.Duration
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{
		TimeScale:      3600,
		NaturalDrift:   true,
		OrderRetention: time.Hour,
		OutbreakMemory: 48 * time.Hour,
		PendingTimeout: 6 * time.Hour,
	}
}

// Env is everything an actor needs from the engine. Store and Bus are
// required; the rest default when nil.
type Env struct {
	Store    *store.Store
	Bus      *bus.Bus
	Scoring  *scoring.Client
	Activity *activity.Recorder
	Reactor  *Reactor
	Clock    util.Clock
	Rand     *Rand
	Observer Observer
	Logger   *slog.Logger
	Settings Settings
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

func (e *Env) withDefaults() *Env {
	out := *e
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	if out.Clock == nil {
		out.Clock = wallClock{}
	}
	if out.Rand == nil {
		out.Rand = NewRand(0)
	}
	if out.Observer == nil {
		out.Observer = nopObserver{}
	}
	if out.Settings.OutbreakMemory <= 0 {
		out.Settings.OutbreakMemory = DefaultSettings().OutbreakMemory
	}
	if out.Activity == nil {
		out.Activity = activity.NewRecorder(nil, activity.WithLogger(out.Logger), activity.WithClock(out.Clock))
	}
	if out.Reactor == nil {
		out.Reactor = NewReactor(nil, ReactorConfig{}, out.Rand, out.Logger)
	}
	return &out
}

func (e *Env) now() time.Time {
	return e.Clock.Now().UTC()
}

// simulated converts a real interval to simulated time.
func (e *Env) simulated(real time.Duration) time.Duration {
	return time.Duration(float64(real) * e.Settings.TimeScale)
}
