// Package activity is the engine's broadcast log. Every published event and
// every notable actor decision is written as a structured log record and
// persisted to the activity_log table.
package activity

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/healsync/healsync/internal/bus"
	"github.com/healsync/healsync/internal/models"
	"github.com/healsync/healsync/internal/util"
)

// Store persists activity records.
type Store interface {
	Insert(ctx context.Context, rec *models.ActivityRecord) error
}

// Entry is one activity to record.
type Entry struct {
	Actor    string
	Type     string
	EntityID string
	Zone     models.Zone
	Payload  any
}

// Recorder emits activity records. A nil store logs without persisting.
type Recorder struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the logger records are written to.
func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock sets the time source for record timestamps.
func WithClock(c util.Clock) Option {
	return func(r *Recorder) {
		if c != nil {
			r.now = c.Now
		}
	}
}

// NewRecorder creates a recorder.
func NewRecorder(store Store, opts ...Option) *Recorder {
	r := &Recorder{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "activity")
	return r
}

// Emit records an activity. Persistence failures are logged, never returned:
// the broadcast log must not interfere with the actor that emits.
func (r *Recorder) Emit(ctx context.Context, e Entry) {
	rec := &models.ActivityRecord{
		ID:        util.NewID(),
		Timestamp: r.now(),
		Actor:     e.Actor,
		Type:      e.Type,
		EntityID:  e.EntityID,
		Zone:      e.Zone,
	}
	if e.Payload != nil {
		b, err := json.Marshal(e.Payload)
		if err != nil {
			r.logger.Warn("activity payload not encodable", "type", e.Type, "error", err)
		} else {
			rec.Payload = string(b)
		}
	}

	r.logger.LogAttrs(ctx, slog.LevelInfo, "activity",
		slog.Time("timestamp", rec.Timestamp),
		slog.String("actor", rec.Actor),
		slog.String("type", rec.Type),
		slog.String("entity_id", rec.EntityID),
		slog.String("zone", string(rec.Zone)),
		slog.String("payload", rec.Payload),
	)

	if r.store == nil {
		return
	}
	if err := r.store.Insert(ctx, rec); err != nil {
		r.logger.Warn("persisting activity failed", "type", rec.Type, "error", err)
	}
}

// Attach records every event published on b. The returned func detaches.
func (r *Recorder) Attach(b *bus.Bus) (detach func()) {
	var unsubs []func()
	for _, topic := range bus.AllTopics() {
		unsubs = append(unsubs, b.Subscribe(topic, func(ctx context.Context, ev bus.Event) {
			r.Emit(ctx, Entry{
				Actor:    string(ev.SourceType),
				Type:     string(ev.Topic()),
				EntityID: ev.Source,
				Zone:     bus.ZoneOf(ev.Payload),
				Payload:  ev.Payload,
			})
		}))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
