package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/healsync/healsync/internal/activity"
	"github.com/healsync/healsync/internal/bus"
	"github.com/healsync/healsync/internal/models"
	"github.com/healsync/healsync/internal/repository"
	"github.com/healsync/healsync/internal/util"
)

// Agent is a scheduled actor bound to one entity.
type Agent interface {
	Name() string
	Interval() time.Duration
	Tick(ctx context.Context) error
	ID() string
	Type() models.EntityType
	// Close releases the actor's subscriptions.
	Close()
}

type base struct {
	id       string
	typ      models.EntityType
	zone     models.Zone
	interval time.Duration
	env      *Env
	logger   *slog.Logger
	unsubs   []func()
}

func newBase(env *Env, e *models.Entity, interval time.Duration) base {
	env = env.withDefaults()
	return base{
		id:       e.ID,
		typ:      e.Type,
		zone:     e.Zone,
		interval: interval,
		env:      env,
		logger: env.Logger.With(
			"component", string(e.Type),
			"entity_id", e.ID,
			"zone", e.Zone,
		),
	}
}

func (b *base) ID() string              { return b.id }
func (b *base) Type() models.EntityType { return b.typ }
func (b *base) Interval() time.Duration { return b.interval }
func (b *base) Name() string            { return string(b.typ) + "-" + util.ShortID(b.id) }
func (b *base) subscribe(t bus.Topic, h bus.Handler) {
	b.unsubs = append(b.unsubs, b.env.Bus.Subscribe(t, h))
}

func (b *base) Close() {
	for _, u := range b.unsubs {
		u()
	}
	b.unsubs = nil
}

// react schedules fn after this actor's stagger and jitter.
func (b *base) react(fn func(ctx context.Context)) {
	b.env.Reactor.After(b.id, fn)
}

func (b *base) publish(ctx context.Context, p bus.Payload) {
	err := b.env.Bus.Publish(ctx, bus.Event{
		Source:     b.id,
		SourceType: b.typ,
		Payload:    p,
	})
	if err != nil {
		b.logger.Error("publish failed", "topic", p.Topic(), "error", err)
	}
}

func (b *base) emit(ctx context.Context, typ string, payload any) {
	b.env.Activity.Emit(ctx, activity.Entry{
		Actor:    string(b.typ),
		Type:     typ,
		EntityID: b.id,
		Zone:     b.zone,
		Payload:  payload,
	})
}

func (b *base) snapshot(ctx context.Context) (*models.Entity, error) {
	e, err := b.env.Store.Get(ctx, b.id)
	if err != nil {
		return nil, fmt.Errorf("loading %s %s: %w", b.typ, b.id, err)
	}
	return e, nil
}

// handleErr logs a failed reaction. A vanished entity ends the reaction
// quietly.
func (b *base) handleErr(topic bus.Topic, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, repository.ErrEntityNotFound) {
		b.logger.Debug("entity gone, ignoring event", "topic", topic)
		return
	}
	b.logger.Warn("reaction failed", "topic", topic, "error", err)
}
