// Package store gives actors snapshot reads and conflict-checked writes of
// their entity. Every write goes through Mutate, which re-applies the caller's
// delta on a fresh snapshot after a version conflict and gives up after one
// retry.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/healsync/healsync/internal/models"
	"github.com/healsync/healsync/internal/repository"
)

var (
	// ErrWriteAbandoned is returned when a write conflicted twice.
	ErrWriteAbandoned = errors.New("write abandoned after version conflict")
	// ErrNoChange may be returned by a delta to skip the write.
	ErrNoChange = errors.New("no change")
)

// Delta mutates an entity snapshot in place. It may run more than once, each
// time on a freshly loaded snapshot, so it must not depend on side effects of
// an earlier call.
type Delta func(e *models.Entity) error

// Repository is the persistence the store needs.
type Repository interface {
	GetByID(ctx context.Context, id string) (*models.Entity, error)
	Find(ctx context.Context, filter models.EntityFilter) ([]*models.Entity, error)
	UpdateState(ctx context.Context, e *models.Entity, expectedVersion int64) error
}

// Observer receives write outcomes for metrics.
type Observer interface {
	WriteConflict(entityType models.EntityType)
	WriteAbandoned(entityType models.EntityType)
}

type nopObserver struct{}

func (nopObserver) WriteConflict(models.EntityType)  {}
func (nopObserver) WriteAbandoned(models.EntityType) {}

// Store is the shared entity store handle passed to every actor.
type Store struct {
	repo     Repository
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithObserver reports conflicts and abandoned writes.
func WithObserver(o Observer) Option {
	return func(s *Store) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the time source for LastActive stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a store over repo.
func New(repo Repository, opts ...Option) *Store {
	s := &Store{
		repo:     repo,
		observer: nopObserver{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "store")
	return s
}

// Get returns a snapshot of one entity.
func (s *Store) Get(ctx context.Context, id string) (*models.Entity, error) {
	return s.repo.GetByID(ctx, id)
}

// Find returns snapshots of every entity matching filter.
func (s *Store) Find(ctx context.Context, filter models.EntityFilter) ([]*models.Entity, error) {
	return s.repo.Find(ctx, filter)
}

// Mutate loads the entity, applies delta and writes it back if the version
// is unchanged. A conflict reloads and re-applies delta once; a second
// conflict returns ErrWriteAbandoned. The written entity is returned. When
// delta returns ErrNoChange nothing is written and the unchanged snapshot is
// returned with a nil error.
func (s *Store) Mutate(ctx context.Context, id string, delta Delta) (*models.Entity, error) {
	var typ models.EntityType

	for attempt := 0; attempt < 2; attempt++ {
		e, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		typ = e.Type

		if err := delta(e); err != nil {
			if errors.Is(err, ErrNoChange) {
				return e, nil
			}
			return nil, fmt.Errorf("applying delta to %s: %w", id, err)
		}

		e.LastActive = s.now().UTC()

		err = s.repo.UpdateState(ctx, e, e.Version)
		if err == nil {
			return e, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, err
		}

		s.observer.WriteConflict(typ)
		s.logger.Debug("version conflict, retrying", "entity_id", id, "attempt", attempt+1)
	}

	s.observer.WriteAbandoned(typ)
	s.logger.Warn("write abandoned after retry", "entity_id", id, "entity_type", typ)
	return nil, fmt.Errorf("%w: %s", ErrWriteAbandoned, id)
}
